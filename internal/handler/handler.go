// Package handler provides HTTP request handlers.
package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/replyreminder/replyreminder/internal/middleware"
	"github.com/replyreminder/replyreminder/internal/service"
)

// Response is the body of every non-listing endpoint.
type Response struct {
	Success bool   `json:"success"`
	Msg     string `json:"msg,omitempty"`
}

// Route describes one endpoint in the index.
type Route struct {
	Method      string `json:"method"`
	Path        string `json:"path"`
	Description string `json:"description"`
}

// Routes lists the public endpoints served by NewRouter.
var Routes = []Route{
	{http.MethodPost, "/user/", "register a person (userid, email, first_name, last_name, timezone, updated_time)"},
	{http.MethodPost, "/linkaccount/", "link a chat identity (gsid, account_linking_token, auth_token)"},
	{http.MethodPost, "/reminder/", "create a reminder (auth_token, userid, followupUsername, reminderTime, notes)"},
	{http.MethodGet, "/reminders/", "list unsent reminders"},
	{http.MethodPost, "/reminder/sent/", "mark a reminder sent (reminderid)"},
	{http.MethodGet, "/webhook/", "platform subscription verification"},
	{http.MethodPost, "/webhook/", "platform event delivery"},
}

// Index handles GET / with a JSON list of the routes.
func Index(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"service": "replyreminder",
		"routes":  Routes,
	})
}

// NotFound answers 404 {"success": false}.
// Also used for known paths hit with the wrong method.
func NotFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, Response{Success: false})
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeSuccess(w http.ResponseWriter) {
	writeJSON(w, http.StatusOK, Response{Success: true})
}

func writeFailure(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, Response{Success: false, Msg: msg})
}

// statusFor maps a service error kind to its HTTP status.
func statusFor(kind service.Kind) int {
	switch kind {
	case service.KindInput, service.KindConflict:
		return http.StatusBadRequest
	case service.KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// writeServiceError writes the response for a service error and logs it.
// Internal details never reach the client.
func writeServiceError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	kind := service.KindOf(err)
	status := statusFor(kind)

	attrs := []any{
		slog.String("kind", kind.String()),
		slog.String("error", err.Error()),
		slog.String("request_id", middleware.GetRequestID(r.Context())),
	}
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", attrs...)
	} else {
		logger.Debug("request rejected", attrs...)
	}

	writeFailure(w, status, service.MessageOf(err))
}
