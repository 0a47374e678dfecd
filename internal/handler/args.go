package handler

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strconv"
)

var (
	errMalformedBody = errors.New("malformed request body")
	errBodyTooLarge  = errors.New("request body too large")
)

// args holds request arguments merged from the query string, a form body
// and a JSON object body. Later sources override earlier ones, so JSON wins.
type args map[string]string

// Get returns the named argument or "".
func (a args) Get(name string) string {
	return a[name]
}

// parseArgs reads the arguments of r. A JSON content type with a body that
// is not a JSON object yields errMalformedBody. A body cut off by
// middleware.MaxBodySize yields errBodyTooLarge.
func parseArgs(r *http.Request) (args, error) {
	out := args{}
	mergeValues(out, r.URL.Query())

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "application/x-www-form-urlencoded", "multipart/form-data":
		if err := r.ParseMultipartForm(1 << 20); err != nil && !errors.Is(err, http.ErrNotMultipart) {
			return nil, bodyError(err)
		}
		mergeValues(out, r.PostForm)

	case "application/json":
		if r.Body == nil || r.ContentLength == 0 {
			return out, nil
		}
		var obj map[string]json.RawMessage
		if err := json.NewDecoder(r.Body).Decode(&obj); err != nil {
			if errors.Is(err, io.EOF) {
				return out, nil
			}
			return nil, bodyError(err)
		}
		for k, raw := range obj {
			if v, ok := scalar(raw); ok {
				out[k] = v
			}
		}
	}

	return out, nil
}

func bodyError(err error) error {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return errBodyTooLarge
	}
	return errMalformedBody
}

func mergeValues(dst args, values url.Values) {
	for k, v := range values {
		if len(v) > 0 {
			dst[k] = v[0]
		}
	}
}

// scalar renders a JSON string, number or bool as a string.
// Objects, arrays and null are skipped.
func scalar(raw json.RawMessage) (string, bool) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return "", false
	}
	switch t := v.(type) {
	case string:
		return t, true
	case float64:
		// Integers keep their literal form so large ids survive.
		if _, err := strconv.ParseInt(string(raw), 10, 64); err == nil {
			return string(raw), true
		}
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(t), true
	default:
		return "", false
	}
}
