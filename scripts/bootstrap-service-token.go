package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/replyreminder/replyreminder/internal/auth"
)

type output struct {
	TokenID          string `json:"token_id"`
	ServiceToken     string `json:"service_token"`
	ServiceTokenHash string `json:"service_token_hash"`
}

func main() {
	var (
		format = flag.String("format", "env", "Output format: env or json")
		verify = flag.String("verify", "", "Check an existing token against -hash instead of generating one")
		hash   = flag.String("hash", os.Getenv("SERVICE_TOKEN_HASH"), "Argon2id hash used with -verify")
	)
	flag.Parse()

	if *verify != "" {
		os.Exit(verifyToken(*verify, *hash))
	}

	generated, err := auth.GenerateServiceToken()
	if err != nil {
		fmt.Fprintln(os.Stderr, "generate service token:", err)
		os.Exit(1)
	}

	out := output{
		TokenID:          generated.ID,
		ServiceToken:     generated.Plaintext,
		ServiceTokenHash: generated.Hash,
	}

	switch strings.ToLower(*format) {
	case "env":
		fmt.Printf("# token id %s\n", out.TokenID)
		fmt.Println("# dispatcher")
		fmt.Printf("SERVICE_TOKEN=%s\n", out.ServiceToken)
		fmt.Println("# api")
		fmt.Printf("SERVICE_TOKEN_HASH='%s'\n", out.ServiceTokenHash)
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(out)
	default:
		fmt.Fprintln(os.Stderr, "invalid format; use env or json")
		os.Exit(1)
	}
}

func verifyToken(token, hash string) int {
	if hash == "" {
		fmt.Fprintln(os.Stderr, "-hash or SERVICE_TOKEN_HASH is required with -verify")
		return 1
	}
	if !auth.ValidateTokenFormat(token) {
		fmt.Fprintln(os.Stderr, "warning: token does not look like a generated service token")
	}

	ok, err := auth.VerifyToken(token, hash)
	if err != nil {
		fmt.Fprintln(os.Stderr, "verify:", err)
		return 1
	}
	if !ok {
		fmt.Println("mismatch")
		return 1
	}
	fmt.Println("ok")
	return 0
}
