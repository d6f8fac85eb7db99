package api

import (
	"encoding/base64"
	"fmt"
)

// Paths of the remote service, relative to the configured base URL.
const (
	PathGenerate = "/auth/generate"
	PathValidate = "/auth/validate"
	PathRevoke   = "/auth/revoke"
	PathConvert  = "/sql-migration/convert"
	PathFormat   = "/sql-formatting/format"
	PathMinify   = "/sql-formatting/minify"
	PathLogs     = "/logs"
)

// QueryRequest is the body of convert, format and minify calls.
type QueryRequest struct {
	OriginalQuery string `json:"original_query"` // base64
}

// GenerateResponse is returned by POST /auth/generate.
type GenerateResponse struct {
	Token     string `json:"token"`
	ExpiresIn int64  `json:"expires_in,omitempty"` // seconds
}

// ValidateResponse is returned by GET /auth/validate.
type ValidateResponse struct {
	Valid bool `json:"valid"`
}

// RevokeResponse is returned by DELETE /auth/revoke.
type RevokeResponse struct {
	Revoked bool `json:"revoked"`
}

// ConvertResponse is the wire form of a conversion result.
type ConvertResponse struct {
	Success        bool     `json:"success"`
	ConvertedQuery string   `json:"converted_query"` // base64
	Warnings       []string `json:"warnings"`
}

// FormatResponse is the wire form of a format/minify result.
type FormatResponse struct {
	Success        bool     `json:"success"`
	FormattedQuery string   `json:"formatted_query"` // base64
	Warnings       []string `json:"warnings"`
}

// ErrorBody is the JSON shape of a non-2xx response.
type ErrorBody struct {
	Message string `json:"message"`
}

// EncodeQuery base64-encodes a query for the wire.
func EncodeQuery(q string) string {
	return base64.StdEncoding.EncodeToString([]byte(q))
}

// DecodeQuery reverses EncodeQuery.
func DecodeQuery(s string) (string, error) {
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return "", fmt.Errorf("decode query: %w", err)
	}
	return string(b), nil
}
