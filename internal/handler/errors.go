package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"headless-cms/internal/blocks"
	"headless-cms/internal/middleware"
	"headless-cms/internal/service"
	"net/http"
	"sort"
	"strings"
)

const notFoundMessage = "No page matches the given query."

func notFound(err error) *middleware.AppError {
	return &middleware.AppError{Error: err, Message: notFoundMessage, Code: http.StatusNotFound}
}

func badRequest(message string) *middleware.AppError {
	return &middleware.AppError{Error: errors.New(message), Message: message, Code: http.StatusBadRequest}
}

// errorFor maps service errors onto HTTP errors. Drafts requested through a
// public route surface as plain not found.
func errorFor(err error, message string) *middleware.AppError {
	switch {
	case errors.Is(err, service.ErrNotFound):
		return notFound(err)
	case errors.Is(err, service.ErrInvalidParameter):
		msg := strings.TrimSuffix(err.Error(), ": "+service.ErrInvalidParameter.Error())
		return &middleware.AppError{Error: err, Message: msg, Code: http.StatusBadRequest}
	case errors.Is(err, blocks.ErrBlockFailed):
		return &middleware.AppError{Error: err, Message: "Embedded content is unavailable.", Code: http.StatusBadGateway}
	}
	return &middleware.AppError{Error: err, Message: message, Code: http.StatusInternalServerError}
}

// checkParams rejects query parameters outside allowed.
func checkParams(params map[string][]string, allowed map[string]bool) *middleware.AppError {
	var unknown []string
	for k := range params {
		if !allowed[k] {
			unknown = append(unknown, k)
		}
	}
	if len(unknown) == 0 {
		return nil
	}
	sort.Strings(unknown)
	return badRequest(fmt.Sprintf("query parameter is not an operation or a recognised field: %s", strings.Join(unknown, ", ")))
}

// writeJSON encodes v before writing so encoding failures still produce a
// clean error response.
func writeJSON(w http.ResponseWriter, code int, v interface{}) *middleware.AppError {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return &middleware.AppError{Error: err, Message: "Failed to encode response", Code: http.StatusInternalServerError}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(buf.Bytes())
	return nil
}
