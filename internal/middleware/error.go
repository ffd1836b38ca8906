package middleware

import (
	"encoding/json"
	"fmt"
	"headless-cms/internal/logger"
	"net/http"
)

// AppError represents a custom error type for the application.
type AppError struct {
	Error   error
	Message string
	Code    int
}

// AppHandler is a custom handler function type that returns an AppError.
type AppHandler func(http.ResponseWriter, *http.Request) *AppError

// errorBody is the JSON body of every error response.
type errorBody struct {
	Message string `json:"message"`
}

// Error is a middleware that converts handler errors into JSON error responses.
func Error(log logger.Logger) func(AppHandler) http.Handler {
	return func(next AppHandler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					err, ok := rec.(error)
					if !ok {
						err = fmt.Errorf("%v", rec)
					}
					log.Error(err, "Panic recovered")
					WriteError(w, http.StatusInternalServerError, "Internal Server Error")
				}
			}()

			err := next(w, r)
			if err != nil {
				fields := map[string]interface{}{"status": err.Code, "path": r.URL.Path}
				if err.Code >= http.StatusInternalServerError {
					log.With(fields).Error(err.Error, err.Message)
				} else {
					log.With(fields).Debug(err.Message)
				}
				WriteError(w, err.Code, err.Message)
			}
		})
	}
}

// WriteError writes a JSON error body with the given status.
func WriteError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(errorBody{Message: message})
}
