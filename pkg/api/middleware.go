package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/segmentio/ksuid"

	"github.com/ssargent/keyds/pkg/dataset"
)

// RequestIDHeader carries the request's ksuid
const RequestIDHeader = "X-Request-ID"

type contextKey string

const requestIDKey contextKey = "request_id"

// apiKeyMiddleware validates the X-API-Key header
func apiKeyMiddleware(expectedKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			apiKey := r.Header.Get("X-API-Key")
			if apiKey == "" {
				sendError(w, "Missing X-API-Key header", http.StatusUnauthorized)
				return
			}
			if subtle.ConstantTimeCompare([]byte(apiKey), []byte(expectedKey)) != 1 {
				sendError(w, "Invalid API key", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// requestIDMiddleware tags every request with a ksuid, reusing a valid one
// sent by the client
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := ksuid.Parse(r.Header.Get(RequestIDHeader))
		if err != nil {
			id = ksuid.New()
		}
		w.Header().Set(RequestIDHeader, id.String())
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey, id.String())))
	})
}

// requestID returns the id assigned by requestIDMiddleware
func requestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// sendSuccess sends a successful JSON response
func sendSuccess(w http.ResponseWriter, data interface{}) {
	sendJSON(w, http.StatusOK, APIResponse{Success: true, Data: data})
}

// sendCreated sends a 201 JSON response
func sendCreated(w http.ResponseWriter, data interface{}) {
	sendJSON(w, http.StatusCreated, APIResponse{Success: true, Data: data})
}

// sendError sends an error JSON response
func sendError(w http.ResponseWriter, message string, statusCode int) {
	sendJSON(w, statusCode, APIResponse{Success: false, Error: message})
}

// sendDatasetError sends err with the status for its result code
func sendDatasetError(w http.ResponseWriter, err error) {
	sendDatasetErrorData(w, err, nil)
}

// sendDatasetErrorData is sendDatasetError with a partial result attached
func sendDatasetErrorData(w http.ResponseWriter, err error, data interface{}) {
	code := dataset.CodeOf(err)
	sendJSON(w, statusFor(err, code), APIResponse{Success: false, Data: data, Error: err.Error(), Code: code.String()})
}

func statusFor(err error, code dataset.Code) int {
	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout
	}
	switch code {
	case dataset.CodeValidation:
		return http.StatusBadRequest
	case dataset.CodeNotFound:
		return http.StatusNotFound
	case dataset.CodeDuplicateKey, dataset.CodeState:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func sendJSON(w http.ResponseWriter, statusCode int, response APIResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(response)
}
