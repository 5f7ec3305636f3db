package common

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"
)

// APIResponse represents a standard API response
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *ErrorInfo  `json:"error,omitempty"`
	Meta    *MetaInfo   `json:"meta,omitempty"`
}

// ErrorInfo contains error details
type ErrorInfo struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// MetaInfo contains metadata about the response
type MetaInfo struct {
	RequestID  string          `json:"request_id,omitempty"`
	Timestamp  string          `json:"timestamp,omitempty"`
	Version    string          `json:"version,omitempty"`
	Pagination *PaginationInfo `json:"pagination,omitempty"`
}

// PaginationInfo contains pagination details
type PaginationInfo struct {
	Page       int  `json:"page"`
	PageSize   int  `json:"page_size"`
	Total      int  `json:"total"`
	TotalPages int  `json:"total_pages"`
	HasNext    bool `json:"has_next"`
	HasPrev    bool `json:"has_prev"`
}

// StandardErrorCodes defines common error codes
var StandardErrorCodes = struct {
	BadRequest         string
	NotFound           string
	PayloadTooLarge    string
	TooManyRequests    string
	InternalError      string
	ServiceUnavailable string
}{
	BadRequest:         "BAD_REQUEST",
	NotFound:           "NOT_FOUND",
	PayloadTooLarge:    "PAYLOAD_TOO_LARGE",
	TooManyRequests:    "TOO_MANY_REQUESTS",
	InternalError:      "INTERNAL_ERROR",
	ServiceUnavailable: "SERVICE_UNAVAILABLE",
}

// WriteJSON writes v as the whole response body
func WriteJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// RespondJSON sends a JSON response
func RespondJSON(w http.ResponseWriter, status int, data interface{}) {
	WriteJSON(w, status, APIResponse{
		Success: status >= 200 && status < 300,
		Data:    data,
	})
}

// RespondError sends an error response
func RespondError(w http.ResponseWriter, status int, code, message string) {
	RespondErrorWithDetails(w, status, code, message, nil)
}

// RespondErrorWithDetails sends an error response with additional details
func RespondErrorWithDetails(w http.ResponseWriter, status int, code, message string, details map[string]interface{}) {
	WriteJSON(w, status, APIResponse{
		Success: false,
		Error: &ErrorInfo{
			Code:    code,
			Message: message,
			Details: details,
		},
	})
}

// RespondWithMeta sends a response with metadata. Empty request ID and
// timestamp are filled in from r.
func RespondWithMeta(w http.ResponseWriter, r *http.Request, status int, data interface{}, meta *MetaInfo) {
	if meta == nil {
		meta = &MetaInfo{}
	}
	if meta.RequestID == "" {
		meta.RequestID = ExtractRequestID(r)
	}
	if meta.Timestamp == "" {
		meta.Timestamp = time.Now().UTC().Format(time.RFC3339)
	}
	WriteJSON(w, status, APIResponse{
		Success: status >= 200 && status < 300,
		Data:    data,
		Meta:    meta,
	})
}

// ExtractRequestID returns the request ID from the context, falling back to
// the request headers
func ExtractRequestID(r *http.Request) string {
	if id, ok := GetRequestID(r.Context()); ok && id != "" {
		return id
	}
	if id := r.Header.Get("X-Request-ID"); id != "" {
		return id
	}
	return r.Header.Get("X-Amzn-Trace-Id")
}

// ErrBodyTooLarge is returned by ReadBody when the limit is exceeded
var ErrBodyTooLarge = errors.New("request body too large")

// ReadBody reads the whole request body up to maxBytes
func ReadBody(w http.ResponseWriter, r *http.Request, maxBytes int64) ([]byte, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, ErrBodyTooLarge
		}
		return nil, err
	}
	return body, nil
}
