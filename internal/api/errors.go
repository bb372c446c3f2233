// Package api provides the HTTP handlers, routing and the standard error
// envelope of the socialgraph API.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/onnwee/socialgraph/internal/middleware"
	"github.com/onnwee/socialgraph/internal/post"
	"github.com/onnwee/socialgraph/internal/relationship"
	"github.com/onnwee/socialgraph/internal/story"
	"github.com/onnwee/socialgraph/internal/upload"
	"github.com/onnwee/socialgraph/internal/user"
)

// Common error codes used throughout the API.
const (
	// ErrCodeValidation indicates input validation failure.
	ErrCodeValidation = "validation_error"

	// ErrCodeAuthFailed indicates authentication failure.
	ErrCodeAuthFailed = "auth_failed"

	// ErrCodeNotFound indicates the requested resource was not found.
	ErrCodeNotFound = "not_found"

	// ErrCodeRateLimited indicates rate limit exceeded.
	ErrCodeRateLimited = "rate_limited"

	// ErrCodeInternal indicates an internal server error.
	ErrCodeInternal = "internal_error"

	// ErrCodeForbidden indicates the request is forbidden.
	ErrCodeForbidden = "forbidden"

	// ErrCodeConflict indicates a conflict with the current state.
	ErrCodeConflict = "conflict"

	// ErrCodeBadRequest indicates a malformed request.
	ErrCodeBadRequest = "bad_request"

	// ErrCodeSelfRelation indicates a follow or block aimed at the caller.
	ErrCodeSelfRelation = "self_relation"

	// ErrCodeUsernameTaken indicates the requested username is in use.
	ErrCodeUsernameTaken = "username_taken"

	// ErrCodeUnsupportedType indicates an unsupported content type for upload.
	ErrCodeUnsupportedType = "unsupported_type"

	// ErrCodeUnavailable indicates an optional backend is not configured.
	ErrCodeUnavailable = "service_unavailable"
)

// ErrorResponse represents the standard error response format.
// All API errors return JSON in this structure: {"error": {"code": "...", "message": "..."}}
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains the error code and human-readable message. Fields is
// set for validation errors and maps each invalid field to its problem.
type ErrorDetail struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// WriteError writes a standardized JSON error response.
//
// The error code is logged by the logging middleware for 4xx and 5xx
// responses when ctx carries it:
//
//	ctx := middleware.SetErrorCode(r.Context(), api.ErrCodeNotFound)
//	api.WriteError(w, ctx, http.StatusNotFound, api.ErrCodeNotFound, "User not found")
func WriteError(w http.ResponseWriter, ctx context.Context, status int, code, message string) {
	writeErrorResponse(w, ctx, status, ErrorDetail{Code: code, Message: message})
}

// WriteValidationError writes a 400 validation_error carrying per-field messages.
func WriteValidationError(w http.ResponseWriter, ctx context.Context, message string, fields map[string]string) {
	ctx = middleware.SetErrorCode(ctx, ErrCodeValidation)
	writeErrorResponse(w, ctx, http.StatusBadRequest, ErrorDetail{
		Code:    ErrCodeValidation,
		Message: message,
		Fields:  fields,
	})
}

func writeErrorResponse(w http.ResponseWriter, ctx context.Context, status int, detail ErrorDetail) {
	middleware.UpdateResponseContext(w, ctx)

	data, err := json.Marshal(ErrorResponse{Error: detail})
	if err != nil {
		slog.ErrorContext(ctx, "failed to marshal error response", "error", err)
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("Internal server error"))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		slog.ErrorContext(ctx, "failed to write error response", "error", err)
	}
}

// StatusCodeMapping returns the recommended HTTP status code for common error codes.
func StatusCodeMapping(code string) int {
	switch code {
	case ErrCodeValidation, ErrCodeBadRequest, ErrCodeSelfRelation, ErrCodeUnsupportedType:
		return http.StatusBadRequest
	case ErrCodeAuthFailed:
		return http.StatusUnauthorized
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeRateLimited:
		return http.StatusTooManyRequests
	case ErrCodeForbidden:
		return http.StatusForbidden
	case ErrCodeConflict, ErrCodeUsernameTaken:
		return http.StatusConflict
	case ErrCodeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// ErrorCode maps a domain error to its API error code and client message.
// Unknown errors map to internal_error with a generic message.
func ErrorCode(err error) (code, message string) {
	switch {
	case errors.Is(err, relationship.ErrUnauthenticated),
		errors.Is(err, post.ErrUnauthenticated),
		errors.Is(err, story.ErrUnauthenticated):
		return ErrCodeAuthFailed, "Authentication required"
	case errors.Is(err, relationship.ErrInvalidTarget), errors.Is(err, user.ErrEmptyID):
		return ErrCodeValidation, "A user id is required"
	case errors.Is(err, relationship.ErrSelfRelation):
		return ErrCodeSelfRelation, "You cannot follow or block yourself"
	case errors.Is(err, relationship.ErrTargetNotFound), errors.Is(err, user.ErrUserNotFound),
		errors.Is(err, post.ErrAuthorNotFound), errors.Is(err, story.ErrAuthorNotFound):
		return ErrCodeNotFound, "User not found"
	case errors.Is(err, post.ErrPostNotFound):
		return ErrCodeNotFound, "Post not found"
	case errors.Is(err, post.ErrNotOwner):
		return ErrCodeForbidden, "Only the author can delete this post"
	case errors.Is(err, post.ErrEmptyPost):
		return ErrCodeValidation, "A post needs a description or an image"
	case errors.Is(err, post.ErrDescriptionTooLong):
		return ErrCodeValidation, "Description cannot exceed 255 characters"
	case errors.Is(err, post.ErrEmptyComment):
		return ErrCodeValidation, "Comment cannot be empty"
	case errors.Is(err, post.ErrCommentTooLong):
		return ErrCodeValidation, "Comment cannot exceed 255 characters"
	case errors.Is(err, post.ErrInvalidImage), errors.Is(err, story.ErrInvalidImage):
		return ErrCodeValidation, "Image must be a public http or https URL"
	case errors.Is(err, user.ErrUsernameTaken):
		return ErrCodeUsernameTaken, "Username already taken"
	case errors.Is(err, user.ErrUserExists):
		return ErrCodeConflict, "User already exists"
	case errors.Is(err, upload.ErrUnsupportedType):
		return ErrCodeUnsupportedType, "Unsupported content type. Allowed types: image/jpeg, image/png, image/gif, image/webp"
	case errors.Is(err, upload.ErrFileTooLarge):
		return ErrCodeValidation, "File size exceeds maximum allowed"
	case errors.Is(err, upload.ErrInvalidSize):
		return ErrCodeValidation, "sizeBytes must be positive"
	case errors.Is(err, upload.ErrInvalidKind):
		return ErrCodeValidation, "kind must be one of avatars, covers, posts"
	case errors.Is(err, upload.ErrInvalidUserID):
		return ErrCodeValidation, "User id cannot be used in an object key"
	default:
		return ErrCodeInternal, "Internal server error"
	}
}

// writeServiceError writes the envelope for err returned by a core call.
// Field-level validation errors keep their field map. Internal errors are
// logged with the operation name.
func writeServiceError(w http.ResponseWriter, r *http.Request, op string, err error) {
	var ve *user.ValidationError
	if errors.As(err, &ve) {
		WriteValidationError(w, r.Context(), "Invalid profile fields", ve.Fields)
		return
	}

	code, message := ErrorCode(err)
	if code == ErrCodeInternal {
		slog.ErrorContext(r.Context(), "request failed",
			slog.String("operation", op),
			slog.String("error", err.Error()))
	}
	ctx := middleware.SetErrorCode(r.Context(), code)
	WriteError(w, ctx, StatusCodeMapping(code), code, message)
}

// writeJSON encodes v with the given status.
func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.ErrorContext(r.Context(), "failed to encode response", "error", err)
	}
}

// writeBadRequest reports a malformed request.
func writeBadRequest(w http.ResponseWriter, r *http.Request, message string) {
	ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
	WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, message)
}
