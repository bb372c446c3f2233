package api

import (
	"context"
	"net/http"
	"time"

	"github.com/onnwee/socialgraph/internal/middleware"
	"github.com/onnwee/socialgraph/internal/upload"
)

// URLSigner issues presigned upload URLs.
type URLSigner interface {
	GenerateSignedURL(ctx context.Context, req upload.SignedURLRequest) (*upload.SignedURLResponse, error)
}

// SignUploadRequest represents the request body for POST /uploads/sign.
type SignUploadRequest struct {
	Kind        string `json:"kind"`
	ContentType string `json:"contentType"`
	SizeBytes   int64  `json:"sizeBytes"`
}

// SignUploadResponse represents the response for POST /uploads/sign.
type SignUploadResponse struct {
	URL       string `json:"url"`
	Key       string `json:"key"`
	PublicURL string `json:"publicUrl"`
	ExpiresAt string `json:"expiresAt"` // RFC 3339
}

// UploadHandlers holds dependencies for upload HTTP handlers.
type UploadHandlers struct {
	signer URLSigner
}

// NewUploadHandlers creates a new UploadHandlers instance. A nil signer
// makes every request answer 503.
func NewUploadHandlers(signer URLSigner) *UploadHandlers {
	return &UploadHandlers{signer: signer}
}

// SignUpload handles POST /uploads/sign - generates a pre-signed upload URL
// under the caller's key prefix.
func (h *UploadHandlers) SignUpload(w http.ResponseWriter, r *http.Request) {
	if h.signer == nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeUnavailable)
		WriteError(w, ctx, http.StatusServiceUnavailable, ErrCodeUnavailable, "Uploads are not configured")
		return
	}

	var req SignUploadRequest
	if !decodeBody(w, r, &req) {
		return
	}

	fields := make(map[string]string)
	kind, err := upload.ParseKind(req.Kind)
	if err != nil {
		fields["kind"] = "must be one of avatars, covers, posts"
	}
	if req.ContentType == "" {
		fields["contentType"] = "is required"
	}
	if req.SizeBytes <= 0 {
		fields["sizeBytes"] = "must be positive"
	}
	if len(fields) > 0 {
		WriteValidationError(w, r.Context(), "Invalid upload request", fields)
		return
	}

	signed, err := h.signer.GenerateSignedURL(r.Context(), upload.SignedURLRequest{
		Kind:        kind,
		UserID:      middleware.GetUserID(r.Context()),
		ContentType: req.ContentType,
		SizeBytes:   req.SizeBytes,
	})
	if err != nil {
		writeServiceError(w, r, "sign_upload", err)
		return
	}

	writeJSON(w, r, http.StatusOK, SignUploadResponse{
		URL:       signed.URL,
		Key:       signed.Key,
		PublicURL: signed.PublicURL,
		ExpiresAt: signed.ExpiresAt.UTC().Format(time.RFC3339),
	})
}
