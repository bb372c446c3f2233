// Package upload issues presigned PUT URLs so clients send images straight
// to R2. The server only ever stores the resulting public URL.
package upload

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/onnwee/socialgraph/internal/validate"
)

// Kind is the top-level key prefix of an upload.
type Kind string

const (
	KindAvatar Kind = "avatars"
	KindCover  Kind = "covers"
	KindPost   Kind = "posts"
)

// Validation errors
var (
	ErrUnsupportedType = errors.New("unsupported content type")
	ErrFileTooLarge    = errors.New("file size exceeds maximum allowed")
	ErrInvalidSize     = errors.New("file size must be positive")
	ErrInvalidKind     = errors.New("invalid upload kind")
	ErrInvalidUserID   = errors.New("invalid user ID")
)

// ParseKind accepts the plural prefix or its singular form.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "avatars", "avatar":
		return KindAvatar, nil
	case "covers", "cover":
		return KindCover, nil
	case "posts", "post":
		return KindPost, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidKind, s)
}

// SignedURLRequest describes the object a client wants to upload.
type SignedURLRequest struct {
	Kind        Kind
	UserID      string
	ContentType string
	SizeBytes   int64
}

// SignedURLResponse is returned to the client.
type SignedURLResponse struct {
	URL       string    `json:"url"`
	Key       string    `json:"key"`
	PublicURL string    `json:"publicUrl"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Service handles generating signed URLs for R2 uploads.
type Service struct {
	presignClient *s3.PresignClient
	bucketName    string
	publicBaseURL string
	maxSizeBytes  int64
	urlExpiry     time.Duration
	timeNow       func() time.Time
	newID         func() string
}

// ServiceConfig holds configuration for the upload service.
type ServiceConfig struct {
	BucketName      string
	AccessKeyID     string
	SecretAccessKey string
	Endpoint        string
	// PublicBaseURL serves uploaded objects. Defaults to Endpoint/BucketName.
	PublicBaseURL    string
	MaxSizeMB        int
	URLExpiryMinutes int
}

// NewService creates a new upload service with the given configuration.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.BucketName == "" {
		return nil, errors.New("bucket name is required")
	}
	if cfg.AccessKeyID == "" {
		return nil, errors.New("access key ID is required")
	}
	if cfg.SecretAccessKey == "" {
		return nil, errors.New("secret access key is required")
	}
	if cfg.Endpoint == "" {
		return nil, errors.New("endpoint is required")
	}

	if cfg.MaxSizeMB <= 0 {
		cfg.MaxSizeMB = 10
	}
	if cfg.URLExpiryMinutes <= 0 {
		cfg.URLExpiryMinutes = 5
	}
	if cfg.PublicBaseURL == "" {
		cfg.PublicBaseURL = strings.TrimRight(cfg.Endpoint, "/") + "/" + cfg.BucketName
	}

	// R2 is S3-compatible with region "auto" and path-style addressing.
	s3Client := s3.New(s3.Options{
		Region: "auto",
		Credentials: aws.NewCredentialsCache(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		)),
		BaseEndpoint: aws.String(cfg.Endpoint),
		UsePathStyle: true,
	})

	return &Service{
		presignClient: s3.NewPresignClient(s3Client),
		bucketName:    cfg.BucketName,
		publicBaseURL: strings.TrimRight(cfg.PublicBaseURL, "/"),
		maxSizeBytes:  int64(cfg.MaxSizeMB) * 1024 * 1024,
		urlExpiry:     time.Duration(cfg.URLExpiryMinutes) * time.Minute,
		timeNow:       time.Now,
		newID:         func() string { return uuid.New().String() },
	}, nil
}

// Validate checks type and size and returns the normalized content type.
func (s *Service) Validate(contentType string, sizeBytes int64) (string, error) {
	ct, err := validate.ImageFile(contentType, sizeBytes, s.maxSizeBytes)
	switch {
	case err == nil:
		return ct, nil
	case errors.Is(err, validate.ErrInvalidMIMEType), errors.Is(err, validate.ErrEmpty):
		return "", fmt.Errorf("%w: %q", ErrUnsupportedType, contentType)
	case errors.Is(err, validate.ErrFileTooLarge):
		return "", ErrFileTooLarge
	default:
		return "", ErrInvalidSize
	}
}

// ObjectKey builds {kind}/{userID}/{id}{ext}.
func ObjectKey(kind Kind, userID, id, contentType string) (string, error) {
	switch kind {
	case KindAvatar, KindCover, KindPost:
	default:
		return "", ErrInvalidKind
	}
	ext, ok := validate.ImageExtensions[contentType]
	if !ok {
		return "", ErrUnsupportedType
	}
	owner := sanitizePathComponent(userID)
	if owner == "" || owner != userID {
		return "", ErrInvalidUserID
	}
	return fmt.Sprintf("%s/%s/%s%s", kind, owner, id, ext), nil
}

// sanitizePathComponent keeps only ASCII letters, digits, hyphens and underscores.
func sanitizePathComponent(s string) string {
	var b strings.Builder
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// GenerateSignedURL validates req and presigns a PUT for a fresh key.
func (s *Service) GenerateSignedURL(ctx context.Context, req SignedURLRequest) (*SignedURLResponse, error) {
	contentType, err := s.Validate(req.ContentType, req.SizeBytes)
	if err != nil {
		return nil, err
	}
	key, err := ObjectKey(req.Kind, req.UserID, s.newID(), contentType)
	if err != nil {
		return nil, err
	}

	presigned, err := s.presignClient.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucketName),
		Key:           aws.String(key),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(req.SizeBytes),
	}, func(opts *s3.PresignOptions) {
		opts.Expires = s.urlExpiry
	})
	if err != nil {
		return nil, fmt.Errorf("failed to presign request: %w", err)
	}

	return &SignedURLResponse{
		URL:       presigned.URL,
		Key:       key,
		PublicURL: s.publicBaseURL + "/" + key,
		ExpiresAt: s.timeNow().Add(s.urlExpiry),
	}, nil
}

// MaxSizeBytes returns the configured upload limit.
func (s *Service) MaxSizeBytes() int64 {
	return s.maxSizeBytes
}
