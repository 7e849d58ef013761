// Package blobstore stores uploaded prescription and report images. A stored
// blob's URL is what a medical report row keeps in image_url.
package blobstore

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrBlobNotFound       = errors.New("blob not found")
	ErrFileTooLarge       = errors.New("file exceeds maximum allowed size")
	ErrInvalidContentType = errors.New("content type is not allowed")
	ErrMissingFileName    = errors.New("file name is required")
	ErrEmptyFile          = errors.New("file is empty")
	ErrInvalidCategory    = errors.New("category is not allowed")
)

// DefaultMaxFileSize is used when a store is created with a non-positive limit.
const DefaultMaxFileSize = 10 << 20

// AllowedCategories lists valid blob category values.
var AllowedCategories = map[string]bool{
	"prescription": true,
	"lab-report":   true,
	"imaging":      true,
	"discharge":    true,
	"other":        true,
}

// AllowedContentTypes are the document types the extraction functions read.
var AllowedContentTypes = map[string]bool{
	"image/png":       true,
	"image/jpeg":      true,
	"image/webp":      true,
	"image/heic":      true,
	"image/heif":      true,
	"application/pdf": true,
}

// BlobMetadata describes a stored blob.
type BlobMetadata struct {
	ID             string    `json:"id"`
	FileName       string    `json:"file_name"`
	ContentType    string    `json:"content_type"`
	Size           int64     `json:"size"`
	OwnerID        string    `json:"owner_id"`
	FamilyMemberID string    `json:"family_member_id,omitempty"`
	Category       string    `json:"category"`
	Hash           string    `json:"hash"`
	CreatedAt      time.Time `json:"created_at"`
	URL            string    `json:"url,omitempty"`
}

// BlobStore is implemented by the in-memory and filesystem backends. Reads
// are not owner-scoped here; the handler checks ownership.
type BlobStore interface {
	Upload(ctx context.Context, meta BlobMetadata, content io.Reader) (*BlobMetadata, error)
	Download(ctx context.Context, id string) (io.ReadCloser, *BlobMetadata, error)
	GetMetadata(ctx context.Context, id string) (*BlobMetadata, error)
	ListByOwner(ctx context.Context, ownerID, category string, limit, offset int) ([]*BlobMetadata, int, error)
}

// prepare validates meta and reads content up to maxBytes, returning the
// completed metadata and the bytes to store. An octet-stream or missing
// content type is sniffed from the bytes.
func prepare(meta BlobMetadata, content io.Reader, maxBytes int64) (BlobMetadata, []byte, error) {
	if meta.FileName == "" {
		return meta, nil, ErrMissingFileName
	}
	if meta.Category == "" {
		meta.Category = "other"
	}
	if !AllowedCategories[meta.Category] {
		return meta, nil, ErrInvalidCategory
	}
	if maxBytes <= 0 {
		maxBytes = DefaultMaxFileSize
	}

	data, err := io.ReadAll(io.LimitReader(content, maxBytes+1))
	if err != nil {
		return meta, nil, fmt.Errorf("reading content: %w", err)
	}
	if int64(len(data)) > maxBytes {
		return meta, nil, ErrFileTooLarge
	}
	if len(data) == 0 {
		return meta, nil, ErrEmptyFile
	}

	ct := strings.ToLower(strings.TrimSpace(meta.ContentType))
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	if ct == "" || ct == "application/octet-stream" {
		ct, _, _ = strings.Cut(http.DetectContentType(data), ";")
	}
	if !AllowedContentTypes[ct] {
		return meta, nil, fmt.Errorf("%w: %s", ErrInvalidContentType, ct)
	}

	meta.ContentType = ct
	meta.ID = uuid.New().String()
	meta.Size = int64(len(data))
	meta.Hash = fmt.Sprintf("%x", sha256.Sum256(data))
	meta.CreatedAt = time.Now().UTC()
	return meta, data, nil
}

// page returns one window of items, which callers sort newest first.
func page(items []*BlobMetadata, limit, offset int) []*BlobMetadata {
	if limit <= 0 {
		limit = 20
	}
	if offset > len(items) {
		offset = len(items)
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}
