package blobstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
)

// FSBlobStore keeps each blob as two files under dir: <id> with the content
// and <id>.json with its metadata.
type FSBlobStore struct {
	dir      string
	maxBytes int64
}

// NewFSBlobStore creates dir if needed.
func NewFSBlobStore(dir string, maxBytes int64) (*FSBlobStore, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &FSBlobStore{dir: dir, maxBytes: maxBytes}, nil
}

// path rejects anything that is not a UUID so ids cannot escape dir.
func (s *FSBlobStore) path(id string) (string, error) {
	if _, err := uuid.Parse(id); err != nil {
		return "", ErrBlobNotFound
	}
	return filepath.Join(s.dir, id), nil
}

func (s *FSBlobStore) Upload(_ context.Context, meta BlobMetadata, content io.Reader) (*BlobMetadata, error) {
	meta, data, err := prepare(meta, content, s.maxBytes)
	if err != nil {
		return nil, err
	}
	p, err := s.path(meta.ID)
	if err != nil {
		return nil, err
	}

	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("encode metadata: %w", err)
	}
	if err := writeFileAtomic(p, data); err != nil {
		return nil, err
	}
	if err := writeFileAtomic(p+".json", metaJSON); err != nil {
		os.Remove(p)
		return nil, err
	}
	return &meta, nil
}

func (s *FSBlobStore) Download(ctx context.Context, id string) (io.ReadCloser, *BlobMetadata, error) {
	meta, err := s.GetMetadata(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	p, _ := s.path(id)
	data, err := os.ReadFile(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil, ErrBlobNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("read blob: %w", err)
	}
	return io.NopCloser(bytes.NewReader(data)), meta, nil
}

func (s *FSBlobStore) GetMetadata(_ context.Context, id string) (*BlobMetadata, error) {
	p, err := s.path(id)
	if err != nil {
		return nil, err
	}
	return readMetadata(p + ".json")
}

func (s *FSBlobStore) ListByOwner(_ context.Context, ownerID, category string, limit, offset int) ([]*BlobMetadata, int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, 0, fmt.Errorf("read upload dir: %w", err)
	}

	var matched []*BlobMetadata
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		meta, err := readMetadata(filepath.Join(s.dir, e.Name()))
		if err != nil {
			continue
		}
		if meta.OwnerID != ownerID || (category != "" && meta.Category != category) {
			continue
		}
		matched = append(matched, meta)
	}

	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })
	return page(matched, limit, offset), len(matched), nil
}

func readMetadata(path string) (*BlobMetadata, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrBlobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read metadata: %w", err)
	}
	var meta BlobMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("decode metadata %s: %w", filepath.Base(path), err)
	}
	return &meta, nil
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".upload-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename %s: %w", filepath.Base(path), err)
	}
	return nil
}
