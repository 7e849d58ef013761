package blobstore

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/medvault/medvault/internal/platform/auth"
)

func newTestHandler(store BlobStore) *echo.Echo {
	e := echo.New()
	g := e.Group("/api/v1", func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if v := c.Request().Header.Get("X-Test-User"); v != "" {
				c.SetRequest(c.Request().WithContext(auth.WithUser(c.Request().Context(), uuid.MustParse(v))))
			}
			return next(c)
		}
	})
	NewBlobHandler(store, "https://vault.example", zerolog.Nop()).RegisterRoutes(g)
	return e
}

func multipartBody(t *testing.T, fileName, contentType, content string, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		w.WriteField(k, v)
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="`+fileName+`"`)
	h.Set("Content-Type", contentType)
	part, err := w.CreatePart(h)
	if err != nil {
		t.Fatal(err)
	}
	part.Write([]byte(content))
	w.Close()
	return &buf, w.FormDataContentType()
}

func upload(t *testing.T, e *echo.Echo, user uuid.UUID, fileName, contentType, content string, fields map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	body, ct := multipartBody(t, fileName, contentType, content, fields)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/uploads", body)
	req.Header.Set(echo.HeaderContentType, ct)
	req.Header.Set("X-Test-User", user.String())
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func get(e *echo.Echo, user uuid.UUID, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if user != uuid.Nil {
		req.Header.Set("X-Test-User", user.String())
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestBlobHandler_UploadAndDownload(t *testing.T) {
	e := newTestHandler(NewInMemoryBlobStore(0))
	user := uuid.New()

	rec := upload(t, e, user, "rx.jpg", "image/jpeg", jpegBytes, map[string]string{"category": "prescription"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var meta BlobMetadata
	if err := json.Unmarshal(rec.Body.Bytes(), &meta); err != nil {
		t.Fatal(err)
	}
	if meta.URL != "https://vault.example/api/v1/uploads/"+meta.ID {
		t.Errorf("unexpected url %s", meta.URL)
	}
	if meta.OwnerID != user.String() || meta.Category != "prescription" {
		t.Errorf("unexpected metadata %+v", meta)
	}

	rec = get(e, user, "/api/v1/uploads/"+meta.ID)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Body.String() != jpegBytes || rec.Header().Get(echo.HeaderContentType) != "image/jpeg" {
		t.Errorf("unexpected download %q %s", rec.Body.String(), rec.Header().Get(echo.HeaderContentType))
	}

	rec = get(e, user, "/api/v1/uploads/"+meta.ID+"/metadata")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), meta.Hash) {
		t.Errorf("unexpected metadata response %d %s", rec.Code, rec.Body.String())
	}
}

func TestBlobHandler_OtherUsersBlobIsNotFound(t *testing.T) {
	e := newTestHandler(NewInMemoryBlobStore(0))
	owner, other := uuid.New(), uuid.New()

	rec := upload(t, e, owner, "rx.jpg", "image/jpeg", jpegBytes, nil)
	var meta BlobMetadata
	json.Unmarshal(rec.Body.Bytes(), &meta)

	if rec := get(e, other, "/api/v1/uploads/"+meta.ID); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for another user, got %d", rec.Code)
	}
	if rec := get(e, uuid.Nil, "/api/v1/uploads/"+meta.ID); rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without user, got %d", rec.Code)
	}
}

func TestBlobHandler_UploadErrors(t *testing.T) {
	e := newTestHandler(NewInMemoryBlobStore(8))
	user := uuid.New()

	if rec := upload(t, e, user, "page.html", "text/html", "<html>", nil); rec.Code != http.StatusUnsupportedMediaType {
		t.Errorf("expected 415, got %d", rec.Code)
	}
	if rec := upload(t, e, user, "big.jpg", "image/jpeg", strings.Repeat("x", 9), nil); rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("expected 413, got %d", rec.Code)
	}
	if rec := upload(t, e, user, "a.jpg", "image/jpeg", "\xff\xd8\xff", map[string]string{"family_member_id": "nope"}); rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for bad family member, got %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/uploads", strings.NewReader("{}"))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.Header.Set("X-Test-User", user.String())
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 without file, got %d", rec.Code)
	}
}

func TestBlobHandler_List(t *testing.T) {
	store, err := NewFSBlobStore(t.TempDir(), 0)
	if err != nil {
		t.Fatal(err)
	}
	e := newTestHandler(store)
	user := uuid.New()

	upload(t, e, user, "a.jpg", "image/jpeg", jpegBytes, map[string]string{"category": "prescription"})
	upload(t, e, user, "b.pdf", "application/pdf", "%PDF-1.4", map[string]string{"category": "lab-report"})
	upload(t, e, uuid.New(), "c.pdf", "application/pdf", "%PDF-1.4", nil)

	rec := get(e, user, "/api/v1/uploads?category=lab-report")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var page struct {
		Data  []BlobMetadata `json:"data"`
		Total int            `json:"total"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &page); err != nil {
		t.Fatal(err)
	}
	if page.Total != 1 || page.Data[0].FileName != "b.pdf" || page.Data[0].URL == "" {
		t.Errorf("unexpected page %+v", page)
	}
}
