package vaultclient

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// EncodedImage is a document ready to send to an extraction function.
type EncodedImage struct {
	// DataURL is "data:<mime>;base64,<payload>".
	DataURL  string
	Base64   string
	MIMEType string
}

// EncodeFile reads path and encodes it. The MIME type comes from the file
// extension, falling back to content sniffing.
func EncodeFile(path string) (EncodedImage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return EncodedImage{}, fmt.Errorf("read %s: %w", path, err)
	}
	mimeType := mime.TypeByExtension(strings.ToLower(filepath.Ext(path)))
	if mimeType == "" {
		mimeType = http.DetectContentType(data)
	}
	return encode(data, mimeType), nil
}

// EncodeReader reads r to the end and encodes it as mimeType. An empty
// mimeType is sniffed from the content.
func EncodeReader(r io.Reader, mimeType string) (EncodedImage, error) {
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		return EncodedImage{}, fmt.Errorf("read image: %w", err)
	}
	if mimeType == "" {
		mimeType = http.DetectContentType(buf.Bytes())
	}
	return encode(buf.Bytes(), mimeType), nil
}

func encode(data []byte, mimeType string) EncodedImage {
	mimeType = mediaType(mimeType)
	b64 := base64.StdEncoding.EncodeToString(data)
	return EncodedImage{
		DataURL:  "data:" + mimeType + ";base64," + b64,
		Base64:   b64,
		MIMEType: mimeType,
	}
}

// mediaType drops parameters such as "; charset=utf-8", which both
// mime.TypeByExtension and http.DetectContentType may add.
func mediaType(s string) string {
	if mt, _, err := mime.ParseMediaType(s); err == nil {
		return mt
	}
	if i := strings.IndexByte(s, ';'); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}

// StripDataURLPrefix removes a leading "data:<mime>;base64," if present.
func StripDataURLPrefix(s string) string {
	if !strings.HasPrefix(s, "data:") {
		return s
	}
	if _, payload, ok := strings.Cut(s, ";base64,"); ok {
		return payload
	}
	return s
}
