package blobstore

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/medvault/medvault/internal/platform/auth"
	"github.com/medvault/medvault/pkg/pagination"
)

// BlobHandler serves uploads for the authenticated user.
type BlobHandler struct {
	store   BlobStore
	baseURL string
	logger  zerolog.Logger
}

// NewBlobHandler builds blob URLs as baseURL + "/api/v1/uploads/<id>". An empty
// baseURL gives host-relative URLs.
func NewBlobHandler(store BlobStore, baseURL string, logger zerolog.Logger) *BlobHandler {
	return &BlobHandler{
		store:   store,
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger.With().Str("component", "blobstore").Logger(),
	}
}

func (h *BlobHandler) RegisterRoutes(g *echo.Group) {
	g.POST("/uploads", h.handleUpload)
	g.GET("/uploads", h.handleList)
	g.GET("/uploads/:id/metadata", h.handleGetMetadata)
	g.GET("/uploads/:id", h.handleDownload)
}

func (h *BlobHandler) url(id string) string {
	return h.baseURL + "/api/v1/uploads/" + id
}

func errorJSON(c echo.Context, status int, msg string) error {
	return c.JSON(status, map[string]string{"error": msg})
}

func (h *BlobHandler) handleUpload(c echo.Context) error {
	userID, ok := auth.UserIDFromContext(c.Request().Context())
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "missing user")
	}

	file, err := c.FormFile("file")
	if err != nil {
		return errorJSON(c, http.StatusBadRequest, "file is required")
	}

	familyMemberID := c.FormValue("family_member_id")
	if familyMemberID != "" {
		if _, err := uuid.Parse(familyMemberID); err != nil {
			return errorJSON(c, http.StatusBadRequest, "invalid family_member_id")
		}
	}

	src, err := file.Open()
	if err != nil {
		return errorJSON(c, http.StatusInternalServerError, "failed to open uploaded file")
	}
	defer src.Close()

	meta := BlobMetadata{
		FileName:       file.Filename,
		ContentType:    file.Header.Get("Content-Type"),
		OwnerID:        userID.String(),
		FamilyMemberID: familyMemberID,
		Category:       c.FormValue("category"),
	}

	result, err := h.store.Upload(c.Request().Context(), meta, src)
	if err != nil {
		switch {
		case errors.Is(err, ErrFileTooLarge):
			return errorJSON(c, http.StatusRequestEntityTooLarge, err.Error())
		case errors.Is(err, ErrMissingFileName), errors.Is(err, ErrEmptyFile), errors.Is(err, ErrInvalidCategory):
			return errorJSON(c, http.StatusBadRequest, err.Error())
		case errors.Is(err, ErrInvalidContentType):
			return errorJSON(c, http.StatusUnsupportedMediaType, err.Error())
		default:
			h.logger.Error().Err(err).Str("user_id", userID.String()).Msg("upload failed")
			return errorJSON(c, http.StatusInternalServerError, "failed to store upload")
		}
	}

	result.URL = h.url(result.ID)
	h.logger.Info().Str("id", result.ID).Str("content_type", result.ContentType).Int64("size", result.Size).Msg("upload stored")
	return c.JSON(http.StatusCreated, result)
}

// ownedMetadata returns ErrBlobNotFound for blobs of other users so their
// existence is not revealed.
func (h *BlobHandler) ownedMetadata(c echo.Context) (*BlobMetadata, error) {
	userID, ok := auth.UserIDFromContext(c.Request().Context())
	if !ok {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "missing user")
	}
	meta, err := h.store.GetMetadata(c.Request().Context(), c.Param("id"))
	if err != nil {
		return nil, err
	}
	if meta.OwnerID != userID.String() {
		return nil, ErrBlobNotFound
	}
	return meta, nil
}

func (h *BlobHandler) lookupError(c echo.Context, err error) error {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he
	}
	if errors.Is(err, ErrBlobNotFound) {
		return errorJSON(c, http.StatusNotFound, err.Error())
	}
	h.logger.Error().Err(err).Str("id", c.Param("id")).Msg("blob lookup failed")
	return errorJSON(c, http.StatusInternalServerError, "failed to read upload")
}

func (h *BlobHandler) handleDownload(c echo.Context) error {
	if _, err := h.ownedMetadata(c); err != nil {
		return h.lookupError(c, err)
	}

	rc, meta, err := h.store.Download(c.Request().Context(), c.Param("id"))
	if err != nil {
		return h.lookupError(c, err)
	}
	defer rc.Close()

	c.Response().Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", meta.FileName))
	return c.Stream(http.StatusOK, meta.ContentType, rc)
}

func (h *BlobHandler) handleGetMetadata(c echo.Context) error {
	meta, err := h.ownedMetadata(c)
	if err != nil {
		return h.lookupError(c, err)
	}
	meta.URL = h.url(meta.ID)
	return c.JSON(http.StatusOK, meta)
}

func (h *BlobHandler) handleList(c echo.Context) error {
	userID, ok := auth.UserIDFromContext(c.Request().Context())
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "missing user")
	}
	pg := pagination.FromContext(c)

	items, total, err := h.store.ListByOwner(c.Request().Context(), userID.String(), c.QueryParam("category"), pg.Limit, pg.Offset)
	if err != nil {
		h.logger.Error().Err(err).Msg("list uploads failed")
		return errorJSON(c, http.StatusInternalServerError, "failed to list uploads")
	}
	if items == nil {
		items = []*BlobMetadata{}
	}
	for _, m := range items {
		m.URL = h.url(m.ID)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}
