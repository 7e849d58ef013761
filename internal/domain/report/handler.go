package report

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/medvault/medvault/internal/platform/apierr"
	"github.com/medvault/medvault/internal/platform/auth"
	"github.com/medvault/medvault/pkg/pagination"
)

const msgSaveFailed = "Failed to save medical report"

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts the report endpoints on an authenticated group.
func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/medical-reports", h.CreateMedicalReport)
	api.GET("/medical-reports", h.ListMedicalReports)
	api.GET("/medical-reports/:id", h.GetMedicalReport)
}

func (h *Handler) CreateMedicalReport(c echo.Context) error {
	userID, ok := auth.UserIDFromContext(c.Request().Context())
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "missing user")
	}
	var in SaveInput
	if err := c.Bind(&in); err != nil {
		return c.JSON(http.StatusBadRequest, apierr.Response{Error: "Invalid JSON body"})
	}

	m, err := h.svc.Save(c.Request().Context(), userID, in)
	if err != nil {
		var e *apierr.Error
		if !errors.As(err, &e) {
			e = &apierr.Error{Kind: apierr.KindPersistence, Err: err}
		}
		if e.Kind == apierr.KindInput {
			return c.JSON(http.StatusBadRequest, apierr.Response{Error: e.Err.Error()})
		}
		return c.JSON(e.Kind.HTTPStatus(), apierr.Response{
			Error:   msgSaveFailed,
			Details: e.Err.Error(),
			Kind:    e.Kind,
		})
	}
	return c.JSON(http.StatusCreated, m)
}

func (h *Handler) GetMedicalReport(c echo.Context) error {
	userID, ok := auth.UserIDFromContext(c.Request().Context())
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "missing user")
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	m, err := h.svc.Get(c.Request().Context(), userID, id)
	if errors.Is(err, ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "medical report not found")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, m)
}

func (h *Handler) ListMedicalReports(c echo.Context) error {
	userID, ok := auth.UserIDFromContext(c.Request().Context())
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "missing user")
	}
	var familyMemberID *uuid.UUID
	if v := c.QueryParam("family_member_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid family_member_id")
		}
		familyMemberID = &id
	}

	pg := pagination.FromContext(c)
	items, total, err := h.svc.List(c.Request().Context(), userID, familyMemberID, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	base := c.Request().URL.Path
	if familyMemberID != nil {
		base += "?family_member_id=" + familyMemberID.String()
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg).WithLinks(base))
}
