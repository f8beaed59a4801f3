package medication

import (
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/ehr/medsafety/internal/domain/canonical"
	"github.com/ehr/medsafety/internal/domain/safety"
	"github.com/ehr/medsafety/pkg/pagination"
)

type Handler struct {
	registry *Registry
}

func NewHandler(registry *Registry) *Handler {
	return &Handler{registry: registry}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/patients/:patient_id/medications/safety-check", h.SafetyCheck)
	api.GET("/patients/:patient_id/medications", h.ListMedications)
	api.POST("/medications/sync", h.Sync)
}

type safetyCheckRequest struct {
	ChangeEntry
	UseAI               *bool      `json:"use_ai,omitempty"`
	ExcludeMedicationID *uuid.UUID `json:"exclude_medication_id,omitempty"`
}

type safetyCheckResponse struct {
	CanonicalName     string           `json:"canonical_name"`
	MedicationStatus  string           `json:"medication_status"`
	Warnings          []safety.Warning `json:"warnings"`
	NeedsConfirmation bool             `json:"needs_confirmation"`
	ShortCircuited    bool             `json:"short_circuited"`
	Fingerprint       string           `json:"fingerprint"`
}

func (h *Handler) SafetyCheck(c echo.Context) error {
	patientID, err := uuid.Parse(c.Param("patient_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient_id")
	}
	var req safetyCheckRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if strings.TrimSpace(req.Name) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "name is required")
	}

	opts := safety.EvaluateOptions{UseAI: h.registry.UseAI(), ExcludeMedicationID: req.ExcludeMedicationID}
	if req.UseAI != nil {
		opts.UseAI = *req.UseAI
	}
	a, res, err := h.registry.Check(c.Request().Context(), patientID, req.ChangeEntry, opts)
	if err != nil {
		if errors.Is(err, safety.ErrInvalidOptions) || errors.Is(err, ErrPatientRequired) {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	warnings := a.Warnings
	if warnings == nil {
		warnings = []safety.Warning{}
	}
	return c.JSON(http.StatusOK, safetyCheckResponse{
		CanonicalName:     res.Canonical,
		MedicationStatus:  string(res.Status),
		Warnings:          warnings,
		NeedsConfirmation: req.flagged() || safety.NeedsConfirmation(warnings) || res.Status == canonical.StatusUnverified,
		ShortCircuited:    a.ShortCircuited,
		Fingerprint:       a.Fingerprint,
	})
}

func (h *Handler) Sync(c echo.Context) error {
	var req SyncRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.registry.Sync(c.Request().Context(), req); err != nil {
		if errors.Is(err, ErrPatientRequired) {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) ListMedications(c echo.Context) error {
	patientID, err := uuid.Parse(c.Param("patient_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient_id")
	}
	pg := pagination.FromContext(c)
	activeOnly := c.QueryParam("active") == "true"

	items, total, err := h.registry.List(c.Request().Context(), patientID, activeOnly, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if items == nil {
		items = []*Record{}
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}
