package handler

import (
	"net/http"

	"github.com/pharmastock/pharmastock-backend/internal/stock/service"
	"github.com/pharmastock/pharmastock-backend/pkg/errors"
	"github.com/pharmastock/pharmastock-backend/pkg/httputil"
	"github.com/pharmastock/pharmastock-backend/pkg/logger"
)

// maxImportRows bounds one bulk rotation import
const maxImportRows = 20000

// RotationHandler handles product rotation endpoints
type RotationHandler struct {
	service *service.RotationService
	logger  *logger.Logger
}

// NewRotationHandler creates a new rotation handler
func NewRotationHandler(svc *service.RotationService, log *logger.Logger) *RotationHandler {
	return &RotationHandler{
		service: svc,
		logger:  log,
	}
}

// List lists rotations
func (h *RotationHandler) List(w http.ResponseWriter, r *http.Request) {
	page := httputil.ParsePagination(r)

	rotations, total, err := h.service.List(r.Context(), page.PerPage, page.Offset())
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSONWithMeta(w, http.StatusOK, rotations, page.Meta(total))
}

// Upsert creates or replaces the rotation of one product
func (h *RotationHandler) Upsert(w http.ResponseWriter, r *http.Request) {
	var req service.RotationInput
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	rot, err := h.service.Upsert(r.Context(), req)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, rot)
}

// Import upserts a JSON array of rotations in one transaction
func (h *RotationHandler) Import(w http.ResponseWriter, r *http.Request) {
	var rows []service.RotationInput
	if err := httputil.DecodeJSON(r, &rows); err != nil {
		httputil.Error(w, err)
		return
	}
	if len(rows) == 0 {
		httputil.Error(w, errors.BadRequest("no rotation rows given"))
		return
	}
	if len(rows) > maxImportRows {
		httputil.Error(w, errors.BadRequest("too many rotation rows in one import"))
		return
	}

	result, err := h.service.Import(r.Context(), rows)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, result)
}

// Lookup resolves a scanned code to a rotation and reports the matching strategy
func (h *RotationHandler) Lookup(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	if code == "" {
		httputil.Error(w, errors.Validation(map[string]string{"code": "this field is required"}))
		return
	}

	match, err := h.service.Lookup(r.Context(), code)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, match)
}

// Delete deletes a rotation
func (h *RotationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "rotation")
	if err != nil {
		httputil.Error(w, err)
		return
	}

	if err := h.service.Delete(r.Context(), id); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.NoContent(w)
}
