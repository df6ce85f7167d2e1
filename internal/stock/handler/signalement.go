// Package handler exposes the stock service over HTTP.
package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/pharmastock/pharmastock-backend/internal/stock/domain"
	"github.com/pharmastock/pharmastock-backend/internal/stock/service"
	"github.com/pharmastock/pharmastock-backend/pkg/errors"
	"github.com/pharmastock/pharmastock-backend/pkg/httputil"
	"github.com/pharmastock/pharmastock-backend/pkg/logger"
)

const dateLayout = "2006-01-02"

// DisplayTagSellingThrough replaces the urgency tier of a signalement left to sell through
const DisplayTagSellingThrough = "ecoulement"

// SignalementHandler handles signalement endpoints
type SignalementHandler struct {
	service *service.SignalementService
	updater *service.UpdaterService
	logger  *logger.Logger
}

// NewSignalementHandler creates a new signalement handler
func NewSignalementHandler(svc *service.SignalementService, updater *service.UpdaterService, log *logger.Logger) *SignalementHandler {
	return &SignalementHandler{
		service: svc,
		updater: updater,
		logger:  log,
	}
}

// SignalementView is a signalement as rendered to clients
type SignalementView struct {
	*domain.Signalement
	DisplayTag string `json:"display_tag"`
}

// displayTag is the label shown for a signalement: "ecoulement" when it is
// left to sell through, its urgency tier otherwise.
func displayTag(s *domain.Signalement) string {
	if s.Status == domain.StatusSellingThrough {
		return DisplayTagSellingThrough
	}
	if s.ComputedUrgency != nil {
		return string(*s.ComputedUrgency)
	}
	return ""
}

func newSignalementView(s *domain.Signalement) SignalementView {
	return SignalementView{Signalement: s, DisplayTag: displayTag(s)}
}

type createSignalementRequest struct {
	ProductCode    string  `json:"product_code" validate:"required,digits,min=8,max=20"`
	Quantity       int     `json:"quantity" validate:"gte=1"`
	ExpirationDate string  `json:"expiration_date" validate:"required,datetime=2006-01-02"`
	Comment        *string `json:"comment" validate:"omitempty,max=1000"`
}

type updateSignalementRequest struct {
	Quantity       *int    `json:"quantity" validate:"omitempty,gte=1"`
	ExpirationDate *string `json:"expiration_date" validate:"omitempty,datetime=2006-01-02"`
	Comment        *string `json:"comment" validate:"omitempty,max=1000"`
}

type bulkStatusRequest struct {
	IDs    []string `json:"ids" validate:"required,min=1,max=500,dive,uuid"`
	Status string   `json:"status" validate:"required,oneof=PENDING IN_PROGRESS TO_DESTOCK TO_VERIFY SELLING_THROUGH DESTROYED"`
}

// List lists signalements
func (h *SignalementHandler) List(w http.ResponseWriter, r *http.Request) {
	filter, err := parseSignalementFilter(r)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	page := httputil.ParsePagination(r)
	filter.Limit = page.PerPage
	filter.Offset = page.Offset()

	signalements, total, err := h.service.List(r.Context(), filter)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	views := make([]SignalementView, len(signalements))
	for i, s := range signalements {
		views[i] = newSignalementView(s)
	}

	httputil.JSONWithMeta(w, http.StatusOK, views, page.Meta(total))
}

// Get gets a signalement by ID
func (h *SignalementHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "signalement")
	if err != nil {
		httputil.Error(w, err)
		return
	}

	sig, err := h.service.Get(r.Context(), id)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, newSignalementView(sig))
}

// Create creates a new signalement
func (h *SignalementHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createSignalementRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	exp, err := parseDate("expiration_date", req.ExpirationDate)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	sig, err := h.service.Create(r.Context(), &domain.Signalement{
		ProductCode:    req.ProductCode,
		Quantity:       req.Quantity,
		ExpirationDate: exp,
		Comment:        req.Comment,
	})
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, newSignalementView(sig))
}

// Update updates the quantity, expiration date or comment of a signalement
func (h *SignalementHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "signalement")
	if err != nil {
		httputil.Error(w, err)
		return
	}

	var req updateSignalementRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	changes := service.SignalementChanges{
		Quantity: req.Quantity,
		Comment:  req.Comment,
	}
	if req.ExpirationDate != nil {
		exp, err := parseDate("expiration_date", *req.ExpirationDate)
		if err != nil {
			httputil.Error(w, err)
			return
		}
		changes.ExpirationDate = &exp
	}

	sig, err := h.service.Update(r.Context(), id, changes)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, newSignalementView(sig))
}

// BulkStatus sets one status on many signalements
func (h *SignalementHandler) BulkStatus(w http.ResponseWriter, r *http.Request) {
	var req bulkStatusRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	updated, err := h.service.BulkUpdateStatus(r.Context(), req.IDs, domain.SignalementStatus(req.Status))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, map[string]int64{"updated": updated})
}

// Delete deletes a signalement
func (h *SignalementHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "signalement")
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

// Recompute recomputes the urgency of one signalement
func (h *SignalementHandler) Recompute(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "signalement")
	if err != nil {
		httputil.Error(w, err)
		return
	}

	rc, err := h.updater.RecomputeOne(r.Context(), id)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, map[string]interface{}{
		"signalement":    newSignalementView(rc.Signalement),
		"result":         rc.Result,
		"match_strategy": rc.Strategy,
	})
}

// RecomputeAll recomputes every open signalement and returns the counts
func (h *SignalementHandler) RecomputeAll(w http.ResponseWriter, r *http.Request) {
	summary, err := h.updater.RecomputeAllOpen(r.Context())
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, summary)
}

// parseSignalementFilter reads status, urgency, product_code and
// expiring_before. status and urgency accept comma separated lists.
func parseSignalementFilter(r *http.Request) (domain.SignalementFilter, error) {
	q := r.URL.Query()
	var filter domain.SignalementFilter

	for _, s := range splitList(q.Get("status")) {
		filter.Statuses = append(filter.Statuses, domain.SignalementStatus(strings.ToUpper(s)))
	}
	for _, u := range splitList(q.Get("urgency")) {
		filter.Urgencies = append(filter.Urgencies, domain.UrgencyTier(strings.ToLower(u)))
	}

	if code := strings.TrimSpace(q.Get("product_code")); code != "" {
		if strings.Trim(code, "0123456789") != "" {
			return filter, errors.Validation(map[string]string{"product_code": "must contain digits only"})
		}
		filter.ProductCodePrefix = code
	}

	if v := q.Get("expiring_before"); v != "" {
		before, err := parseDate("expiring_before", v)
		if err != nil {
			return filter, err
		}
		filter.ExpiringBefore = &before
	}

	return filter, nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseDate(field, v string) (time.Time, error) {
	t, err := time.Parse(dateLayout, v)
	if err != nil {
		return time.Time{}, errors.Validation(map[string]string{field: "must be a date formatted as " + dateLayout})
	}
	return t, nil
}
