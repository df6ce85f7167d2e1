package handler

import (
	"net/http"
	"time"

	"github.com/pharmastock/pharmastock-backend/internal/stock/service"
	"github.com/pharmastock/pharmastock-backend/pkg/httputil"
	"github.com/pharmastock/pharmastock-backend/pkg/logger"
)

// InventaireHandler handles inventaire endpoints
type InventaireHandler struct {
	service *service.InventaireService
	logger  *logger.Logger
}

// NewInventaireHandler creates a new inventaire handler
func NewInventaireHandler(svc *service.InventaireService, log *logger.Logger) *InventaireHandler {
	return &InventaireHandler{
		service: svc,
		logger:  log,
	}
}

type createInventaireRequest struct {
	Name string `json:"name" validate:"required,max=200"`
}

type addItemRequest struct {
	ProductCode    string  `json:"product_code" validate:"required,digits,min=8,max=20"`
	Quantity       int     `json:"quantity" validate:"gte=0"`
	ExpirationDate *string `json:"expiration_date" validate:"omitempty,datetime=2006-01-02"`
	LotNumber      *string `json:"lot_number" validate:"omitempty,max=100"`
}

// List lists inventaires
func (h *InventaireHandler) List(w http.ResponseWriter, r *http.Request) {
	inventaires, err := h.service.List(r.Context())
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, inventaires)
}

// Create opens a new inventaire
func (h *InventaireHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createInventaireRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	inv, err := h.service.Create(r.Context(), req.Name)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, inv)
}

// Get gets an inventaire with its items and summary
func (h *InventaireHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "inventaire")
	if err != nil {
		httputil.Error(w, err)
		return
	}

	detail, err := h.service.Get(r.Context(), id)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, detail)
}

// AddItem adds a scanned line to an inventaire
func (h *InventaireHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "inventaire")
	if err != nil {
		httputil.Error(w, err)
		return
	}

	var req addItemRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	in := service.NewItem{
		ProductCode: req.ProductCode,
		Quantity:    req.Quantity,
		LotNumber:   req.LotNumber,
	}
	if req.ExpirationDate != nil {
		exp, err := parseDate("expiration_date", *req.ExpirationDate)
		if err != nil {
			httputil.Error(w, err)
			return
		}
		in.ExpirationDate = &exp
	}

	item, err := h.service.AddItem(r.Context(), id, in)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, item)
}

// Complete closes an inventaire
func (h *InventaireHandler) Complete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "inventaire")
	if err != nil {
		httputil.Error(w, err)
		return
	}

	inv, err := h.service.Complete(r.Context(), id)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, inv)
}

// Delete deletes an inventaire
func (h *InventaireHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "inventaire")
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

func exportFilename(prefix string) string {
	return prefix + "-" + time.Now().Format(dateLayout) + ".xlsx"
}
