package handler

import (
	"fmt"
	"net/http"

	"github.com/pharmastock/pharmastock-backend/internal/stock/service"
	"github.com/pharmastock/pharmastock-backend/pkg/httputil"
	"github.com/pharmastock/pharmastock-backend/pkg/logger"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ExportHandler handles XLSX export endpoints
type ExportHandler struct {
	service *service.ExportService
	logger  *logger.Logger
}

// NewExportHandler creates a new export handler
func NewExportHandler(svc *service.ExportService, log *logger.Logger) *ExportHandler {
	return &ExportHandler{
		service: svc,
		logger:  log,
	}
}

// ExportSignalements serves the signalements matching the list filters as XLSX
func (h *ExportHandler) ExportSignalements(w http.ResponseWriter, r *http.Request) {
	filter, err := parseSignalementFilter(r)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	data, err := h.service.ExportSignalements(r.Context(), filter)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to generate signalement export")
		httputil.Error(w, err)
		return
	}

	writeXLSX(w, exportFilename("signalements"), data)
}

// ExportInventaire serves the items of one inventaire as XLSX
func (h *ExportHandler) ExportInventaire(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "inventaire")
	if err != nil {
		httputil.Error(w, err)
		return
	}

	data, err := h.service.ExportInventaire(r.Context(), id)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to generate inventaire export")
		httputil.Error(w, err)
		return
	}

	writeXLSX(w, exportFilename("inventaire"), data)
}

func writeXLSX(w http.ResponseWriter, filename string, data []byte) {
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Length", fmt.Sprintf("%d", len(data)))
	w.Write(data)
}
