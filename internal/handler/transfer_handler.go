package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"noteenvelope-sync/internal/domain"
	"noteenvelope-sync/internal/service"
	"noteenvelope-sync/pkg/response"
)

const maxImportBytes = 64 << 20

type TransferHandler struct {
	service *service.TransferService
	logger  *slog.Logger
}

func NewTransferHandler(service *service.TransferService, logger *slog.Logger) *TransferHandler {
	return &TransferHandler{
		service: service,
		logger:  logger,
	}
}

func (h *TransferHandler) Export(w http.ResponseWriter, r *http.Request) {
	data, err := h.service.Export(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.Header().Set("Content-Disposition", `attachment; filename="noteenvelope-export.json"`)
	response.Success(w, data)
}

// Import accepts either a bare export document or one wrapped in the
// response envelope that Export produces.
func (h *TransferHandler) Import(w http.ResponseWriter, r *http.Request) {
	var body struct {
		domain.ExportData
		Data *domain.ExportData `json:"data"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxImportBytes)).Decode(&body); err != nil {
		response.BadRequest(w, "invalid import payload")
		return
	}
	data := &body.ExportData
	if body.Data != nil {
		data = body.Data
	}

	result, err := h.service.Import(r.Context(), data)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	response.Success(w, result)
}
