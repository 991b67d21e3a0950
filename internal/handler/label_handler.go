package handler

import (
	"log/slog"
	"net/http"

	"noteenvelope-sync/internal/domain"
	"noteenvelope-sync/internal/service"
	"noteenvelope-sync/pkg/response"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
)

type LabelHandler struct {
	service  *service.LabelService
	validate *validator.Validate
	logger   *slog.Logger
}

func NewLabelHandler(service *service.LabelService, logger *slog.Logger) *LabelHandler {
	return &LabelHandler{
		service:  service,
		validate: validator.New(),
		logger:   logger,
	}
}

func (h *LabelHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateLabelRequest
	if !decode(w, r, h.validate, &req) {
		return
	}

	label, err := h.service.Create(r.Context(), &req)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	response.Created(w, label)
}

func (h *LabelHandler) List(w http.ResponseWriter, r *http.Request) {
	labels, err := h.service.List(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	response.Success(w, labels)
}

func (h *LabelHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req domain.UpdateLabelRequest
	if !decode(w, r, h.validate, &req) {
		return
	}

	label, err := h.service.Update(r.Context(), mux.Vars(r)["id"], &req)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	response.Success(w, label)
}

func (h *LabelHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeError(w, h.logger, err)
		return
	}
	response.NoContent(w)
}
