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

type EnvelopeHandler struct {
	service  *service.EnvelopeService
	validate *validator.Validate
	logger   *slog.Logger
}

func NewEnvelopeHandler(service *service.EnvelopeService, logger *slog.Logger) *EnvelopeHandler {
	return &EnvelopeHandler{
		service:  service,
		validate: validator.New(),
		logger:   logger,
	}
}

func (h *EnvelopeHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateEnvelopeRequest
	if !decode(w, r, h.validate, &req) {
		return
	}

	envelope, err := h.service.Create(r.Context(), &req)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	response.Created(w, envelope)
}

func (h *EnvelopeHandler) List(w http.ResponseWriter, r *http.Request) {
	envelopes, err := h.service.List(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	response.Success(w, envelopes)
}

func (h *EnvelopeHandler) Get(w http.ResponseWriter, r *http.Request) {
	envelope, err := h.service.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	response.Success(w, envelope)
}

func (h *EnvelopeHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req domain.UpdateEnvelopeRequest
	if !decode(w, r, h.validate, &req) {
		return
	}

	envelope, err := h.service.Update(r.Context(), mux.Vars(r)["id"], &req)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	response.Success(w, envelope)
}

func (h *EnvelopeHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeError(w, h.logger, err)
		return
	}
	response.NoContent(w)
}
