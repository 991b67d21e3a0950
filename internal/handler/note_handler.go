package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"noteenvelope-sync/internal/domain"
	"noteenvelope-sync/internal/service"
	"noteenvelope-sync/pkg/response"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
)

type NoteHandler struct {
	service  *service.NoteService
	validate *validator.Validate
	logger   *slog.Logger
}

func NewNoteHandler(service *service.NoteService, logger *slog.Logger) *NoteHandler {
	return &NoteHandler{
		service:  service,
		validate: validator.New(),
		logger:   logger,
	}
}

func (h *NoteHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateNoteRequest
	if !decode(w, r, h.validate, &req) {
		return
	}

	note, err := h.service.Create(r.Context(), &req)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	response.Created(w, note)
}

func (h *NoteHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := domain.NoteFilter{
		EnvelopeID: q.Get("envelope_id"),
		LabelID:    q.Get("label_id"),
		Query:      q.Get("q"),
		Sort:       domain.NoteSort(q.Get("sort")),
	}
	if err := h.validate.Struct(filter); err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	notes, err := h.service.List(r.Context(), filter)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	response.Success(w, notes)
}

func (h *NoteHandler) Get(w http.ResponseWriter, r *http.Request) {
	note, err := h.service.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	response.Success(w, note)
}

func (h *NoteHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req domain.UpdateNoteRequest
	if !decode(w, r, h.validate, &req) {
		return
	}

	note, err := h.service.Update(r.Context(), mux.Vars(r)["id"], &req)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	response.Success(w, note)
}

func (h *NoteHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeError(w, h.logger, err)
		return
	}
	response.NoContent(w)
}

func (h *NoteHandler) ListVersions(w http.ResponseWriter, r *http.Request) {
	versions, err := h.service.ListVersions(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	response.Success(w, versions)
}

func (h *NoteHandler) RestoreVersion(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	version, err := strconv.ParseInt(vars["version"], 10, 64)
	if err != nil || version < 1 {
		response.BadRequest(w, "invalid version")
		return
	}

	note, err := h.service.RestoreVersion(r.Context(), vars["id"], version)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	response.Success(w, note)
}

func (h *NoteHandler) AddComment(w http.ResponseWriter, r *http.Request) {
	var req domain.AddCommentRequest
	if !decode(w, r, h.validate, &req) {
		return
	}

	note, err := h.service.AddComment(r.Context(), mux.Vars(r)["id"], &req)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	response.Created(w, note)
}

func (h *NoteHandler) DeleteComment(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	note, err := h.service.DeleteComment(r.Context(), vars["id"], vars["commentId"])
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	response.Success(w, note)
}
