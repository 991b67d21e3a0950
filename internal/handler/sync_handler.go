package handler

import (
	"log/slog"
	"net/http"

	"noteenvelope-sync/internal/domain"
	"noteenvelope-sync/internal/service"
	"noteenvelope-sync/pkg/response"

	"github.com/go-playground/validator/v10"
)

type SyncHandler struct {
	syncService     *service.SyncService
	conflictService *service.ConflictService
	deviceService   *service.DeviceService
	validate        *validator.Validate
	logger          *slog.Logger
}

func NewSyncHandler(
	syncService *service.SyncService,
	conflictService *service.ConflictService,
	deviceService *service.DeviceService,
	logger *slog.Logger,
) *SyncHandler {
	return &SyncHandler{
		syncService:     syncService,
		conflictService: conflictService,
		deviceService:   deviceService,
		validate:        validator.New(),
		logger:          logger,
	}
}

func (h *SyncHandler) Status(w http.ResponseWriter, r *http.Request) {
	response.Success(w, h.syncService.Status(r.Context()))
}

func (h *SyncHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req domain.UpdateSyncSettingsRequest
	if !decode(w, r, h.validate, &req) {
		return
	}

	status, err := h.syncService.UpdateSettings(r.Context(), &req)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	response.Success(w, status)
}

// ListConflicts returns the persisted conflict log, optionally narrowed to
// one note.
func (h *SyncHandler) ListConflicts(w http.ResponseWriter, r *http.Request) {
	var (
		conflicts []domain.Conflict
		err       error
	)
	if noteID := r.URL.Query().Get("note_id"); noteID != "" {
		conflicts, err = h.conflictService.ListByRecord(r.Context(), noteID)
	} else {
		conflicts, err = h.conflictService.List(r.Context())
	}
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	response.Success(w, conflicts)
}

func (h *SyncHandler) ListNotices(w http.ResponseWriter, r *http.Request) {
	response.Success(w, h.syncService.Notices())
}

func (h *SyncHandler) ListDevices(w http.ResponseWriter, r *http.Request) {
	devices, err := h.deviceService.List(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	response.Success(w, devices)
}
