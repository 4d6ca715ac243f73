package handler

import (
	"net/http"

	"storefront/internal/model"
	"storefront/internal/service"

	"github.com/rs/zerolog"
)

// NotificationHandler registers devices and sends broadcasts.
type NotificationHandler struct {
	devices service.DeviceService
	alerts  service.NotificationService
	logger  zerolog.Logger
}

// NewNotificationHandler creates a new notification handler.
func NewNotificationHandler(devices service.DeviceService, alerts service.NotificationService, logger zerolog.Logger) *NotificationHandler {
	return &NotificationHandler{
		devices: devices,
		alerts:  alerts,
		logger:  logger.With().Str("handler", "notification").Logger(),
	}
}

// RegisterDevice handles POST /api/devices.
func (h *NotificationHandler) RegisterDevice(w http.ResponseWriter, r *http.Request) {
	var req model.DeviceRequest
	if !decodeJSON(w, r, &req, h.logger) {
		return
	}

	device, err := h.devices.Register(r.Context(), &req)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	writeJSON(w, http.StatusCreated, device)
}

// Broadcast handles POST /api/notifications/broadcast.
func (h *NotificationHandler) Broadcast(w http.ResponseWriter, r *http.Request) {
	var req model.BroadcastRequest
	if !decodeJSON(w, r, &req, h.logger) {
		return
	}

	resp, err := h.alerts.Broadcast(r.Context(), &req)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	writeJSON(w, http.StatusAccepted, resp)
}
