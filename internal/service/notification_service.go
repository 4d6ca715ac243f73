package service

import (
	"context"
	"strings"

	"storefront/internal/model"
	"storefront/internal/push"
	"storefront/internal/repository"

	"github.com/rs/zerolog"
)

// deviceService implements DeviceService.
type deviceService struct {
	deviceRepo repository.DeviceRepository
	logger     zerolog.Logger
}

// NewDeviceService creates a new device service.
func NewDeviceService(deviceRepo repository.DeviceRepository, logger zerolog.Logger) DeviceService {
	return &deviceService{
		deviceRepo: deviceRepo,
		logger:     logger.With().Str("service", "device").Logger(),
	}
}

// Register creates the device token or refreshes its platform and phone.
func (s *deviceService) Register(ctx context.Context, req *model.DeviceRequest) (*model.DeviceToken, error) {
	token := strings.TrimSpace(req.Token)
	if token == "" {
		return nil, model.MissingField("token")
	}
	platform := model.Platform(strings.ToLower(strings.TrimSpace(req.Platform)))
	if !platform.Valid() {
		return nil, model.ErrInvalidPlatform
	}

	d := &model.DeviceToken{Token: token, Platform: platform}
	if req.PhoneNumber != nil && strings.TrimSpace(*req.PhoneNumber) != "" {
		phone := strings.TrimSpace(*req.PhoneNumber)
		d.PhoneNumber = &phone
	}

	if err := s.deviceRepo.Upsert(ctx, d); err != nil {
		return nil, err
	}

	s.logger.Debug().Int64("device_id", d.ID).Str("platform", string(platform)).Msg("device registered")
	return d, nil
}

// notificationService implements NotificationService.
type notificationService struct {
	alertRepo  repository.AlertRepository
	deviceRepo repository.DeviceRepository
	jobs       Dispatcher
	logger     zerolog.Logger
}

// NewNotificationService creates a new notification service.
func NewNotificationService(
	alertRepo repository.AlertRepository,
	deviceRepo repository.DeviceRepository,
	jobs Dispatcher,
	logger zerolog.Logger,
) NotificationService {
	return &notificationService{
		alertRepo:  alertRepo,
		deviceRepo: deviceRepo,
		jobs:       jobs,
		logger:     logger.With().Str("service", "notification").Logger(),
	}
}

// Broadcast records an alert and queues one push per registered device. The
// alert is marked sent once every device has been queued.
func (s *notificationService) Broadcast(ctx context.Context, req *model.BroadcastRequest) (*model.BroadcastResponse, error) {
	title := strings.TrimSpace(req.Title)
	message := strings.TrimSpace(req.Message)
	if title == "" {
		return nil, model.MissingField("title")
	}
	if message == "" {
		return nil, model.MissingField("message")
	}

	alert := &model.Alert{Title: title, Message: message}
	if err := s.alertRepo.Create(ctx, alert); err != nil {
		return nil, err
	}

	devices, err := s.deviceRepo.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	queued := push.FanOut(ctx, s.jobs, devices, title, message, s.logger)

	if queued == len(devices) {
		if err := s.alertRepo.MarkSent(ctx, alert.ID); err != nil {
			return nil, err
		}
		alert.IsSent = true
	}

	s.logger.Info().
		Int64("alert_id", alert.ID).
		Int("devices", len(devices)).
		Int("queued", queued).
		Bool("sent", alert.IsSent).
		Msg("broadcast queued")

	return &model.BroadcastResponse{AlertID: alert.ID, Queued: queued}, nil
}
