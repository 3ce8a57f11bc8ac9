package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/tastyhub-service/internal/config"
	"github.com/spec-kit/tastyhub-service/internal/events"
)

// NotificationService handles emitting notifications for domain events.
type NotificationService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
	cfg        config.NotificationConfig
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, logger *zap.Logger, cfg config.NotificationConfig) *NotificationService {
	return &NotificationService{
		dispatcher: dispatcher,
		logger:     logger,
		cfg:        cfg,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventUserRegistered, n.handleUserRegistered)
	n.dispatcher.Subscribe(events.EventUserVerified, n.handleUserVerified)
	n.dispatcher.Subscribe(events.EventOnboardingStepCompleted, n.handleStepCompleted)
	n.dispatcher.Subscribe(events.EventOnboardingCompleted, n.handleOnboardingCompleted)
}

func (n *NotificationService) handleUserRegistered(ctx context.Context, event events.Event) error {
	n.logger.Info("UserRegistered", zap.Int64("user_id", event.UserID))
	n.sendEmailNotificationStub(ctx, event)
	return nil
}

func (n *NotificationService) handleUserVerified(ctx context.Context, event events.Event) error {
	n.logger.Info("UserVerified", zap.Int64("user_id", event.UserID))
	n.sendWebhookNotificationStub(ctx, event)
	return nil
}

func (n *NotificationService) handleStepCompleted(ctx context.Context, event events.Event) error {
	n.logger.Info("OnboardingStepCompleted", zap.Int64("user_id", event.UserID), zap.Any("payload", event.Payload))
	n.sendWebhookNotificationStub(ctx, event)
	return nil
}

func (n *NotificationService) handleOnboardingCompleted(ctx context.Context, event events.Event) error {
	n.logger.Info("OnboardingCompleted", zap.Int64("user_id", event.UserID), zap.Any("payload", event.Payload))
	n.sendEmailNotificationStub(ctx, event)
	n.sendWebhookNotificationStub(ctx, event)
	return nil
}

func (n *NotificationService) sendEmailNotificationStub(ctx context.Context, event events.Event) {
	if strings.TrimSpace(n.cfg.EmailFrom) == "" {
		return
	}
	n.logger.Debug("sendEmailNotificationStub",
		zap.String("from", n.cfg.EmailFrom),
		zap.Int64("user_id", event.UserID),
		zap.String("event_type", string(event.Type)))
}

func (n *NotificationService) sendWebhookNotificationStub(ctx context.Context, event events.Event) {
	if strings.TrimSpace(n.cfg.WebhookURL) == "" {
		return
	}
	n.logger.Debug("sendWebhookNotificationStub",
		zap.String("url", n.cfg.WebhookURL),
		zap.Int64("user_id", event.UserID),
		zap.String("event_type", string(event.Type)))
}
