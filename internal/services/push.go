package services

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"github.com/arnold/partnerhub-api/internal/models"
	"github.com/sirupsen/logrus"
	"google.golang.org/api/option"
)

// PushService sends mobile push notifications via Firebase Cloud Messaging.
// It reaches users that have no live realtime connection.
type PushService struct {
	client *messaging.Client
	log    logrus.FieldLogger
}

// NewPushService initializes FCM. Without a service account, or when Firebase
// cannot be initialized, the service is returned disabled rather than failing.
func NewPushService(ctx context.Context, serviceAccountPath string, log logrus.FieldLogger) *PushService {
	if serviceAccountPath == "" {
		log.Info("FCM: no service account configured, push notifications disabled")
		return &PushService{log: log}
	}

	app, err := firebase.NewApp(ctx, nil, option.WithCredentialsFile(serviceAccountPath))
	if err != nil {
		log.WithError(err).Error("FCM: failed to initialize Firebase app")
		return &PushService{log: log}
	}

	client, err := app.Messaging(ctx)
	if err != nil {
		log.WithError(err).Error("FCM: failed to get messaging client")
		return &PushService{log: log}
	}

	log.Info("FCM: push notifications enabled")
	return &PushService{client: client, log: log}
}

func (p *PushService) Enabled() bool {
	return p != nil && p.client != nil
}

// PushNotification sends n to the recipient's registered device.
// No-op when push is disabled or the user has no device token.
func (p *PushService) PushNotification(ctx context.Context, to models.UserRef, n *models.InAppNotification) error {
	if !p.Enabled() || to.DeviceToken == "" {
		return nil
	}

	data := map[string]string{
		"notificationId": n.ID.String(),
		"type":           n.Type,
	}
	if n.LinkURL != nil {
		data["linkUrl"] = *n.LinkURL
	}

	_, err := p.client.Send(ctx, &messaging.Message{
		Token: to.DeviceToken,
		Notification: &messaging.Notification{
			Title: n.Title,
			Body:  n.Message,
		},
		Data: data,
	})
	if err != nil {
		return fmt.Errorf("fcm send to user %s: %w", to.ID, err)
	}
	return nil
}
