package push

import (
	"context"
	"errors"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"

	"github.com/dulcepan/api/internal/platform/config"
	"github.com/dulcepan/api/internal/platform/textutil"
	"github.com/dulcepan/api/internal/services"
)

// fcmMulticastLimit is the maximum token batch FCM accepts per request.
const fcmMulticastLimit = 500

// FCMSender delivers push notifications through Firebase Cloud Messaging.
type FCMSender struct {
	client *messaging.Client
}

// NewFCMSender initialises the Admin SDK messaging client.
func NewFCMSender(ctx context.Context, cfg config.FirebaseConfig) (*FCMSender, error) {
	if cfg.ProjectID == "" {
		return nil, errors.New("push: firebase project id is required")
	}

	var clientOpts []option.ClientOption
	if cfg.CredentialsFile != "" {
		clientOpts = append(clientOpts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: cfg.ProjectID}, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("push: initialise firebase app: %w", err)
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("push: initialise messaging client: %w", err)
	}
	return &FCMSender{client: client}, nil
}

// SendToTokens multicasts the notification, batching per FCM limits, and
// reports tokens FCM no longer recognises so callers can unregister them.
func (s *FCMSender) SendToTokens(ctx context.Context, tokens []string, push services.PushMessage) (services.PushReport, error) {
	if s == nil || s.client == nil {
		return services.PushReport{}, errors.New("push: sender not initialised")
	}
	if len(tokens) == 0 {
		return services.PushReport{}, nil
	}

	// FCM rejects messages with blank data keys.
	data := textutil.NormalizeStringMap(push.Data)

	var report services.PushReport
	for start := 0; start < len(tokens); start += fcmMulticastLimit {
		end := start + fcmMulticastLimit
		if end > len(tokens) {
			end = len(tokens)
		}
		batch := tokens[start:end]

		response, err := s.client.SendEachForMulticast(ctx, &messaging.MulticastMessage{
			Tokens: batch,
			Notification: &messaging.Notification{
				Title: push.Title,
				Body:  push.Body,
			},
			Data: data,
		})
		if err != nil {
			return report, fmt.Errorf("push: multicast: %w", err)
		}

		report.Sent += response.SuccessCount
		report.Failed += response.FailureCount
		for idx, result := range response.Responses {
			if result.Error != nil && messaging.IsUnregistered(result.Error) {
				report.StaleTokens = append(report.StaleTokens, batch[idx])
			}
		}
	}
	return report, nil
}
