package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Zubair-mohamed/myclinic-backend/internal/domain/entities"
	"github.com/Zubair-mohamed/myclinic-backend/pkg/config"
	"github.com/Zubair-mohamed/myclinic-backend/pkg/retry"
)

// PushGatewaySender sends push notifications through an HTTP push gateway
type PushGatewaySender struct {
	apiKey     string
	httpClient *http.Client
	baseURL    string
	retryCfg   retry.Config
}

// NewPushGatewaySender creates a new push gateway sender
func NewPushGatewaySender(cfg config.NotificationConfig) (*PushGatewaySender, error) {
	if cfg.GatewayURL == "" || cfg.APIKey == "" {
		return nil, fmt.Errorf("PUSH_GATEWAY_URL and PUSH_GATEWAY_API_KEY must be set")
	}

	return &PushGatewaySender{
		apiKey: cfg.APIKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		baseURL:  cfg.GatewayURL,
		retryCfg: retry.SenderConfig(),
	}, nil
}

// PushMessage represents a push notification request
type PushMessage struct {
	UserID string            `json:"user_id"`
	Title  string            `json:"title"`
	Body   string            `json:"body"`
	Data   map[string]string `json:"data,omitempty"`
}

// PushResponse represents the gateway response
type PushResponse struct {
	MessageID string `json:"message_id"`
	Status    string `json:"status"`
}

// Channel identifies the push channel
func (s *PushGatewaySender) Channel() entities.NotificationChannel {
	return entities.ChannelPush
}

// Send delivers a push notification, retrying transient gateway failures
func (s *PushGatewaySender) Send(ctx context.Context, userID, title, body string, data map[string]string) (string, error) {
	message := PushMessage{
		UserID: userID,
		Title:  title,
		Body:   body,
		Data:   data,
	}

	var messageID string
	err := retry.Do(ctx, s.retryCfg, func() error {
		id, err := s.sendMessage(ctx, message)
		if err != nil {
			return err
		}
		messageID = id
		return nil
	})
	if err != nil {
		return "", err
	}

	return messageID, nil
}

// sendMessage posts a message to the push gateway
func (s *PushGatewaySender) sendMessage(ctx context.Context, message PushMessage) (string, error) {
	url := fmt.Sprintf("%s/v1/push", s.baseURL)

	jsonData, err := json.Marshal(message)
	if err != nil {
		return "", fmt.Errorf("failed to marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		return "", fmt.Errorf("push gateway error (status %d): %s", resp.StatusCode, string(respBody))
	}

	var pushResp PushResponse
	if err := json.Unmarshal(respBody, &pushResp); err != nil {
		return "", fmt.Errorf("failed to unmarshal response: %w", err)
	}

	if pushResp.MessageID == "" {
		return "", fmt.Errorf("no message ID in response")
	}

	return pushResp.MessageID, nil
}
