// Package clients contains the notification sink drivers. Every driver
// implements service.NotificationSender and delivers fire-and-forget.
package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/tm-acme-shop/acme-shop-store-service/internal/config"
	"github.com/tm-acme-shop/acme-shop-store-service/internal/logging"
	"github.com/tm-acme-shop/acme-shop-store-service/internal/models"
	"github.com/tm-acme-shop/acme-shop-store-service/internal/service"
)

// Ensure HTTPNotificationClient implements service.NotificationSender
var _ service.NotificationSender = (*HTTPNotificationClient)(nil)

// HTTPNotificationClient posts notifications to the notification service.
type HTTPNotificationClient struct {
	baseURL    string
	httpClient *http.Client
	apiKey     string
	logger     *logging.Logger
}

// NewHTTPNotificationClient creates a new HTTP-based notification client.
func NewHTTPNotificationClient(cfg config.NotificationConfig) *HTTPNotificationClient {
	return &HTTPNotificationClient{
		baseURL: cfg.BaseURL,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		apiKey: cfg.APIKey,
		logger: logging.New("notification-client"),
	}
}

// Send emails a notification through the notification service.
func (c *HTTPNotificationClient) Send(ctx context.Context, n *models.Notification) error {
	logger := c.logger.WithContext(ctx)
	logger.Debug("Sending notification", logging.Fields{
		"recipient": n.Recipient,
		"type":      n.Type,
	})

	body, err := json.Marshal(n)
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/api/v2/notifications/email", c.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}

	c.setHeaders(ctx, req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		logger.Error("Failed to send notification", logging.Fields{
			"recipient": n.Recipient,
			"error":     err.Error(),
		})
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		return fmt.Errorf("notification service returned status %d", resp.StatusCode)
	}

	logger.Info("Notification sent", logging.Fields{
		"recipient": n.Recipient,
		"type":      n.Type,
	})
	return nil
}

// Close is a no-op. The client holds no connection of its own.
func (c *HTTPNotificationClient) Close() error {
	return nil
}

func (c *HTTPNotificationClient) setHeaders(ctx context.Context, req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	if requestID := logging.RequestIDFromContext(ctx); requestID != "" {
		req.Header.Set(logging.HeaderRequestID, requestID)
	}
}
