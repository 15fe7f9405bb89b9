// Package notifier sends SMS through the telephony provider's REST API.
// Within this service it is used only for opt-out/opt-in confirmations.
package notifier

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/ozanyurt/crm-comms-service/environments"
	"github.com/ozanyurt/crm-comms-service/pkg/logger"
)

type Client struct {
	httpClient *resty.Client
	messageURL string
	fromNumber string
}

type sendMessageRequest struct {
	To            []string `json:"to"`
	From          string   `json:"from"`
	Content       string   `json:"content"`
	SystemMessage bool     `json:"systemMessage"`
}

type sendMessageResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// NewClient builds the provider client. Retries are deliberately disabled:
// confirmation sends must not be retried synchronously inside a webhook
// request; a failure is reported to the caller and left there.
func NewClient(cfg environments.NotifierConfig) *Client {
	client := resty.New().
		SetTimeout(cfg.Timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		SetHeader("Authorization", cfg.APIKey)

	return &Client{
		httpClient: client,
		messageURL: cfg.MessageURL,
		fromNumber: cfg.FromNumber,
	}
}

// SendSMS delivers one message and returns an error when the provider does
// not accept it. The call is bounded by the configured client timeout.
func (c *Client) SendSMS(ctx context.Context, to, content string, systemMessage bool) error {
	payload := sendMessageRequest{
		To:            []string{to},
		From:          c.fromNumber,
		Content:       content,
		SystemMessage: systemMessage,
	}

	var sendResp sendMessageResponse

	startTime := time.Now()

	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(payload).
		SetResult(&sendResp).
		Post(c.messageURL)

	duration := time.Since(startTime)

	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}

	logger.Infof("SMS request to %s completed in %v (status: %d)", c.messageURL, duration, resp.StatusCode())

	if resp.StatusCode() != http.StatusOK &&
		resp.StatusCode() != http.StatusCreated &&
		resp.StatusCode() != http.StatusAccepted {
		return fmt.Errorf("unexpected status code: %d, body: %s", resp.StatusCode(), resp.String())
	}

	return nil
}

func (c *Client) GetURL() string {
	return c.messageURL
}
