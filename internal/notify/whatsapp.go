package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shanmugaclinic/clinic-platform/pkg/logging"
)

const (
	defaultTwilioBaseURL = "https://api.twilio.com/2010-04-01"
	defaultUserAgent     = "clinic-platform-notify/0.1"
)

// WhatsAppSender delivers a WhatsApp message to a patient.
type WhatsAppSender interface {
	SendWhatsApp(ctx context.Context, to, body string) error
}

// TwilioConfig controls how the Twilio client behaves.
type TwilioConfig struct {
	BaseURL    string
	AccountSID string
	AuthToken  string
	From       string // WhatsApp-enabled sender, e.g. "whatsapp:+14155238886"
	Timeout    time.Duration
	MaxRetries int
	Backoff    time.Duration
	HTTPClient *http.Client
	Logger     *logging.Logger
	UserAgent  string
}

// TwilioClient sends WhatsApp messages through the Twilio REST API.
type TwilioClient struct {
	accountSID string
	authToken  string
	from       string
	baseURL    string
	httpClient *http.Client
	maxRetries int
	backoff    time.Duration
	logger     *logging.Logger
	userAgent  string
}

// NewTwilioClient creates a configured client with sane defaults.
func NewTwilioClient(cfg TwilioConfig) (*TwilioClient, error) {
	if strings.TrimSpace(cfg.AccountSID) == "" {
		return nil, errors.New("notify: twilio account SID is required")
	}
	if strings.TrimSpace(cfg.AuthToken) == "" {
		return nil, errors.New("notify: twilio auth token is required")
	}
	if strings.TrimSpace(cfg.From) == "" {
		return nil, errors.New("notify: twilio from number is required")
	}
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = defaultTwilioBaseURL
	}
	baseURL = strings.TrimRight(baseURL, "/")
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	maxRetries := cfg.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}
	backoff := cfg.Backoff
	if backoff <= 0 {
		backoff = 250 * time.Millisecond
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	userAgent := strings.TrimSpace(cfg.UserAgent)
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	return &TwilioClient{
		accountSID: cfg.AccountSID,
		authToken:  cfg.AuthToken,
		from:       cfg.From,
		baseURL:    baseURL,
		httpClient: httpClient,
		maxRetries: maxRetries,
		backoff:    backoff,
		logger:     logger,
		userAgent:  userAgent,
	}, nil
}

type twilioMessageResponse struct {
	SID          string `json:"sid"`
	Status       string `json:"status"`
	ErrorCode    *int   `json:"error_code"`
	ErrorMessage string `json:"error_message"`
	Message      string `json:"message"` // populated on API errors
	Code         int    `json:"code"`
}

// SendWhatsApp posts a message to the Twilio Messages endpoint. The "to"
// address must already carry the whatsapp: scheme and country code.
func (c *TwilioClient) SendWhatsApp(ctx context.Context, to, body string) error {
	if strings.TrimSpace(to) == "" {
		return errors.New("notify: recipient is required")
	}
	if strings.TrimSpace(body) == "" {
		return errors.New("notify: message body is required")
	}

	form := url.Values{}
	form.Set("From", c.from)
	form.Set("To", to)
	form.Set("Body", body)

	endpoint := fmt.Sprintf("%s/Accounts/%s/Messages.json", c.baseURL, c.accountSID)

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.backoff * time.Duration(attempt)):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
		if err != nil {
			return fmt.Errorf("notify: failed to build twilio request: %w", err)
		}
		req.SetBasicAuth(c.accountSID, c.authToken)
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.Header.Set("User-Agent", c.userAgent)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("notify: twilio request failed: %w", err)
			continue
		}

		payload, readErr := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		resp.Body.Close()
		if readErr != nil {
			lastErr = fmt.Errorf("notify: failed to read twilio response: %w", readErr)
			continue
		}

		if resp.StatusCode >= 500 {
			lastErr = fmt.Errorf("notify: twilio returned status %d", resp.StatusCode)
			continue
		}

		var decoded twilioMessageResponse
		if err := json.Unmarshal(payload, &decoded); err != nil {
			lastErr = fmt.Errorf("notify: failed to decode twilio response: %w", err)
			continue
		}

		if resp.StatusCode >= 400 {
			msg := decoded.Message
			if msg == "" {
				msg = decoded.ErrorMessage
			}
			return fmt.Errorf("notify: twilio rejected message (status %d, code %d): %s", resp.StatusCode, decoded.Code, msg)
		}

		c.logger.Info("whatsapp message sent", "to", to, "sid", decoded.SID, "status", decoded.Status)
		return nil
	}

	return lastErr
}

var _ WhatsAppSender = (*TwilioClient)(nil)
