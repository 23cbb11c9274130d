// Package messenger delivers replies through the Messenger Send API.
package messenger

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/custodia-labs/shopbot/internal/adapters/driven/httpapi"
	"github.com/custodia-labs/shopbot/internal/core/domain"
	"github.com/custodia-labs/shopbot/internal/core/ports/driven"
)

// Ensure Sender implements the interface.
var _ driven.MessageSender = (*Sender)(nil)

// Default configuration values.
const (
	DefaultGraphURL = "https://graph.facebook.com/v18.0"
	DefaultTimeout  = 15 * time.Second

	// MaxMessageRunes is the Send API limit for one text message.
	MaxMessageRunes = 2000
)

// Config holds configuration for the Send API client.
type Config struct {
	// PageAccessToken authenticates calls (required).
	PageAccessToken string

	// GraphURL is the versioned Graph API base URL.
	GraphURL string

	// SendsPerSecond paces outgoing calls (0 = unlimited).
	SendsPerSecond float64

	// MaxAttempts bounds retries of 429, 5xx and network failures.
	MaxAttempts int

	// Timeout is the per-attempt request timeout.
	Timeout time.Duration

	// HTTPClient overrides the transport, mainly for tests.
	HTTPClient *http.Client
}

// Sender posts text messages and typing indicators to page-scoped user ids.
type Sender struct {
	api      *httpapi.Client
	endpoint string
}

type recipient struct {
	ID string `json:"id"`
}

type textMessage struct {
	Text string `json:"text"`
}

type sendRequest struct {
	Recipient     recipient    `json:"recipient"`
	MessagingType string       `json:"messaging_type,omitempty"`
	Message       *textMessage `json:"message,omitempty"`
	SenderAction  string       `json:"sender_action,omitempty"`
}

// NewSender creates a Send API client.
func NewSender(cfg Config) (*Sender, error) {
	if cfg.PageAccessToken == "" {
		return nil, &domain.ConfigError{Field: "messenger.page_access_token", Reason: "required"}
	}
	if cfg.GraphURL == "" {
		cfg.GraphURL = DefaultGraphURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}

	endpoint := strings.TrimSuffix(cfg.GraphURL, "/") + "/me/messages?" +
		url.Values{"access_token": {cfg.PageAccessToken}}.Encode()

	return &Sender{
		api: httpapi.New(httpapi.Config{
			Name:              "messenger",
			Kind:              domain.ErrMessagingService,
			Timeout:           cfg.Timeout,
			Policy:            httpapi.DefaultPolicy().WithAttempts(cfg.MaxAttempts),
			RequestsPerSecond: cfg.SendsPerSecond,
			HTTPClient:        cfg.HTTPClient,
		}),
		endpoint: endpoint,
	}, nil
}

// Send delivers text, split into several messages when it exceeds the
// per-message limit.
func (s *Sender) Send(ctx context.Context, recipientID, text string) error {
	if recipientID == "" {
		return fmt.Errorf("%w: recipient id is required", domain.ErrInvalidArgument)
	}
	for _, part := range SplitMessage(text, MaxMessageRunes) {
		req := sendRequest{
			Recipient:     recipient{ID: recipientID},
			MessagingType: "RESPONSE",
			Message:       &textMessage{Text: part},
		}
		if err := s.api.PostJSON(ctx, s.endpoint, nil, req, nil); err != nil {
			return fmt.Errorf("sending message: %w", err)
		}
	}
	return nil
}

// SendTyping shows the typing indicator while a reply is prepared.
func (s *Sender) SendTyping(ctx context.Context, recipientID string) error {
	req := sendRequest{
		Recipient:    recipient{ID: recipientID},
		SenderAction: "typing_on",
	}
	if err := s.api.PostJSON(ctx, s.endpoint, nil, req, nil); err != nil {
		return fmt.Errorf("sending typing indicator: %w", err)
	}
	return nil
}

// SplitMessage breaks text into parts of at most limit runes, preferring
// to cut at whitespace. Blank text yields a single empty part so the
// caller still sends something.
func SplitMessage(text string, limit int) []string {
	text = strings.TrimSpace(text)
	if limit <= 0 || utf8.RuneCountInString(text) <= limit {
		return []string{text}
	}

	var parts []string
	for utf8.RuneCountInString(text) > limit {
		cut := byteOffset(text, limit)
		if r, _ := utf8.DecodeRuneInString(text[cut:]); !unicode.IsSpace(r) {
			if ws := strings.LastIndexFunc(text[:cut], unicode.IsSpace); ws > 0 {
				cut = ws
			}
		}
		parts = append(parts, strings.TrimSpace(text[:cut]))
		text = strings.TrimSpace(text[cut:])
	}
	if text != "" {
		parts = append(parts, text)
	}
	return parts
}

// byteOffset returns the byte index just past the first n runes of s.
func byteOffset(s string, n int) int {
	i := 0
	for pos := range s {
		if i == n {
			return pos
		}
		i++
	}
	return len(s)
}
