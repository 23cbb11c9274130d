// Package webhook receives Messenger platform events over HTTP and answers
// each text message through the chat service.
package webhook

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/custodia-labs/shopbot/internal/core/ports/driven"
	"github.com/custodia-labs/shopbot/internal/core/ports/driving"
	"github.com/custodia-labs/shopbot/internal/core/services"
	"github.com/custodia-labs/shopbot/internal/logger"
)

// maxBodyBytes caps one event delivery.
const maxBodyBytes = 1 << 20

// Handler answers verification requests and page events.
// Replies are produced in the background so deliveries are acknowledged
// before the model runs.
type Handler struct {
	chat        driving.ChatService
	sender      driven.MessageSender
	verifyToken string

	// replyTimeout bounds one background reply, including sends.
	replyTimeout time.Duration

	wg sync.WaitGroup
}

// NewHandler creates a webhook handler.
func NewHandler(chat driving.ChatService, sender driven.MessageSender, verifyToken string) *Handler {
	return &Handler{
		chat:         chat,
		sender:       sender,
		verifyToken:  verifyToken,
		replyTimeout: 2 * time.Minute,
	}
}

// ServeHTTP routes GET to verification and POST to event handling.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.handleVerify(w, r)
	case http.MethodPost:
		h.handleEvents(w, r)
	default:
		w.Header().Set("Allow", "GET, POST")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleVerify echoes hub.challenge when the subscription token matches.
func (h *Handler) handleVerify(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	challenge := q.Get("hub.challenge")
	if q.Get("hub.mode") != "subscribe" || challenge == "" {
		fmt.Fprint(w, "ok")
		return
	}

	token := q.Get("hub.verify_token")
	if h.verifyToken == "" || subtle.ConstantTimeCompare([]byte(token), []byte(h.verifyToken)) != 1 {
		logger.Warn("webhook: verification token mismatch")
		http.Error(w, "Verification token mismatch", http.StatusForbidden)
		return
	}

	logger.Info("webhook: subscription verified")
	w.Header().Set("Content-Type", "text/plain")
	fmt.Fprint(w, challenge)
}

// handleEvents acknowledges every delivery with 200 and queues a reply for
// each inbound text message.
func (h *Handler) handleEvents(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		logger.Warn("webhook: reading body: %v", err)
		fmt.Fprint(w, "ok")
		return
	}

	messages, err := ParseEvents(body)
	if err != nil {
		logger.Warn("webhook: %v", err)
	}
	for _, m := range messages {
		h.wg.Add(1)
		go h.reply(m)
	}

	fmt.Fprint(w, "ok")
}

// reply runs one chat turn for m and sends the answer, or the fallback
// message when the turn fails.
func (h *Handler) reply(m Message) {
	defer h.wg.Done()

	ctx, cancel := context.WithTimeout(context.Background(), h.replyTimeout)
	defer cancel()

	if err := h.sender.SendTyping(ctx, m.SenderID); err != nil {
		logger.Debug("webhook: typing indicator for %s: %v", m.SenderID, err)
	}

	answer, err := h.chat.Respond(ctx, m.Text)
	if err != nil {
		logger.Error("webhook: answering %s: %v", m.SenderID, err)
		answer = services.FallbackReply(err)
	}

	if err := h.sender.Send(ctx, m.SenderID, answer); err != nil {
		logger.Error("webhook: sending reply to %s: %v", m.SenderID, err)
	}
}

// Wait blocks until every queued reply has finished.
func (h *Handler) Wait() {
	h.wg.Wait()
}

// Message is one inbound text message.
type Message struct {
	SenderID string
	Text     string
}

type eventPayload struct {
	Object string `json:"object"`
	Entry  []struct {
		Messaging []struct {
			Sender struct {
				ID string `json:"id"`
			} `json:"sender"`
			Message *struct {
				Text   string `json:"text"`
				IsEcho bool   `json:"is_echo"`
			} `json:"message"`
		} `json:"messaging"`
	} `json:"entry"`
}

// ParseEvents extracts the text messages from a page delivery. Echoes of
// the page's own messages, deliveries, reads and attachments without text
// are skipped.
func ParseEvents(body []byte) ([]Message, error) {
	var payload eventPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decoding event: %w", err)
	}
	if payload.Object != "page" {
		return nil, nil
	}

	var out []Message
	for _, entry := range payload.Entry {
		for _, ev := range entry.Messaging {
			if ev.Message == nil || ev.Message.IsEcho || ev.Sender.ID == "" {
				continue
			}
			if strings.TrimSpace(ev.Message.Text) == "" {
				continue
			}
			out = append(out, Message{SenderID: ev.Sender.ID, Text: ev.Message.Text})
		}
	}
	return out, nil
}

// Server hosts a Handler on a TCP address.
type Server struct {
	mu       sync.Mutex
	addr     string
	handler  *Handler
	server   *http.Server
	listener net.Listener
}

// NewServer creates a server for handler on addr, e.g. ":8080".
func NewServer(addr string, handler *Handler) *Server {
	return &Server{addr: addr, handler: handler}
}

// Start listens and serves in the background.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	mux := http.NewServeMux()
	mux.Handle("/", s.handler)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, "ok")
	})

	s.server = &http.Server{
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("webhook: server stopped: %v", err)
		}
	}()

	return nil
}

// Addr returns the bound address once started.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return s.addr
	}
	return s.listener.Addr().String()
}

// Stop shuts the listener down and waits for queued replies.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	srv := s.server
	s.mu.Unlock()

	if srv == nil {
		return nil
	}
	err := srv.Shutdown(ctx)
	s.handler.Wait()
	return err
}
