package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"raaibar/backend/internal/config"
	"raaibar/backend/internal/models"

	"github.com/gorilla/websocket"
)

// Config holds what a Syncer needs to reach the server.
type Config struct {
	// BaseURL of the server, e.g. "http://localhost:3000".
	BaseURL string
	Token   string
	// HTTPClient is used for pulls and submits. If nil, http.DefaultClient is used.
	HTTPClient *http.Client
	// Dialer opens the push channel. If nil, websocket.DefaultDialer is used.
	Dialer *websocket.Dialer
	// PullInterval defaults to config.PullInterval.
	PullInterval time.Duration
	Logger       *slog.Logger
}

// APIError is a non-2xx response.
type APIError struct {
	Status  int
	Code    string `json:"code"`
	Message string `json:"error"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("client: %d %s: %s", e.Status, e.Code, e.Message)
}

// Syncer keeps a Timeline converged with the server: one pull on start,
// a pull every interval and after each send, and pushes in between.
type Syncer struct {
	Timeline *Timeline

	baseURL    string
	token      string
	httpClient *http.Client
	dialer     *websocket.Dialer
	interval   time.Duration
	log        *slog.Logger
	now        func() time.Time
}

func NewSyncer(cfg Config, timeline *Timeline) (*Syncer, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("client: BaseURL is required")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("client: invalid BaseURL %q: %w", cfg.BaseURL, err)
	}

	s := &Syncer{
		Timeline:   timeline,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		token:      cfg.Token,
		httpClient: cfg.HTTPClient,
		dialer:     cfg.Dialer,
		interval:   cfg.PullInterval,
		log:        cfg.Logger,
		now:        time.Now,
	}
	if s.httpClient == nil {
		s.httpClient = http.DefaultClient
	}
	if s.dialer == nil {
		s.dialer = websocket.DefaultDialer
	}
	if s.interval <= 0 {
		s.interval = config.PullInterval
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	return s, nil
}

// Pull replaces the timeline with the server's history.
func (s *Syncer) Pull(ctx context.Context) error {
	var history []models.Message
	path := "/messages/" + url.PathEscape(s.Timeline.Peer)
	if err := s.doRequest(ctx, http.MethodGet, path, nil, &history); err != nil {
		return err
	}
	s.Timeline.Replace(history)
	return nil
}

// Send shows text optimistically, submits it and pulls. The optimistic copy
// stays visible if the submit fails; the next successful pull removes it.
func (s *Syncer) Send(ctx context.Context, text string) (models.Message, error) {
	s.Timeline.AddOptimistic(text, s.now())

	var stored models.Message
	body := models.SendMessagePayload{Receiver: s.Timeline.Peer, Text: text}
	if err := s.doRequest(ctx, http.MethodPost, "/messages", body, &stored); err != nil {
		return models.Message{}, err
	}
	if err := s.Pull(ctx); err != nil {
		s.log.Warn("pull after send failed", "error", err)
	}
	return stored, nil
}

func (s *Syncer) SetTyping(ctx context.Context, typing bool) error {
	body := models.TypingPayload{Receiver: s.Timeline.Peer, Typing: typing}
	return s.doRequest(ctx, http.MethodPost, "/typing", body, nil)
}

// Run opens the push channel, pulls once and keeps pulling every interval
// until ctx ends or the connection drops.
func (s *Syncer) Run(ctx context.Context) error {
	conn, err := s.dial(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	if err := s.Pull(ctx); err != nil {
		return err
	}

	readErr := make(chan error, 1)
	go func() { readErr <- s.readPushes(conn) }()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-readErr:
			return err
		case <-ticker.C:
			if err := s.Pull(ctx); err != nil {
				s.log.Warn("periodic pull failed", "error", err)
			}
		}
	}
}

func (s *Syncer) dial(ctx context.Context) (*websocket.Conn, error) {
	wsURL := "ws" + strings.TrimPrefix(s.baseURL, "http") + "/ws"
	header := http.Header{}
	header.Set("Authorization", "Bearer "+s.token)

	conn, resp, err := s.dialer.DialContext(ctx, wsURL, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("client: dial %s: %s: %w", wsURL, resp.Status, err)
		}
		return nil, fmt.Errorf("client: dial %s: %w", wsURL, err)
	}
	return conn, nil
}

func (s *Syncer) readPushes(conn *websocket.Conn) error {
	for {
		var frame models.Frame
		if err := conn.ReadJSON(&frame); err != nil {
			return fmt.Errorf("client: push channel closed: %w", err)
		}

		switch frame.Name {
		case models.EventReceiveMessage:
			var msg models.Message
			if err := json.Unmarshal(frame.Payload, &msg); err != nil {
				s.log.Warn("bad message push", "error", err)
				continue
			}
			s.Timeline.ApplyPush(msg)
		case models.EventDisplayTyping, models.EventHideTyping:
			var state models.TypingState
			if err := json.Unmarshal(frame.Payload, &state); err != nil {
				s.log.Warn("bad typing push", "error", err)
				continue
			}
			s.Timeline.ApplyTyping(frame.Name, state)
		case models.EventSessionReplaced:
			return errors.New("client: session replaced by another connection")
		default:
			s.log.Debug("push ignored", "event", frame.Name)
		}
	}
}

// doRequest sends body as JSON and decodes a 2xx response into out.
func (s *Syncer) doRequest(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("client: encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("client: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer "+s.token)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("client: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("client: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode}
		_ = json.Unmarshal(data, apiErr)
		return apiErr
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("client: decode response: %w", err)
	}
	return nil
}
