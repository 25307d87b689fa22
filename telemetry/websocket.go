package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sarchlab/beltsim/conveyor"
)

// DefaultURL is where the collector listens unless configured otherwise.
const DefaultURL = "ws://localhost:8765"

// DefaultRetryDelay is the wait between a lost connection and the next dial.
const DefaultRetryDelay = 3 * time.Second

const writeTimeout = time.Second

// ErrNotConnected is returned by Send while no connection is open.
var ErrNotConnected = errors.New("telemetry: not connected")

// WebsocketSink holds one websocket connection to the collector and keeps
// redialing it after a fixed delay whenever it is lost.
type WebsocketSink struct {
	url        string
	dialer     *websocket.Dialer
	retryDelay time.Duration
	logger     *slog.Logger

	lock sync.Mutex
	conn *websocket.Conn
}

// NewWebsocketSink creates a sink for the collector at url.
func NewWebsocketSink(url string) *WebsocketSink {
	return &WebsocketSink{
		url:        url,
		dialer:     websocket.DefaultDialer,
		retryDelay: DefaultRetryDelay,
		logger:     slog.Default(),
	}
}

// WithRetryDelay sets the wait between a failure and the next dial.
func (s *WebsocketSink) WithRetryDelay(d time.Duration) *WebsocketSink {
	s.retryDelay = d
	return s
}

// WithLogger sets the logger for connection events and inbound messages.
func (s *WebsocketSink) WithLogger(l *slog.Logger) *WebsocketSink {
	s.logger = l
	return s
}

// URL returns the collector address.
func (s *WebsocketSink) URL() string {
	return s.url
}

// Connected tells whether a connection is currently open.
func (s *WebsocketSink) Connected() bool {
	s.lock.Lock()
	defer s.lock.Unlock()

	return s.conn != nil
}

// Send writes the counters as one JSON text message.
func (s *WebsocketSink) Send(c conveyor.Counters) error {
	payload, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("telemetry: encode counters: %w", err)
	}

	s.lock.Lock()
	defer s.lock.Unlock()

	if s.conn == nil {
		return ErrNotConnected
	}

	err = s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err == nil {
		err = s.conn.WriteMessage(websocket.TextMessage, payload)
	}

	if err != nil {
		s.conn.Close()
		s.conn = nil

		return fmt.Errorf("telemetry: write: %w", err)
	}

	return nil
}

// Run keeps the connection open until ctx is done.
func (s *WebsocketSink) Run(ctx context.Context) error {
	for {
		err := s.connectAndServe(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		s.logger.Warn("telemetry disconnected",
			"url", s.url,
			"error", err,
			"retry_in", s.retryDelay)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.retryDelay):
		}
	}
}

func (s *WebsocketSink) connectAndServe(ctx context.Context) error {
	conn, resp, err := s.dialer.DialContext(ctx, s.url, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}

	if err != nil {
		return fmt.Errorf("telemetry: dial %s: %w", s.url, err)
	}

	s.lock.Lock()
	s.conn = conn
	s.lock.Unlock()

	s.logger.Info("telemetry connected", "url", s.url)

	readErr := make(chan error, 1)
	go func() {
		readErr <- s.drain(conn)
	}()

	select {
	case <-ctx.Done():
		err = ctx.Err()
	case err = <-readErr:
	}

	s.lock.Lock()
	if s.conn == conn {
		s.conn = nil
	}
	s.lock.Unlock()

	conn.Close()

	return err
}

// drain reads until the connection fails, logging whatever the collector
// says.
func (s *WebsocketSink) drain(conn *websocket.Conn) error {
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("telemetry: read: %w", err)
		}

		s.logger.Info("telemetry message", "message", string(msg))
	}
}
