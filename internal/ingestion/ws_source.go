package ingestion

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"voltammetry-lab/internal/observability"
)

// WSConfig configures the websocket frame source.
type WSConfig struct {
	// ReconnectDelay is the initial delay before a reconnect attempt.
	ReconnectDelay time.Duration
	// MaxReconnectDelay caps the doubling backoff.
	MaxReconnectDelay time.Duration
	// ReadTimeout closes a silent connection. Zero disables it.
	ReadTimeout time.Duration
	// HandshakeTimeout bounds each dial.
	HandshakeTimeout time.Duration
}

// DefaultWSConfig returns default websocket configuration.
func DefaultWSConfig() WSConfig {
	return WSConfig{
		ReconnectDelay:    1 * time.Second,
		MaxReconnectDelay: 30 * time.Second,
		ReadTimeout:       5 * time.Minute,
		HandshakeTimeout:  10 * time.Second,
	}
}

// WSFrameSource receives JSON frames from a potentiostat bridge over a websocket.
// The bridge pushes one text message per sweep; nothing is sent back.
type WSFrameSource struct {
	endpoint string
	cfg      WSConfig
	log      logrus.FieldLogger
}

// NewWSFrameSource creates a source for endpoint. A nil config uses defaults.
func NewWSFrameSource(endpoint string, cfg *WSConfig, log logrus.FieldLogger) *WSFrameSource {
	c := DefaultWSConfig()
	if cfg != nil {
		c = *cfg
	}
	if c.ReconnectDelay <= 0 {
		c.ReconnectDelay = DefaultWSConfig().ReconnectDelay
	}
	if c.MaxReconnectDelay < c.ReconnectDelay {
		c.MaxReconnectDelay = c.ReconnectDelay
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &WSFrameSource{
		endpoint: endpoint,
		cfg:      c,
		log:      log.WithField("component", "ws-source"),
	}
}

// Subscribe dials the bridge and streams frames until ctx is cancelled.
// The first dial must succeed; later disconnects are retried with backoff.
func (s *WSFrameSource) Subscribe(ctx context.Context) (<-chan *Frame, error) {
	conn, err := s.dial(ctx)
	if err != nil {
		return nil, err
	}
	s.log.WithField("endpoint", s.endpoint).Info("connected")

	out := make(chan *Frame, 64)
	go s.run(ctx, conn, out)
	return out, nil
}

func (s *WSFrameSource) dial(ctx context.Context) (*websocket.Conn, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: s.cfg.HandshakeTimeout,
	}
	conn, _, err := dialer.DialContext(ctx, s.endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("websocket dial: %w", err)
	}
	return conn, nil
}

func (s *WSFrameSource) run(ctx context.Context, conn *websocket.Conn, out chan<- *Frame) {
	defer close(out)

	for {
		err := s.readFrames(ctx, conn, out)
		conn.Close()
		if ctx.Err() != nil {
			return
		}
		s.log.WithError(err).Warn("connection lost, reconnecting")

		conn = s.reconnect(ctx)
		if conn == nil {
			return
		}
	}
}

// reconnect retries the dial with doubling delay. Returns nil once ctx is done.
func (s *WSFrameSource) reconnect(ctx context.Context) *websocket.Conn {
	delay := s.cfg.ReconnectDelay
	for attempt := 1; ; attempt++ {
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}

		observability.RecordReconnect()
		conn, err := s.dial(ctx)
		if err == nil {
			s.log.WithField("attempt", attempt).Info("reconnected")
			return conn
		}
		s.log.WithError(err).WithField("attempt", attempt).Debug("reconnect failed")

		delay *= 2
		if delay > s.cfg.MaxReconnectDelay {
			delay = s.cfg.MaxReconnectDelay
		}
	}
}

// readFrames reads until the connection fails or ctx is cancelled.
// Undecodable messages are counted and skipped.
func (s *WSFrameSource) readFrames(ctx context.Context, conn *websocket.Conn, out chan<- *Frame) error {
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	for {
		if s.cfg.ReadTimeout > 0 {
			conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
		}
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		var f Frame
		if err := json.Unmarshal(msg, &f); err != nil {
			observability.RecordIngestionError("decode")
			s.log.WithError(err).Warn("skipping undecodable frame")
			continue
		}

		select {
		case out <- &f:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
