package sources

import (
	"context"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"chargesync/internal/models"
)

const (
	streamReadLimit    = 1024 * 1024
	streamReadTimeout  = 90 * time.Second
	streamPingInterval = 30 * time.Second

	reconnectInitialDelay = time.Second
	reconnectMaxDelay     = 2 * time.Minute
)

// MessageDecoder turns one inbound websocket message into a status event.
type MessageDecoder interface {
	Decode(message []byte) (models.StatusEvent, error)
}

// URLResolver returns the websocket endpoint to connect to. Feeds that hand
// out short-lived signed URLs resolve a fresh one per connection attempt.
type URLResolver func(ctx context.Context) (string, error)

// WebSocketStream is a [Streamer] over a websocket realtime feed: one status
// event per message, reconnecting with capped exponential backoff on
// transport errors.
type WebSocketStream struct {
	resolveURL URLResolver
	decoder    MessageDecoder
	dialer     *websocket.Dialer
	log        *zap.Logger
}

// NewWebSocketStream builds a stream over the given endpoint resolver and
// message decoder.
func NewWebSocketStream(resolveURL URLResolver, decoder MessageDecoder, log *zap.Logger) *WebSocketStream {
	return &WebSocketStream{
		resolveURL: resolveURL,
		decoder:    decoder,
		dialer:     websocket.DefaultDialer,
		log:        log,
	}
}

// Stream connects and consumes messages until ctx is cancelled. Undecodable
// messages are skipped with a warning; emit errors end the current
// connection and trigger a reconnect.
func (s *WebSocketStream) Stream(ctx context.Context, emit func(models.StatusEvent) error) error {
	delay := reconnectInitialDelay
	for {
		received, err := s.runConnection(ctx, emit)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if received > 0 {
			delay = reconnectInitialDelay
		}
		s.log.Warn("stream connection lost, reconnecting",
			zap.Error(err),
			zap.Int("messages_received", received),
			zap.Duration("delay", delay),
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay = min(delay*2, reconnectMaxDelay)
	}
}

func (s *WebSocketStream) runConnection(ctx context.Context, emit func(models.StatusEvent) error) (int, error) {
	url, err := s.resolveURL(ctx)
	if err != nil {
		return 0, err
	}

	conn, _, err := s.dialer.DialContext(ctx, url, nil)
	if err != nil {
		return 0, err
	}
	defer conn.Close()

	conn.SetReadLimit(streamReadLimit)
	conn.SetReadDeadline(time.Now().Add(streamReadTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(streamReadTimeout))
		return nil
	})

	stop := make(chan struct{})
	defer close(stop)
	go s.pingLoop(ctx, conn, stop)

	received := 0
	for {
		select {
		case <-ctx.Done():
			return received, ctx.Err()
		default:
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			return received, err
		}
		conn.SetReadDeadline(time.Now().Add(streamReadTimeout))
		received++

		event, err := s.decoder.Decode(message)
		if err != nil {
			s.log.Warn("skipping undecodable stream message", zap.Error(err))
			continue
		}
		if err := emit(event); err != nil {
			return received, err
		}
	}
}

func (s *WebSocketStream) pingLoop(ctx context.Context, conn *websocket.Conn, stop <-chan struct{}) {
	ticker := time.NewTicker(streamPingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-ticker.C:
			deadline := time.Now().Add(10 * time.Second)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return
			}
		}
	}
}
