package broadcast

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/cuemby/scbackend/pkg/events"
	"github.com/cuemby/scbackend/pkg/log"
	"github.com/cuemby/scbackend/pkg/metrics"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// DefaultMaxMessageBytes is the default read limit for a single WebSocket
// message.
const DefaultMaxMessageBytes = 16 << 20

const (
	defaultBuffer  = 64
	writeTimeout   = 5 * time.Second
	shutdownPeriod = 5 * time.Second
)

// Options configures a Broadcaster.
type Options struct {
	// ServerVersion is reported in handshake replies.
	ServerVersion string
	// Buffer is the outbound queue length per subscriber. Messages for a
	// subscriber whose queue is full are dropped.
	Buffer int
	// InboundRate limits inbound messages per subscriber per second. Zero
	// disables the limit.
	InboundRate float64
	// InboundBurst is the limiter burst size.
	InboundBurst int
	// MaxMessageBytes is the largest inbound message accepted. Defaults to
	// DefaultMaxMessageBytes.
	MaxMessageBytes int64
	// OriginPatterns are passed to websocket.Accept. Defaults to any origin.
	OriginPatterns []string
}

// Broadcaster fans relayed events out to every connected WebSocket
// subscriber and answers their inbound messages.
type Broadcaster struct {
	opts   Options
	logger zerolog.Logger
	now    func() time.Time

	mu          sync.RWMutex
	subscribers map[string]*subscriber
	server      *http.Server
	running     bool
}

type subscriber struct {
	id      string
	remote  string
	conn    *websocket.Conn
	out     chan []byte
	limiter *rate.Limiter
	logger  zerolog.Logger
}

// New creates a broadcaster.
func New(opts Options) *Broadcaster {
	if opts.ServerVersion == "" {
		opts.ServerVersion = DefaultServerVersion
	}
	if opts.Buffer <= 0 {
		opts.Buffer = defaultBuffer
	}
	if opts.MaxMessageBytes <= 0 {
		opts.MaxMessageBytes = DefaultMaxMessageBytes
	}
	if len(opts.OriginPatterns) == 0 {
		opts.OriginPatterns = []string{"*"}
	}
	return &Broadcaster{
		opts:        opts,
		logger:      log.WithComponent("broadcast"),
		now:         time.Now,
		subscribers: make(map[string]*subscriber),
	}
}

// ListenAndServe accepts subscribers on addr until ctx is canceled.
func (b *Broadcaster) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	return b.Serve(ctx, ln)
}

// Serve accepts subscribers on ln until ctx is canceled, then disconnects
// every subscriber and shuts the server down.
func (b *Broadcaster) Serve(ctx context.Context, ln net.Listener) error {
	b.mu.Lock()
	if b.running {
		b.mu.Unlock()
		_ = ln.Close()
		return fmt.Errorf("broadcaster already running")
	}
	srv := &http.Server{
		Handler:           b.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	b.server = srv
	b.running = true
	b.mu.Unlock()

	b.logger.Info().Str("addr", ln.Addr().String()).Msg("Stream server listening")

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		b.markStopped()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("stream server: %w", err)
	case <-ctx.Done():
	}

	b.CloseAll()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownPeriod)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	b.markStopped()
	b.logger.Info().Msg("Stream server stopped")
	return err
}

func (b *Broadcaster) markStopped() {
	b.mu.Lock()
	b.running = false
	b.server = nil
	b.mu.Unlock()
}

// Handler returns the HTTP handler that upgrades requests to subscriber
// connections.
func (b *Broadcaster) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			OriginPatterns: b.opts.OriginPatterns,
		})
		if err != nil {
			b.logger.Warn().Err(err).Str("remote", r.RemoteAddr).Msg("WebSocket accept failed")
			return
		}
		b.serveConn(r.Context(), conn, r.RemoteAddr)
	})
}

func (b *Broadcaster) serveConn(parent context.Context, conn *websocket.Conn, remote string) {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()
	conn.SetReadLimit(b.opts.MaxMessageBytes)

	sub := &subscriber{
		id:     uuid.New().String(),
		remote: remote,
		conn:   conn,
		out:    make(chan []byte, b.opts.Buffer),
	}
	if b.opts.InboundRate > 0 {
		burst := b.opts.InboundBurst
		if burst <= 0 {
			burst = 1
		}
		sub.limiter = rate.NewLimiter(rate.Limit(b.opts.InboundRate), burst)
	}
	sub.logger = log.WithSubscriberID(sub.id).With().Str("component", "broadcast").Logger()

	b.add(sub)
	defer b.remove(sub)
	sub.logger.Info().Str("remote", remote).Msg("Subscriber connected")

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		b.writeLoop(ctx, cancel, sub)
	}()

	b.readLoop(ctx, sub)
	cancel()
	wg.Wait()
	_ = conn.Close(websocket.StatusNormalClosure, "")
	sub.logger.Info().Str("remote", remote).Msg("Subscriber disconnected")
}

func (b *Broadcaster) readLoop(ctx context.Context, sub *subscriber) {
	for {
		_, raw, err := sub.conn.Read(ctx)
		if err != nil {
			if status := websocket.CloseStatus(err); status != websocket.StatusNormalClosure &&
				status != websocket.StatusGoingAway && ctx.Err() == nil {
				sub.logger.Debug().Err(err).Msg("Subscriber read ended")
			}
			return
		}
		if sub.limiter != nil && !sub.limiter.Allow() {
			metrics.InboundMessagesTotal.WithLabelValues("throttled").Inc()
			sub.logger.Warn().Msg("Inbound rate exceeded, message dropped")
			continue
		}
		b.handleMessage(sub, raw)
	}
}

func (b *Broadcaster) writeLoop(ctx context.Context, cancel context.CancelFunc, sub *subscriber) {
	for {
		select {
		case msg := <-sub.out:
			wctx, wcancel := context.WithTimeout(ctx, writeTimeout)
			err := sub.conn.Write(wctx, websocket.MessageText, msg)
			wcancel()
			if err != nil {
				sub.logger.Warn().Err(err).Msg("Send to subscriber failed, disconnecting")
				cancel()
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

// handleMessage answers one inbound frame. Replies go to the sender only and
// the connection stays open whatever the frame contained.
func (b *Broadcaster) handleMessage(sub *subscriber, raw []byte) {
	msg, err := ParseInbound(raw)
	if err != nil {
		label := "invalid"
		if errors.Is(err, ErrMissingType) {
			label = "missing_type"
		}
		metrics.InboundMessagesTotal.WithLabelValues(label).Inc()
		sub.logger.Warn().Err(err).Msg("Rejected subscriber message")
		b.reply(sub, newErrorReply(replyText(err)))
		return
	}

	switch m := msg.(type) {
	case Handshake:
		metrics.InboundMessagesTotal.WithLabelValues(TypeHandshake).Inc()
		sub.logger.Info().Msg("Handshake received")
		b.reply(sub, HandshakeReply{
			Type:          TypeHandshake,
			Status:        "ok",
			Timestamp:     Timestamp(b.now()),
			ServerVersion: b.opts.ServerVersion,
		})
	case Unknown:
		metrics.InboundMessagesTotal.WithLabelValues("unknown").Inc()
		sub.logger.Debug().Str("type", m.Name).Msg("Unknown message type")
		b.reply(sub, newErrorReply(unknownTypeMessage))
	}
}

func (b *Broadcaster) reply(sub *subscriber, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		sub.logger.Error().Err(err).Msg("Failed to encode reply")
		return
	}
	b.send(sub, data)
}

// Publish serializes ev once and queues it for every current subscriber. A
// subscriber that cannot keep up loses the message; the others are not
// affected.
func (b *Broadcaster) Publish(ev events.Event) {
	data, err := json.Marshal(EventMessage{
		Type:      TypeEvent,
		Event:     string(ev.Kind),
		Data:      ev.Payload,
		Timestamp: Timestamp(b.now()),
	})
	if err != nil {
		b.logger.Error().Err(err).Str("kind", string(ev.Kind)).Msg("Failed to encode event, not broadcast")
		return
	}

	subs := b.snapshot()
	for _, sub := range subs {
		b.send(sub, data)
	}
	b.logger.Debug().Str("kind", string(ev.Kind)).Int("subscribers", len(subs)).Msg("Event broadcast")
}

func (b *Broadcaster) send(sub *subscriber, data []byte) {
	select {
	case sub.out <- data:
		metrics.EventsTotal.WithLabelValues(metrics.StageDelivered).Inc()
	default:
		metrics.EventsTotal.WithLabelValues(metrics.StageDropped).Inc()
		sub.logger.Warn().Msg("Subscriber buffer full, message dropped")
	}
}

func (b *Broadcaster) snapshot() []*subscriber {
	b.mu.RLock()
	defer b.mu.RUnlock()
	subs := make([]*subscriber, 0, len(b.subscribers))
	for _, sub := range b.subscribers {
		subs = append(subs, sub)
	}
	return subs
}

func (b *Broadcaster) add(sub *subscriber) {
	b.mu.Lock()
	b.subscribers[sub.id] = sub
	n := len(b.subscribers)
	b.mu.Unlock()
	metrics.SubscribersTotal.Set(float64(n))
}

func (b *Broadcaster) remove(sub *subscriber) {
	b.mu.Lock()
	delete(b.subscribers, sub.id)
	n := len(b.subscribers)
	b.mu.Unlock()
	metrics.SubscribersTotal.Set(float64(n))
}

// Count returns the number of connected subscribers.
func (b *Broadcaster) Count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// CloseAll disconnects every subscriber with a going-away status.
func (b *Broadcaster) CloseAll() {
	for _, sub := range b.snapshot() {
		_ = sub.conn.Close(websocket.StatusGoingAway, "server shutting down")
	}
}
