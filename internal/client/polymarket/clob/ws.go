package clob

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"go.uber.org/zap"
	"nhooyr.io/websocket"
)

const DefaultMarketWSSURL = "wss://ws-subscriptions-clob.polymarket.com/ws/market"

type marketSubscribe struct {
	Type      string   `json:"type"`
	AssetsIDs []string `json:"assets_ids,omitempty"`
}

type subscriptionUpdate struct {
	AssetsIDs []string `json:"assets_ids"`
	Operation string   `json:"operation"`
}

// Envelope carries the fields common to every market-channel message.
type Envelope struct {
	EventType string `json:"event_type"`
	AssetID   string `json:"asset_id"`
	Market    string `json:"market"`
	Timestamp string `json:"timestamp"`
}

// AssetIDProvider supplies the token ids to subscribe to; called on connect
// and on every refresh tick.
type AssetIDProvider func(context.Context) ([]string, error)

type StreamOptions struct {
	URL             string
	Provider        AssetIDProvider
	RefreshInterval time.Duration
	PingInterval    time.Duration
	PingTimeout     time.Duration
	BackoffMin      time.Duration
	BackoffMax      time.Duration
	Logger          *zap.Logger
}

// Stream maintains a market-channel subscription across reconnects and hands
// every non-ping message to the callback.
type Stream struct {
	opts StreamOptions
}

func NewStream(opts StreamOptions) *Stream {
	if opts.URL == "" {
		opts.URL = DefaultMarketWSSURL
	}
	if opts.RefreshInterval <= 0 {
		opts.RefreshInterval = 30 * time.Second
	}
	if opts.PingInterval <= 0 {
		opts.PingInterval = 20 * time.Second
	}
	if opts.PingTimeout <= 0 {
		opts.PingTimeout = 5 * time.Second
	}
	if opts.BackoffMin <= 0 {
		opts.BackoffMin = time.Second
	}
	if opts.BackoffMax <= 0 {
		opts.BackoffMax = 30 * time.Second
	}
	return &Stream{opts: opts}
}

func (s *Stream) Run(ctx context.Context, onMessage func(Envelope, []byte)) error {
	if s.opts.Provider == nil {
		return fmt.Errorf("asset id provider is required")
	}
	backoff := s.opts.BackoffMin
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		err := s.runOnce(ctx, onMessage)
		if err == nil || errors.Is(err, context.Canceled) {
			return err
		}
		if s.opts.Logger != nil {
			s.opts.Logger.Warn("clob ws session ended", zap.Error(err))
		}
		if err := sleepWithJitter(ctx, backoff); err != nil {
			return err
		}
		backoff *= 2
		if backoff > s.opts.BackoffMax {
			backoff = s.opts.BackoffMax
		}
	}
}

func (s *Stream) runOnce(ctx context.Context, onMessage func(Envelope, []byte)) error {
	assetIDs, err := s.opts.Provider(ctx)
	if err != nil {
		return fmt.Errorf("resolve asset ids: %w", err)
	}
	if len(assetIDs) == 0 {
		return fmt.Errorf("no assets to subscribe")
	}

	conn, _, err := websocket.Dial(ctx, s.opts.URL, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	// Book snapshots can be large; the library default read limit is too low.
	conn.SetReadLimit(2 << 20)
	defer conn.Close(websocket.StatusNormalClosure, "reconnect")

	payload, err := json.Marshal(marketSubscribe{Type: "market", AssetsIDs: assetIDs})
	if err != nil {
		return err
	}
	if err := conn.Write(ctx, websocket.MessageText, payload); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	if s.opts.Logger != nil {
		s.opts.Logger.Info("clob ws subscribed", zap.Int("assets", len(assetIDs)))
	}

	sessionCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	sessionErr := make(chan error, 2)

	go s.keepalive(sessionCtx, conn, sessionErr)
	go s.refreshSubscriptions(sessionCtx, conn, setFromSlice(assetIDs), sessionErr)

	for {
		select {
		case err := <-sessionErr:
			return err
		default:
		}
		_, data, err := conn.Read(ctx)
		if err != nil {
			return err
		}
		var env Envelope
		_ = json.Unmarshal(data, &env)
		if isPingPayload(env, data) {
			_ = conn.Write(ctx, websocket.MessageText, []byte(`{"event_type":"pong"}`))
			continue
		}
		if onMessage != nil {
			onMessage(env, data)
		}
	}
}

func (s *Stream) keepalive(ctx context.Context, conn *websocket.Conn, out chan<- error) {
	ticker := time.NewTicker(s.opts.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, s.opts.PingTimeout)
			err := conn.Ping(pingCtx)
			cancel()
			if err != nil {
				select {
				case out <- fmt.Errorf("ping: %w", err):
				default:
				}
				return
			}
		}
	}
}

func (s *Stream) refreshSubscriptions(ctx context.Context, conn *websocket.Conn, current map[string]struct{}, out chan<- error) {
	ticker := time.NewTicker(s.opts.RefreshInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			ids, err := s.opts.Provider(ctx)
			if err != nil {
				continue
			}
			next := setFromSlice(ids)
			added, removed := diffSets(current, next)
			if len(added) > 0 {
				if err := writeUpdate(ctx, conn, added, "subscribe"); err != nil {
					select {
					case out <- err:
					default:
					}
					return
				}
			}
			if len(removed) > 0 {
				_ = writeUpdate(ctx, conn, removed, "unsubscribe")
			}
			current = next
		}
	}
}

func writeUpdate(ctx context.Context, conn *websocket.Conn, assetIDs []string, operation string) error {
	payload, err := json.Marshal(subscriptionUpdate{AssetsIDs: assetIDs, Operation: operation})
	if err != nil {
		return err
	}
	return conn.Write(ctx, websocket.MessageText, payload)
}

func isPingPayload(env Envelope, raw []byte) bool {
	if strings.EqualFold(env.EventType, "ping") {
		return true
	}
	if strings.TrimSpace(string(raw)) == "ping" {
		return true
	}
	var probe struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &probe); err == nil {
		return strings.EqualFold(probe.Type, "ping")
	}
	return false
}

func sleepWithJitter(ctx context.Context, base time.Duration) error {
	if base <= 0 {
		return nil
	}
	jitter := time.Duration(rand.Int63n(int64(base/2) + 1))
	timer := time.NewTimer(base + jitter)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func setFromSlice(items []string) map[string]struct{} {
	out := make(map[string]struct{}, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		out[item] = struct{}{}
	}
	return out
}

func diffSets(current, next map[string]struct{}) ([]string, []string) {
	added := make([]string, 0)
	removed := make([]string, 0)
	for key := range next {
		if _, ok := current[key]; !ok {
			added = append(added, key)
		}
	}
	for key := range current {
		if _, ok := next[key]; !ok {
			removed = append(removed, key)
		}
	}
	return added, removed
}
