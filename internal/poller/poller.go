package poller

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fjod/go_cart/internal/domain"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const (
	DefaultTopic   = "checkout-outbox"
	DefaultGroupID = "cart-service-consumer"
)

// MessageReader is the part of *kafka.Reader the poller uses.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type CartClearer interface {
	Clear(ctx context.Context, userID string) error
}

// Poller empties a user's cart once their checkout completes.
type Poller struct {
	cart    CartClearer
	reader  MessageReader
	log     *zap.Logger
	backoff time.Duration
}

type Config struct {
	Brokers []string
	Topic   string
	GroupID string
}

func NewKafkaReader(cfg Config) *kafka.Reader {
	if cfg.Topic == "" {
		cfg.Topic = DefaultTopic
	}
	if cfg.GroupID == "" {
		cfg.GroupID = DefaultGroupID
	}
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		Topic:    cfg.Topic,
		GroupID:  cfg.GroupID,
		MaxBytes: 10e6, // 10MB
	})
}

func NewPoller(cart CartClearer, reader MessageReader, log *zap.Logger) *Poller {
	if log == nil {
		log = zap.NewNop()
	}
	return &Poller{
		cart:    cart,
		reader:  reader,
		log:     log.Named("poller"),
		backoff: time.Second,
	}
}

// Run consumes events until ctx is cancelled.
func (p *Poller) Run(ctx context.Context) {
	for ctx.Err() == nil {
		m, err := p.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() == nil {
				p.log.Warn("error reading message", zap.Error(err))
				p.wait(ctx)
			}
			continue
		}

		if !p.handle(ctx, m) {
			return
		}
		if err := p.reader.CommitMessages(ctx, m); err != nil && ctx.Err() == nil {
			p.log.Warn("failed to commit message", zap.Int64("offset", m.Offset), zap.Error(err))
		}
	}
}

func (p *Poller) Close() {
	if err := p.reader.Close(); err != nil {
		p.log.Warn("error closing reader", zap.Error(err))
	}
}

// handle clears the cart named by m, retrying while the store is
// unavailable. It returns false when ctx ended before the cart was cleared.
func (p *Poller) handle(ctx context.Context, m kafka.Message) bool {
	userID, err := parseUserID(m.Value)
	if err != nil {
		p.log.Warn("skipping malformed checkout event", zap.Int64("offset", m.Offset), zap.Error(err))
		return true
	}

	for {
		err := p.cart.Clear(ctx, userID)
		switch {
		case err == nil:
			p.log.Info("cart cleared after checkout", zap.String("user_id", userID))
			return true
		case errors.Is(err, domain.ErrInvalidArgument):
			p.log.Warn("skipping checkout event", zap.String("user_id", userID), zap.Error(err))
			return true
		}

		p.log.Error("failed to clear cart", zap.String("user_id", userID), zap.Error(err))
		if !p.wait(ctx) {
			return false
		}
	}
}

func (p *Poller) wait(ctx context.Context) bool {
	t := time.NewTimer(p.backoff)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

type checkoutEvent struct {
	CheckoutID string          `json:"checkout_id"`
	UserID     json.RawMessage `json:"user_id"`
}

// parseUserID accepts the user id as a JSON string or number.
func parseUserID(payload []byte) (string, error) {
	var ev checkoutEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return "", fmt.Errorf("error parsing message: %w", err)
	}
	if len(ev.UserID) == 0 {
		return "", errors.New("missing user_id")
	}

	var s string
	if err := json.Unmarshal(ev.UserID, &s); err == nil {
		if strings.TrimSpace(s) == "" {
			return "", errors.New("empty user_id")
		}
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(ev.UserID, &n); err != nil {
		return "", fmt.Errorf("invalid user_id %s", ev.UserID)
	}
	return n.String(), nil
}
