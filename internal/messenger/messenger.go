package messenger

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ZilDuck/nft-marketplace/internal/event"
	"github.com/gosimple/slug"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

const publishTimeout = 10 * time.Second

// Publisher delivers marketplace events to an outside broker.
type Publisher interface {
	Name() string
	Publish(ctx context.Context, e event.Event) error
	Close() error
}

// Message is the wire form of an event.
type Message struct {
	Id      string          `json:"id"`
	Type    event.Type      `json:"type"`
	Time    time.Time       `json:"time"`
	Payload json.RawMessage `json:"payload"`
}

func Encode(e event.Event) ([]byte, error) {
	return json.Marshal(e)
}

func Decode(body []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(body, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// RoutingKey is "<prefix>.<event type>", e.g. "zilliqa.marketplace.tokensold".
func RoutingKey(prefix string, eventType event.Type) string {
	return fmt.Sprintf("%s.%s", prefix, slug.Make(string(eventType)))
}

// Relay forwards events from the event manager to every publisher. A failed
// publish is logged; the ledger mutation behind the event stays committed.
type Relay struct {
	publishers []Publisher
}

func NewRelay(publishers ...Publisher) *Relay {
	return &Relay{publishers: publishers}
}

func (r *Relay) Handle(e event.Event) {
	for _, p := range r.publishers {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		if err := p.Publish(ctx, e); err != nil {
			zap.L().With(
				zap.Error(err),
				zap.String("publisher", p.Name()),
				zap.String("type", string(e.Type)),
				zap.String("id", e.Id),
			).Error("[Queue] Failed to publish event")
		}
		cancel()
	}
}

func (r *Relay) Publishers() int {
	return len(r.publishers)
}

func (r *Relay) Close() error {
	var err error
	for _, p := range r.publishers {
		err = multierr.Append(err, p.Close())
	}
	return err
}
