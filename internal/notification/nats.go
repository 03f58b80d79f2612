package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"
)

// NATSNotifier publishes messages as JSON on a NATS subject.
type NATSNotifier struct {
	conn    *nats.Conn
	subject string
}

// NewNATSNotifier builds a notifier publishing on subject.
func NewNATSNotifier(conn *nats.Conn, subject string) *NATSNotifier {
	return &NATSNotifier{conn: conn, subject: subject}
}

// Send publishes message. NATS publishes are fire and forget; ctx is unused.
func (n *NATSNotifier) Send(_ context.Context, message Message) error {
	payload, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}
	if err := n.conn.Publish(n.subject, payload); err != nil {
		return fmt.Errorf("publish notification: %w", err)
	}
	return nil
}

// SubscribeNATS streams the messages addressed to destination until ctx ends.
func SubscribeNATS(ctx context.Context, conn *nats.Conn, subject, destination string, logger *slog.Logger) (<-chan Message, error) {
	raw := make(chan *nats.Msg, 64)
	sub, err := conn.ChanSubscribe(subject, raw)
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", subject, err)
	}

	out := make(chan Message)
	go func() {
		defer close(out)
		defer sub.Unsubscribe() // nolint:errcheck
		for {
			select {
			case <-ctx.Done():
				return
			case m := <-raw:
				msg, ok := decode(m.Data, destination, logger)
				if !ok {
					continue
				}
				select {
				case out <- msg:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
