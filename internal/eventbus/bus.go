// Package eventbus carries session progress and cancellation notices between
// the ExecutorDriver's background workers and the Orchestrator, over an
// embedded NATS connection started in-process by cmd/jivecore. There is no
// general-purpose pub/sub surface here: every subject this package touches is
// scoped to one session's progress or cancel channel.
package eventbus

import (
	"encoding/json"
	"fmt"
	"time"

	nc "github.com/nats-io/nats.go"

	"github.com/jivedev/jivecore/internal/model"
)

// Bus holds one NATS connection dedicated to session event fan-out.
type Bus struct {
	conn *nc.Conn
	name string
}

func connectOptions(name string) []nc.Option {
	logReconnectEvents := func() (nc.Option, nc.Option, nc.Option) {
		onDisconnect := nc.DisconnectErrHandler(func(_ *nc.Conn, err error) {
			if err != nil {
				fmt.Printf("eventbus(%s): disconnected: %v\n", name, err)
			}
		})
		onReconnect := nc.ReconnectHandler(func(c *nc.Conn) {
			fmt.Printf("eventbus(%s): reconnected to %s\n", name, c.ConnectedUrl())
		})
		onClose := nc.ClosedHandler(func(*nc.Conn) {
			fmt.Printf("eventbus(%s): connection closed\n", name)
		})
		return onDisconnect, onReconnect, onClose
	}
	onDisconnect, onReconnect, onClose := logReconnectEvents()
	return []nc.Option{
		nc.Name(name),
		nc.ReconnectWait(2 * time.Second),
		nc.MaxReconnects(-1),
		onDisconnect,
		onReconnect,
		onClose,
	}
}

// Connect dials url, retrying reconnects indefinitely. name identifies this
// connection in log output (e.g. "orchestrator", "executor-driver").
func Connect(url string, name string) (*Bus, error) {
	conn, err := nc.Connect(url, connectOptions(name)...)
	if err != nil {
		return nil, fmt.Errorf("eventbus: connect to %s: %w", url, err)
	}
	return &Bus{conn: conn, name: name}, nil
}

// Close releases the underlying NATS connection.
func (b *Bus) Close() {
	if b.conn != nil {
		b.conn.Close()
	}
}

func progressSubject(executionID string) string { return "session." + executionID + ".progress" }
func cancelSubject(executionID string) string    { return "session." + executionID + ".cancel" }

// PublishProgress publishes update on executionID's progress subject.
// ExecutorDriver workers and the Orchestrator's own status handler call this.
func (b *Bus) PublishProgress(executionID string, update model.ProgressUpdate) error {
	payload, err := json.Marshal(update)
	if err != nil {
		return fmt.Errorf("eventbus: marshal progress update for %s: %w", executionID, err)
	}
	if err := b.conn.Publish(progressSubject(executionID), payload); err != nil {
		return fmt.Errorf("eventbus: publish progress for %s: %w", executionID, err)
	}
	return nil
}

// PublishCancel broadcasts the cancellation flag for executionID; every
// in-flight ExecutorDriver worker watching this subject must exit at its next
// suspension point.
func (b *Bus) PublishCancel(executionID string) error {
	if err := b.conn.Publish(cancelSubject(executionID), nil); err != nil {
		return fmt.Errorf("eventbus: publish cancel for %s: %w", executionID, err)
	}
	return nil
}

// SubscribeProgress subscribes to executionID's progress subject. Malformed
// payloads are dropped rather than propagated to handler.
func (b *Bus) SubscribeProgress(executionID string, handler func(model.ProgressUpdate)) (*nc.Subscription, error) {
	sub, err := b.conn.Subscribe(progressSubject(executionID), func(msg *nc.Msg) {
		var update model.ProgressUpdate
		if err := json.Unmarshal(msg.Data, &update); err != nil {
			return
		}
		handler(update)
	})
	if err != nil {
		return nil, fmt.Errorf("eventbus: subscribe progress for %s: %w", executionID, err)
	}
	return sub, nil
}

// SubscribeCancel subscribes to executionID's cancel subject.
func (b *Bus) SubscribeCancel(executionID string, handler func()) (*nc.Subscription, error) {
	sub, err := b.conn.Subscribe(cancelSubject(executionID), func(*nc.Msg) {
		handler()
	})
	if err != nil {
		return nil, fmt.Errorf("eventbus: subscribe cancel for %s: %w", executionID, err)
	}
	return sub, nil
}
