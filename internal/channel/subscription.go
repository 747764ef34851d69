package channel

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/go-stomp/stomp/v3/frame"
	"github.com/gugu/cmiuc-client/internal/entity"
	"github.com/gugu/cmiuc-client/internal/transport/stomp"
)

type Event = entity.Event

// Subscription is one topic bound to one handler. It survives reconnects
// until Unsubscribe is called.
type Subscription struct {
	client  *Client
	topic   string
	handler func(event Event)
	logger  *slog.Logger

	// mu also serializes delivery, so no handler runs after Unsubscribe returns.
	mu     sync.Mutex
	conn   *stomp.Conn
	id     string
	active bool
}

func (that *Subscription) Topic() string {
	return that.topic
}

// Unsubscribe stops delivery and tells the server.
func (that *Subscription) Unsubscribe() error {
	that.mu.Lock()
	if !that.active {
		that.mu.Unlock()
		return nil
	}
	that.active = false
	conn, id := that.conn, that.id
	that.mu.Unlock()

	that.client.forget(that)

	if conn == nil {
		return nil
	}

	select {
	case <-conn.Done():
		return nil
	default:
	}

	if err := conn.Unsubscribe(id); err != nil {
		return fmt.Errorf("failed to unsubscribe %s: %w", that.topic, err)
	}

	return nil
}

func (that *Subscription) attach(conn *stomp.Conn) error {
	that.mu.Lock()
	defer that.mu.Unlock()

	if !that.active || that.conn == conn {
		return nil
	}

	id, err := conn.Subscribe(that.topic, that.deliver)
	if err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}

	that.conn = conn
	that.id = id

	return nil
}

func (that *Subscription) deliver(f *frame.Frame) {
	event, err := entity.DecodeEvent(f.Body)
	if err != nil {
		that.logger.Warn("dropping malformed message", "error", err, "messageID", f.Header.Get(stomp.HeaderMessageID))
		return
	}

	that.mu.Lock()
	defer that.mu.Unlock()

	if !that.active {
		return
	}

	that.handler(event)
}
