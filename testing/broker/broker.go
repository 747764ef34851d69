// Package broker runs a small in-process STOMP broker over websockets for tests.
package broker

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-stomp/stomp/v3/frame"
	"github.com/gorilla/websocket"
	"github.com/gugu/cmiuc-client/internal/transport/stomp"
)

const waitTimeout = 5 * time.Second

// Sent is a SEND frame the broker received.
type Sent struct {
	Destination string
	Headers     map[string]string
	Body        []byte
}

type session struct {
	ws      *websocket.Conn
	writeMu sync.Mutex
	// subscription id -> destination
	subs map[string]string
}

func (that *session) write(f *frame.Frame) {
	data, err := stomp.EncodeFrame(f)
	if err != nil {
		return
	}

	that.writeMu.Lock()
	defer that.writeMu.Unlock()

	_ = that.ws.WriteMessage(websocket.TextMessage, data)
}

type Broker struct {
	t        *testing.T
	server   *httptest.Server
	upgrader websocket.Upgrader

	mu             sync.Mutex
	sessions       map[*session]struct{}
	connects       []map[string]string
	rejectConnects int
	messageID      int

	sent chan Sent
}

func New(t *testing.T) *Broker {
	t.Helper()

	broker := &Broker{
		t:        t,
		sessions: make(map[*session]struct{}),
		sent:     make(chan Sent, 64),
	}

	broker.server = httptest.NewServer(http.HandlerFunc(broker.serve))
	t.Cleanup(func() {
		broker.DropConnections()
		broker.server.Close()
	})

	return broker
}

// URL is the websocket endpoint of the broker.
func (that *Broker) URL() string {
	return "ws" + strings.TrimPrefix(that.server.URL, "http")
}

// RejectNextConnects answers the next n CONNECT frames with ERROR.
func (that *Broker) RejectNextConnects(n int) {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.rejectConnects = n
}

// Connects returns the headers of every accepted CONNECT frame.
func (that *Broker) Connects() []map[string]string {
	that.mu.Lock()
	defer that.mu.Unlock()

	return append([]map[string]string{}, that.connects...)
}

// Subscribers counts live subscriptions to destination.
func (that *Broker) Subscribers(destination string) int {
	that.mu.Lock()
	defer that.mu.Unlock()

	count := 0
	for s := range that.sessions {
		for _, subscribed := range s.subs {
			if subscribed == destination {
				count++
			}
		}
	}

	return count
}

// WaitSubscribers blocks until destination has n subscriptions.
func (that *Broker) WaitSubscribers(destination string, n int) {
	that.t.Helper()

	deadline := time.Now().Add(waitTimeout)
	for that.Subscribers(destination) != n {
		if time.Now().After(deadline) {
			that.t.Fatalf("timed out waiting for %d subscribers on %s, have %d", n, destination, that.Subscribers(destination))
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// Publish delivers body to every subscription of destination.
func (that *Broker) Publish(destination string, body []byte) {
	that.mu.Lock()
	defer that.mu.Unlock()

	for s := range that.sessions {
		for id, subscribed := range s.subs {
			if subscribed != destination {
				continue
			}

			that.messageID++
			s.write(&frame.Frame{
				Command: stomp.CommandMessage,
				Header: frame.NewHeader(
					stomp.HeaderDestination, destination,
					stomp.HeaderSubscription, id,
					stomp.HeaderMessageID, strconv.Itoa(that.messageID),
					stomp.HeaderContentType, "application/json",
					stomp.HeaderContentLength, strconv.Itoa(len(body)),
				),
				Body: body,
			})
		}
	}
}

// NextSent waits for the next SEND frame.
func (that *Broker) NextSent() Sent {
	that.t.Helper()

	select {
	case sent := <-that.sent:
		return sent
	case <-time.After(waitTimeout):
		that.t.Fatal("timed out waiting for a SEND frame")
		return Sent{}
	}
}

// NoSent asserts nothing was sent within wait.
func (that *Broker) NoSent(wait time.Duration) {
	that.t.Helper()

	select {
	case sent := <-that.sent:
		that.t.Fatalf("unexpected SEND to %s: %s", sent.Destination, sent.Body)
	case <-time.After(wait):
	}
}

// DropConnections closes every websocket without a STOMP goodbye.
func (that *Broker) DropConnections() {
	that.mu.Lock()
	defer that.mu.Unlock()

	for s := range that.sessions {
		_ = s.ws.Close()
		delete(that.sessions, s)
	}
}

func (that *Broker) serve(w http.ResponseWriter, r *http.Request) {
	ws, err := that.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	s := &session{ws: ws, subs: make(map[string]string)}

	defer func() {
		that.mu.Lock()
		delete(that.sessions, s)
		that.mu.Unlock()
		_ = ws.Close()
	}()

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			return
		}

		frames, err := stomp.DecodeFrames(data)
		if err != nil {
			return
		}

		for _, f := range frames {
			if !that.handle(s, f) {
				return
			}
		}
	}
}

func (that *Broker) handle(s *session, f *frame.Frame) bool {
	switch f.Command {
	case stomp.CommandConnect, "STOMP":
		that.mu.Lock()
		reject := that.rejectConnects > 0
		if reject {
			that.rejectConnects--
		} else {
			that.connects = append(that.connects, headers(f))
			that.sessions[s] = struct{}{}
		}
		that.mu.Unlock()

		if reject {
			s.write(frame.New(stomp.CommandError, stomp.HeaderMessage, "connect rejected"))
			return false
		}

		s.write(frame.New(stomp.CommandConnected, stomp.HeaderVersion, "1.2", stomp.HeaderHeartBeat, "0,0"))
	case stomp.CommandSubscribe:
		that.mu.Lock()
		s.subs[f.Header.Get(stomp.HeaderID)] = f.Header.Get(stomp.HeaderDestination)
		that.mu.Unlock()
	case stomp.CommandUnsubscribe:
		that.mu.Lock()
		delete(s.subs, f.Header.Get(stomp.HeaderID))
		that.mu.Unlock()
	case stomp.CommandSend:
		that.sent <- Sent{
			Destination: f.Header.Get(stomp.HeaderDestination),
			Headers:     headers(f),
			Body:        append([]byte{}, f.Body...),
		}
	case stomp.CommandDisconnect:
		that.receipt(s, f)
		return false
	}

	that.receipt(s, f)

	return true
}

func (that *Broker) receipt(s *session, f *frame.Frame) {
	if id, ok := f.Header.Contains(stomp.HeaderReceipt); ok {
		s.write(frame.New(stomp.CommandReceipt, stomp.HeaderReceiptID, id))
	}
}

func headers(f *frame.Frame) map[string]string {
	result := make(map[string]string, f.Header.Len())
	for i := 0; i < f.Header.Len(); i++ {
		key, value := f.Header.GetAt(i)
		if _, exists := result[key]; !exists {
			result[key] = value
		}
	}

	return result
}
