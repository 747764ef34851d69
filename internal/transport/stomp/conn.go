// Package stomp runs a go-stomp session over a websocket.
package stomp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	gostomp "github.com/go-stomp/stomp/v3"
	"github.com/go-stomp/stomp/v3/frame"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	handshakeTimeout = 10 * time.Second
	receiptTimeout   = 10 * time.Second
	disconnectWait   = 2 * time.Second
	bufferSize       = 64 * 1024
	sendQueueSize    = 64
)

var (
	ErrConnectionClosed = errors.New("stomp connection closed")
	ErrServerError      = errors.New("stomp server error")
)

// Handler receives MESSAGE frames of one subscription, in delivery order.
type Handler func(f *frame.Frame)

type Options struct {
	Host      string
	HeartBeat time.Duration
	// Headers are added to the CONNECT frame.
	Headers map[string]string
	Dialer  *websocket.Dialer
}

type subscription struct {
	sub     *gostomp.Subscription
	stopped atomic.Bool
}

type outbound struct {
	destination string
	body        []byte
	opts        []func(*frame.Frame) error
	sent        func(err error)
}

type Conn struct {
	logger *slog.Logger
	stream *wsStream
	conn   *gostomp.Conn

	mu   sync.Mutex
	subs map[string]*subscription

	sends chan outbound
}

// Dial opens the websocket and completes the CONNECT handshake.
func Dial(ctx context.Context, logger *slog.Logger, endpoint string, opts Options) (*Conn, error) {
	dialer := opts.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}

	ctx, cancel := context.WithTimeout(ctx, handshakeTimeout)
	defer cancel()

	ws, resp, err := dialer.DialContext(ctx, endpoint, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", endpoint, err)
	}

	log := logger.With("component", "stomp")
	stream := newStream(ws)

	connOpts := []func(*gostomp.Conn) error{
		gostomp.ConnOpt.Host(opts.Host),
		gostomp.ConnOpt.AcceptVersion(gostomp.V11, gostomp.V12),
		gostomp.ConnOpt.HeartBeat(opts.HeartBeat, 0),
		gostomp.ConnOpt.Logger(logAdapter{logger: log}),
		gostomp.ConnOpt.ReadBufferSize(bufferSize),
		gostomp.ConnOpt.WriteBufferSize(bufferSize),
		gostomp.ConnOpt.RcvReceiptTimeout(receiptTimeout),
		gostomp.ConnOpt.UnsubscribeReceiptTimeout(receiptTimeout),
		gostomp.ConnOpt.DisconnectReceiptTimeout(disconnectWait),
	}
	for key, value := range opts.Headers {
		connOpts = append(connOpts, gostomp.ConnOpt.Header(key, value))
	}

	abort := context.AfterFunc(ctx, func() { _ = stream.Close() })

	session, err := gostomp.Connect(stream, connOpts...)
	if !abort() {
		return nil, fmt.Errorf("failed to connect: %w", ctx.Err())
	}
	if err != nil {
		_ = stream.Close()
		return nil, handshakeError(err)
	}

	conn := &Conn{
		logger: log,
		stream: stream,
		conn:   session,
		subs:   make(map[string]*subscription),
		sends:  make(chan outbound, sendQueueSize),
	}

	go conn.sendLoop()

	return conn, nil
}

func handshakeError(err error) error {
	var serverErr gostomp.Error
	if errors.As(err, &serverErr) && serverErr.Frame != nil && serverErr.Frame.Command == frame.ERROR {
		return fmt.Errorf("%w: %s", ErrServerError, serverErr.Message)
	}

	return fmt.Errorf("failed to connect: %w", err)
}

// Version is the protocol version the server agreed on.
func (that *Conn) Version() string {
	return that.conn.Version().String()
}

// Subscribe registers handler for destination and returns the subscription id.
func (that *Conn) Subscribe(destination string, handler Handler) (string, error) {
	select {
	case <-that.stream.done:
		return "", fmt.Errorf("failed to subscribe to %s: %w", destination, that.Err())
	default:
	}

	id := uuid.NewString()

	sub, err := that.conn.Subscribe(destination, gostomp.AckAuto, gostomp.SubscribeOpt.Id(id))
	if err != nil {
		return "", fmt.Errorf("failed to subscribe to %s: %w", destination, err)
	}

	entry := &subscription{sub: sub}

	that.mu.Lock()
	that.subs[id] = entry
	that.mu.Unlock()

	go that.drain(entry, handler)

	return id, nil
}

// Unsubscribe stops delivery before telling the server.
func (that *Conn) Unsubscribe(id string) error {
	that.mu.Lock()
	entry, ok := that.subs[id]
	delete(that.subs, id)
	that.mu.Unlock()

	if !ok {
		return nil
	}

	entry.stopped.Store(true)

	if err := entry.sub.Unsubscribe(); err != nil {
		return fmt.Errorf("failed to unsubscribe %s: %w", id, err)
	}

	return nil
}

// Send queues a SEND frame with a JSON body. Frames leave in call order.
// With withReceipt the returned Receipt resolves when the server confirms
// it; otherwise Send waits until the frame is written and returns a nil Receipt.
func (that *Conn) Send(ctx context.Context, destination string, headers map[string]string, body []byte, withReceipt bool) (*Receipt, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("failed to send to %s: %w", destination, err)
	}

	select {
	case <-that.stream.done:
		return nil, fmt.Errorf("failed to send to %s: %w", destination, that.Err())
	default:
	}

	opts := make([]func(*frame.Frame) error, 0, len(headers)+1)
	for key, value := range headers {
		opts = append(opts, gostomp.SendOpt.Header(key, value))
	}

	request := outbound{destination: destination, body: body}

	var (
		receipt *Receipt
		written chan error
	)
	if withReceipt {
		receipt = &Receipt{id: uuid.NewString(), done: make(chan struct{}), conn: that}
		opts = append(opts, gostomp.SendOpt.Header(HeaderReceipt, receipt.id))
		request.sent = receipt.resolve
	} else {
		written = make(chan error, 1)
		request.sent = func(err error) { written <- err }
	}
	request.opts = opts

	select {
	case that.sends <- request:
	case <-that.stream.done:
		return nil, fmt.Errorf("failed to send to %s: %w", destination, that.Err())
	case <-ctx.Done():
		return nil, fmt.Errorf("failed to send to %s: %w", destination, ctx.Err())
	}

	if receipt != nil {
		return receipt, nil
	}

	select {
	case err := <-written:
		if err != nil {
			return nil, fmt.Errorf("failed to send to %s: %w", destination, err)
		}

		return nil, nil
	case <-that.stream.done:
		return nil, fmt.Errorf("failed to send to %s: %w", destination, that.Err())
	case <-ctx.Done():
		return nil, fmt.Errorf("failed to send to %s: %w", destination, ctx.Err())
	}
}

// Disconnect asks the server to close gracefully, then closes the socket.
func (that *Conn) Disconnect(ctx context.Context) error {
	disconnected := make(chan error, 1)
	go func() { disconnected <- that.conn.Disconnect() }()

	var err error
	select {
	case err = <-disconnected:
	case <-ctx.Done():
		err = ctx.Err()
	}

	_ = that.stream.Close()

	if err != nil {
		return fmt.Errorf("failed to disconnect: %w", err)
	}

	return nil
}

// Close drops the socket without a DISCONNECT frame.
func (that *Conn) Close() error {
	return that.stream.Close()
}

// Done is closed once the connection is gone.
func (that *Conn) Done() <-chan struct{} {
	return that.stream.done
}

// Err reports why the connection ended.
func (that *Conn) Err() error {
	return that.stream.Err()
}

func (that *Conn) drain(entry *subscription, handler Handler) {
	log := that.logger.With("method", "drain", "subscription", entry.sub.Id())

	for msg := range entry.sub.C {
		if msg.Err != nil {
			log.Debug("subscription ended", "error", msg.Err)
			continue
		}

		if entry.stopped.Load() {
			continue
		}

		handler(&frame.Frame{Command: frame.MESSAGE, Header: msg.Header, Body: msg.Body})
	}
}

func (that *Conn) sendLoop() {
	for {
		select {
		case <-that.stream.done:
			return
		case request := <-that.sends:
			request.sent(that.conn.Send(request.destination, jsonContentType, request.body, request.opts...))
		}
	}
}

// Receipt tracks one frame sent with a receipt header.
type Receipt struct {
	id   string
	done chan struct{}
	err  error
	conn *Conn
}

func (that *Receipt) ID() string {
	return that.id
}

// Received reports whether the server confirmed the frame.
func (that *Receipt) Received() bool {
	select {
	case <-that.done:
		return that.err == nil
	default:
		return false
	}
}

// Wait blocks until the server confirms the frame, the connection ends or ctx is done.
func (that *Receipt) Wait(ctx context.Context) error {
	select {
	case <-that.done:
		return that.err
	default:
	}

	select {
	case <-that.done:
		return that.err
	case <-that.conn.Done():
		return that.conn.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (that *Receipt) resolve(err error) {
	that.err = err
	close(that.done)
}
