// Package channel keeps one STOMP session to the game server alive and
// turns broadcast frames into typed events.
package channel

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gugu/cmiuc-client/internal/apperror"
	"github.com/gugu/cmiuc-client/internal/config"
	"github.com/gugu/cmiuc-client/internal/transport/stomp"
)

const closeTimeout = 3 * time.Second

type credentials interface {
	ConnectHeaders() map[string]string
	SendHeaders() map[string]string
	Expired() bool
}

type Options struct {
	Endpoint  string
	Host      string
	HeartBeat time.Duration
	Receipts  bool
	Reconnect config.Reconnect
}

// OptionsFromConfig maps the stomp and reconnect sections of the config.
func OptionsFromConfig(conf *config.Config) Options {
	return Options{
		Endpoint:  conf.Stomp.Endpoint,
		Host:      conf.Stomp.Host,
		HeartBeat: conf.Stomp.HeartBeat,
		Receipts:  conf.Stomp.Receipts,
		Reconnect: conf.Reconnect,
	}
}

type Client struct {
	logger *slog.Logger
	creds  credentials
	opts   Options

	mu     sync.Mutex
	conn   *stomp.Conn
	subs   map[string]*Subscription
	closed bool
	err    error

	ctx       context.Context
	cancel    context.CancelFunc
	supervise sync.Once
	wg        sync.WaitGroup

	done     chan struct{}
	doneOnce sync.Once
}

func New(logger *slog.Logger, creds credentials, opts Options) *Client {
	ctx, cancel := context.WithCancel(context.Background())

	return &Client{
		logger: logger.With("component", "channel"),
		creds:  creds,
		opts:   opts,
		subs:   make(map[string]*Subscription),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
}

// Connect dials the endpoint, retrying with backoff. Once connected, a dropped
// session is re-established and every live subscription is renewed.
func (that *Client) Connect(ctx context.Context) error {
	that.mu.Lock()
	if that.closed {
		that.mu.Unlock()
		return apperror.ErrChannelClosed
	}
	if that.conn != nil {
		that.mu.Unlock()
		return nil
	}
	that.mu.Unlock()

	conn, err := that.dial(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", apperror.ErrChannelConnect, err)
	}

	if err = that.install(conn); err != nil {
		return err
	}

	that.supervise.Do(func() {
		that.wg.Add(1)
		go that.reconnectLoop()
	})

	that.logger.Info("channel connected", "endpoint", that.opts.Endpoint)

	return nil
}

// Subscribe starts delivering decoded events of topic to handler. Malformed
// frames are logged and dropped without ending the subscription.
func (that *Client) Subscribe(topic string, handler func(event Event)) (*Subscription, error) {
	that.mu.Lock()
	if that.closed {
		that.mu.Unlock()
		return nil, apperror.ErrChannelClosed
	}

	if _, exists := that.subs[topic]; exists {
		that.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", apperror.ErrAlreadySubscribed, topic)
	}

	sub := &Subscription{
		client:  that,
		topic:   topic,
		handler: handler,
		active:  true,
		logger:  that.logger.With("topic", topic),
	}
	that.subs[topic] = sub
	conn := that.conn
	that.mu.Unlock()

	for conn != nil {
		err := sub.attach(conn)
		if err == nil {
			break
		}

		that.mu.Lock()
		current := that.conn
		that.mu.Unlock()

		// install swapped the session under us; attach to the new one.
		if current != conn {
			conn = current
			continue
		}

		select {
		case <-conn.Done():
			that.logger.Debug("session dropped while subscribing, renewing on reconnect", "topic", topic)
			return sub, nil
		default:
		}

		that.forget(sub)
		return nil, err
	}

	return sub, nil
}

// Publish JSON-encodes payload and sends it with the bearer headers. ctx bounds
// the wait for the frame to leave the client.
func (that *Client) Publish(ctx context.Context, destination string, payload any) (*PublishResult, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	that.mu.Lock()
	closed, conn := that.closed, that.conn
	that.mu.Unlock()

	if closed {
		return nil, apperror.ErrChannelClosed
	}

	if conn == nil {
		return nil, fmt.Errorf("%w: not connected", apperror.ErrChannelConnect)
	}

	receipt, err := conn.Send(ctx, destination, that.creds.SendHeaders(), body, that.opts.Receipts)
	if err != nil {
		return nil, fmt.Errorf("failed to publish: %w", err)
	}

	return &PublishResult{Destination: destination, receipt: receipt}, nil
}

// Close unsubscribes everything and disconnects. It is safe to call twice.
func (that *Client) Close() error {
	that.mu.Lock()
	if that.closed {
		that.mu.Unlock()
		return nil
	}
	that.closed = true
	subs := that.snapshot()
	conn := that.conn
	that.mu.Unlock()

	that.cancel()

	for _, sub := range subs {
		if err := sub.Unsubscribe(); err != nil {
			that.logger.Debug("unsubscribe on close failed", "topic", sub.topic, "error", err)
		}
	}

	var err error
	if conn != nil {
		ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
		err = conn.Disconnect(ctx)
		cancel()
	}

	that.wg.Wait()
	that.finish(apperror.ErrChannelClosed)

	if err != nil {
		return fmt.Errorf("failed to disconnect: %w", err)
	}

	return nil
}

// Done is closed when the client is closed or gives up reconnecting.
func (that *Client) Done() <-chan struct{} {
	return that.done
}

func (that *Client) Err() error {
	that.mu.Lock()
	defer that.mu.Unlock()

	return that.err
}

func (that *Client) dial(ctx context.Context) (*stomp.Conn, error) {
	log := that.logger.With("method", "dial")

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = that.opts.Reconnect.InitialInterval
	policy.MaxInterval = that.opts.Reconnect.MaxInterval
	policy.MaxElapsedTime = that.opts.Reconnect.MaxElapsedTime

	var conn *stomp.Conn
	operation := func() error {
		if that.creds.Expired() {
			return backoff.Permanent(apperror.ErrCredentialExpired)
		}

		dialed, err := stomp.Dial(ctx, that.logger, that.opts.Endpoint, stomp.Options{
			Host:      that.opts.Host,
			HeartBeat: that.opts.HeartBeat,
			Headers:   that.creds.ConnectHeaders(),
		})
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			return err
		}

		conn = dialed
		return nil
	}

	notify := func(err error, wait time.Duration) {
		log.Warn("connect failed, retrying", "error", err, "retryIn", wait)
	}

	if err := backoff.RetryNotify(operation, backoff.WithContext(policy, ctx), notify); err != nil {
		return nil, err
	}

	return conn, nil
}

// install makes conn current and renews subscriptions on it.
func (that *Client) install(conn *stomp.Conn) error {
	that.mu.Lock()
	if that.closed {
		that.mu.Unlock()
		_ = conn.Close()
		return apperror.ErrChannelClosed
	}
	that.conn = conn
	subs := that.snapshot()
	that.mu.Unlock()

	for _, sub := range subs {
		if err := sub.attach(conn); err != nil {
			that.logger.Error("failed to renew subscription", "topic", sub.topic, "error", err)
		}
	}

	return nil
}

func (that *Client) reconnectLoop() {
	defer that.wg.Done()

	log := that.logger.With("method", "reconnectLoop")

	for {
		that.mu.Lock()
		conn := that.conn
		that.mu.Unlock()

		select {
		case <-that.ctx.Done():
			return
		case <-conn.Done():
		}

		if that.ctx.Err() != nil {
			return
		}

		log.Warn("connection lost, reconnecting", "error", conn.Err())

		next, err := that.dial(that.ctx)
		if err != nil {
			if that.ctx.Err() != nil {
				return
			}

			log.Error("giving up reconnecting", "error", err)
			that.finish(fmt.Errorf("%w: %w", apperror.ErrChannelConnect, err))

			return
		}

		if err = that.install(next); err != nil {
			return
		}

		log.Info("channel reconnected")
	}
}

func (that *Client) finish(err error) {
	that.doneOnce.Do(func() {
		that.mu.Lock()
		that.err = err
		that.mu.Unlock()

		close(that.done)
	})
}

func (that *Client) forget(sub *Subscription) {
	that.mu.Lock()
	defer that.mu.Unlock()

	if that.subs[sub.topic] == sub {
		delete(that.subs, sub.topic)
	}
}

// snapshot must be called with mu held.
func (that *Client) snapshot() []*Subscription {
	subs := make([]*Subscription, 0, len(that.subs))
	for _, sub := range that.subs {
		subs = append(subs, sub)
	}

	return subs
}
