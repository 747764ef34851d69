// Package game keeps the view state of one running game in sync with the
// server broadcasts and the local player's picks.
package game

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gugu/cmiuc-client/internal/apperror"
	"github.com/gugu/cmiuc-client/internal/channel"
	"github.com/gugu/cmiuc-client/internal/entity"
	"github.com/gugu/cmiuc-client/internal/timer"
)

const eventBuffer = 16

var ErrNotRunning = errors.New("game controller is not running")

type realtime interface {
	Subscribe(topic string, handler func(event channel.Event)) (*channel.Subscription, error)
	Publish(ctx context.Context, destination string, payload any) (*channel.PublishResult, error)
}

type pickReply struct {
	result *channel.PublishResult
	err    error
}

type pickRequest struct {
	ctx       context.Context
	ownerID   int64
	cardIndex int
	reply     chan pickReply
}

type Controller struct {
	logger    *slog.Logger
	channel   realtime
	gameID    string
	memberID  int64
	newTicker func() Ticker

	events  chan entity.Event
	picks   chan pickRequest
	views   chan chan View
	updates chan View
	running chan struct{}
	done    chan struct{}
}

type Option func(*Controller)

// WithTicker replaces the one-second ticker, mostly for tests.
func WithTicker(factory func() Ticker) Option {
	return func(that *Controller) {
		that.newTicker = factory
	}
}

func NewController(logger *slog.Logger, rt realtime, gameID string, memberID int64, opts ...Option) *Controller {
	controller := &Controller{
		logger:    logger.With("component", "game", "gameID", gameID),
		channel:   rt,
		gameID:    gameID,
		memberID:  memberID,
		newTicker: SecondTicker,
		events:    make(chan entity.Event, eventBuffer),
		picks:     make(chan pickRequest),
		views:     make(chan chan View),
		updates:   make(chan View, 1),
		running:   make(chan struct{}),
		done:      make(chan struct{}),
	}

	for _, opt := range opts {
		opt(controller)
	}

	return controller
}

// Updates delivers the latest view after every change. Slow readers only
// see the newest one.
func (that *Controller) Updates() <-chan View {
	return that.updates
}

// Running is closed once Run has subscribed to the game topic.
func (that *Controller) Running() <-chan struct{} {
	return that.running
}

// Done is closed when Run has returned.
func (that *Controller) Done() <-chan struct{} {
	return that.done
}

// Pick opens a card of another player. Only the local member may pick, and
// only while holding the turn.
func (that *Controller) Pick(ctx context.Context, ownerID int64, cardIndex int) (*channel.PublishResult, error) {
	request := pickRequest{ctx: ctx, ownerID: ownerID, cardIndex: cardIndex, reply: make(chan pickReply, 1)}

	select {
	case that.picks <- request:
	case <-that.done:
		return nil, ErrNotRunning
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case reply := <-request.reply:
		return reply.result, reply.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// View returns a snapshot of the board.
func (that *Controller) View(ctx context.Context) (View, error) {
	reply := make(chan View, 1)

	select {
	case that.views <- reply:
	case <-that.done:
		return View{}, ErrNotRunning
	case <-ctx.Done():
		return View{}, ctx.Err()
	}

	select {
	case view := <-reply:
		return view, nil
	case <-ctx.Done():
		return View{}, ctx.Err()
	}
}

// Timer returns the countdown part of the current view.
func (that *Controller) Timer(ctx context.Context) (Timer, error) {
	view, err := that.View(ctx)
	if err != nil {
		return Timer{}, err
	}

	return Timer{GameState: view.GameState, Remaining: view.Remaining}, nil
}

// Run subscribes to the game topic and owns the board until ctx is done.
// It must be called once.
func (that *Controller) Run(ctx context.Context) error {
	defer close(that.done)

	log := that.logger.With("method", "Run")

	ctx, cancel := context.WithCancel(ctx)

	sub, err := that.channel.Subscribe(channel.GameTopic(that.gameID), func(event channel.Event) {
		select {
		case that.events <- event:
		case <-ctx.Done():
		}
	})
	if err != nil {
		cancel()
		return fmt.Errorf("failed to subscribe to game %s: %w", that.gameID, err)
	}

	loop := &runState{
		controller: that,
		log:        log,
		board:      NewBoard(),
		countdown:  &timer.Countdown{},
	}

	defer func() {
		// a delivery blocked on events returns once ctx is cancelled
		cancel()
		if err := sub.Unsubscribe(); err != nil {
			log.Warn("failed to unsubscribe", "error", err)
		}
		loop.stopTicker()
	}()

	close(that.running)
	log.Info("game view started", "memberID", that.memberID)

	for {
		select {
		case <-ctx.Done():
			log.Info("game view stopped")
			return nil
		case event := <-that.events:
			loop.apply(event)
		case request := <-that.picks:
			result, err := loop.pick(request)
			request.reply <- pickReply{result: result, err: err}
		case reply := <-that.views:
			reply <- loop.view()
		case <-loop.tick():
			loop.onTick()
		}
	}
}

// runState is the state only the Run goroutine touches.
type runState struct {
	controller *Controller
	log        *slog.Logger
	board      *Board
	countdown  *timer.Countdown
	ticker     Ticker
}

func (that *runState) apply(event entity.Event) {
	if err := that.board.Apply(event); err != nil {
		that.log.Warn("failed to apply event", "kind", event.Kind(), "error", err)
		return
	}

	if state, ok := event.(entity.StateEvent); ok {
		that.seed(state.GameState)
	}

	that.publish()
}

func (that *runState) pick(request pickRequest) (*channel.PublishResult, error) {
	holder, err := that.board.TurnHolder()
	if err != nil {
		return nil, err
	}

	if holder.MemberID != that.controller.memberID {
		return nil, fmt.Errorf("%w: member %d holds the turn", apperror.ErrNotYourTurn, holder.MemberID)
	}

	// The pick lands on a copy and is kept only once the server has it.
	board := that.board.Clone()

	event, err := board.Pick(request.ownerID, request.cardIndex)
	if err != nil {
		return nil, err
	}

	result, err := that.controller.channel.Publish(request.ctx, channel.PickCardDestination(that.controller.gameID), event)
	if err != nil {
		return nil, fmt.Errorf("failed to publish pick: %w", err)
	}

	that.board = board
	that.publish()

	that.log.Debug("card picked", "owner", request.ownerID, "card", event.OpenCardNum)

	return result, nil
}

// seed restarts the countdown for state, also when state did not change.
func (that *runState) seed(state entity.GameState) {
	that.stopTicker()

	remaining, err := that.countdown.Seed(state)
	if err != nil {
		that.log.Warn("failed to seed countdown", "error", err)
		return
	}

	if remaining > 0 {
		that.ticker = that.controller.newTicker()
	}
}

func (that *runState) onTick() {
	if _, running := that.countdown.Tick(); !running {
		that.stopTicker()
	}

	that.publish()
}

// tick is nil while no countdown runs, which blocks its select case.
func (that *runState) tick() <-chan time.Time {
	if that.ticker == nil {
		return nil
	}

	return that.ticker.C()
}

func (that *runState) stopTicker() {
	if that.ticker != nil {
		that.ticker.Stop()
		that.ticker = nil
	}
}

func (that *runState) view() View {
	board := that.board.Clone()

	return View{
		GameID:    that.controller.gameID,
		MemberID:  that.controller.memberID,
		GameState: board.GameState,
		CurTurn:   board.CurTurn,
		Round:     board.Round,
		Players:   board.Players,
		CardTypes: board.CardTypes,
		RoundCard: board.RoundCard,
		TableCard: board.TableCard,
		Remaining: that.countdown.Remaining(),
	}
}

func (that *runState) publish() {
	view := that.view()

	select {
	case <-that.controller.updates:
	default:
	}

	select {
	case that.controller.updates <- view:
	default:
	}
}
