// Package chat holds the message log of one chat room.
package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/gugu/cmiuc-client/internal/apperror"
	"github.com/gugu/cmiuc-client/internal/channel"
	"github.com/gugu/cmiuc-client/internal/entity"
)

type realtime interface {
	Subscribe(topic string, handler func(event channel.Event)) (*channel.Subscription, error)
	Publish(ctx context.Context, destination string, payload any) (*channel.PublishResult, error)
}

type Room struct {
	logger  *slog.Logger
	channel realtime
	roomID  string
	sender  string

	mu       sync.Mutex
	sub      *channel.Subscription
	messages []entity.ChatMessage
	left     bool
	onChange func(message entity.ChatMessage)
}

func NewRoom(logger *slog.Logger, rt realtime, roomID, sender string) *Room {
	return &Room{
		logger:  logger.With("component", "chat", "roomID", roomID),
		channel: rt,
		roomID:  roomID,
		sender:  sender,
	}
}

// OnMessage registers a callback run after every append.
func (that *Room) OnMessage(callback func(message entity.ChatMessage)) {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.onChange = callback
}

// Join subscribes to the room topic.
func (that *Room) Join() error {
	that.mu.Lock()
	if that.left {
		that.mu.Unlock()
		return apperror.ErrChannelClosed
	}
	that.mu.Unlock()

	sub, err := that.channel.Subscribe(channel.ChatTopic(that.roomID), that.receive)
	if err != nil {
		return fmt.Errorf("failed to join chat room %s: %w", that.roomID, err)
	}

	that.mu.Lock()
	that.sub = sub
	that.mu.Unlock()

	that.logger.Info("joined chat room")

	return nil
}

// Send publishes one line as this room's sender.
func (that *Room) Send(ctx context.Context, message string) (*channel.PublishResult, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, apperror.ErrEmptyMessage
	}

	that.mu.Lock()
	left := that.left
	that.mu.Unlock()

	if left {
		return nil, apperror.ErrChannelClosed
	}

	payload := entity.ChatMessage{Sender: that.sender, Message: message}

	result, err := that.channel.Publish(ctx, channel.ChatDestination(that.roomID), payload)
	if err != nil {
		return nil, fmt.Errorf("failed to send chat message: %w", err)
	}

	return result, nil
}

// Messages returns a copy of the log in delivery order.
func (that *Room) Messages() []entity.ChatMessage {
	that.mu.Lock()
	defer that.mu.Unlock()

	return append([]entity.ChatMessage{}, that.messages...)
}

// IsOwn reports whether message was sent under this room's sender name.
func (that *Room) IsOwn(message entity.ChatMessage) bool {
	return message.Sender == that.sender
}

// Leave unsubscribes. No message is appended after it returns.
func (that *Room) Leave() error {
	that.mu.Lock()
	if that.left {
		that.mu.Unlock()
		return nil
	}
	that.left = true
	sub := that.sub
	that.mu.Unlock()

	if sub == nil {
		return nil
	}

	if err := sub.Unsubscribe(); err != nil {
		return fmt.Errorf("failed to leave chat room %s: %w", that.roomID, err)
	}

	that.logger.Info("left chat room")

	return nil
}

func (that *Room) receive(event channel.Event) {
	chatEvent, ok := event.(entity.ChatEvent)
	if !ok {
		that.logger.Debug("ignoring non chat event", "kind", event.Kind())
		return
	}

	that.mu.Lock()
	if that.left {
		that.mu.Unlock()
		return
	}
	that.messages = append(that.messages, chatEvent.Message)
	callback := that.onChange
	that.mu.Unlock()

	if callback != nil {
		callback(chatEvent.Message)
	}
}

// Format renders a message the way the log shows it. Lines sent under this
// room's sender are marked as ours.
func (that *Room) Format(message entity.ChatMessage) string {
	switch {
	case message.Sender == "":
		return message.Message
	case that.IsOwn(message):
		return message.Sender + " (me) : " + message.Message
	default:
		return message.Sender + " : " + message.Message
	}
}
