package entity

import (
	"encoding/json"
	"fmt"

	"github.com/gugu/cmiuc-client/internal/apperror"
)

type MessageType string

const (
	MessageEnter     MessageType = "ENTER"
	MessageExit      MessageType = "EXIT"
	MessageTalk      MessageType = "TALK"
	MessagePickCard  MessageType = "PICK_CARD"
	MessageGameState MessageType = "GAME_STATE"
)

// Envelope is the body of every broadcast frame.
type Envelope struct {
	Type   MessageType     `json:"type"`
	RoomID string          `json:"roomId,omitempty"`
	Data   json.RawMessage `json:"data"`
}

type Event interface {
	Kind() MessageType
}

type ChatEvent struct {
	Type    MessageType
	RoomID  string
	Message ChatMessage
}

func (that ChatEvent) Kind() MessageType { return that.Type }

// PickCardEvent is both the outbound pick body and its broadcast.
type PickCardEvent struct {
	NextTurn    int64 `json:"nextTurn"`
	OpenCardNum Card  `json:"openCardNum"`
}

func (that PickCardEvent) Kind() MessageType { return MessagePickCard }

type StateEvent struct {
	GameState GameState    `json:"gameState"`
	CurTurn   int          `json:"curTurn"`
	Round     int          `json:"round"`
	Players   []PlayerInfo `json:"players"`
}

func (that StateEvent) Kind() MessageType { return MessageGameState }

type chatData struct {
	Sender  *string `json:"sender"`
	Message *string `json:"message"`
}

type pickCardData struct {
	NextTurn    *int64 `json:"nextTurn"`
	OpenCardNum *Card  `json:"openCardNum"`
}

// DecodeEvent turns a frame body into a typed event.
func DecodeEvent(body []byte) (Event, error) {
	var envelope Envelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("%w: %w", apperror.ErrMalformedMessage, err)
	}

	if len(envelope.Data) == 0 || string(envelope.Data) == "null" {
		return nil, fmt.Errorf("%w: missing data", apperror.ErrMalformedMessage)
	}

	switch envelope.Type {
	case MessageEnter, MessageExit, MessageTalk:
		return decodeChat(envelope)
	case MessagePickCard:
		return decodePickCard(envelope)
	case MessageGameState:
		return decodeState(envelope)
	default:
		return nil, fmt.Errorf("%w: unknown type %q", apperror.ErrMalformedMessage, string(envelope.Type))
	}
}

func decodeChat(envelope Envelope) (Event, error) {
	var data chatData
	if err := json.Unmarshal(envelope.Data, &data); err != nil {
		return nil, fmt.Errorf("%w: %w", apperror.ErrMalformedMessage, err)
	}

	if data.Message == nil {
		return nil, fmt.Errorf("%w: chat message without text", apperror.ErrMalformedMessage)
	}

	event := ChatEvent{
		Type:    envelope.Type,
		RoomID:  envelope.RoomID,
		Message: ChatMessage{Message: *data.Message},
	}
	if data.Sender != nil {
		event.Message.Sender = *data.Sender
	}

	return event, nil
}

func decodePickCard(envelope Envelope) (Event, error) {
	var data pickCardData
	if err := json.Unmarshal(envelope.Data, &data); err != nil {
		return nil, fmt.Errorf("%w: %w", apperror.ErrMalformedMessage, err)
	}

	if data.NextTurn == nil || data.OpenCardNum == nil {
		return nil, fmt.Errorf("%w: pick without turn or card", apperror.ErrMalformedMessage)
	}

	return PickCardEvent{NextTurn: *data.NextTurn, OpenCardNum: *data.OpenCardNum}, nil
}

func decodeState(envelope Envelope) (Event, error) {
	var event StateEvent
	if err := json.Unmarshal(envelope.Data, &event); err != nil {
		return nil, fmt.Errorf("%w: %w", apperror.ErrMalformedMessage, err)
	}

	if !event.GameState.IsValid() {
		return nil, fmt.Errorf("%w: %w %q", apperror.ErrMalformedMessage, apperror.ErrUnknownGameState, string(event.GameState))
	}

	return event, nil
}

// EncodeEvent wraps an event into an envelope, the way the server broadcasts it.
func EncodeEvent(roomID string, event Event) ([]byte, error) {
	var data any

	switch typed := event.(type) {
	case ChatEvent:
		data = typed.Message
	case PickCardEvent, StateEvent:
		data = typed
	default:
		return nil, fmt.Errorf("unsupported event %T", event)
	}

	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event data: %w", err)
	}

	body, err := json.Marshal(Envelope{Type: event.Kind(), RoomID: roomID, Data: raw})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal envelope: %w", err)
	}

	return body, nil
}
