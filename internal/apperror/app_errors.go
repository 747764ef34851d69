package apperror

import "errors"

var (
	ErrChannelConnect    = errors.New("could not connect to channel")
	ErrChannelClosed     = errors.New("channel is closed")
	ErrAlreadySubscribed = errors.New("topic is already subscribed")
	ErrMalformedMessage  = errors.New("malformed message")

	ErrUnclassifiedCard   = errors.New("card does not belong to any card type")
	ErrNotYourTurn        = errors.New("it's not your turn")
	ErrOwnCard            = errors.New("can't pick your own card")
	ErrPlayerNotFound     = errors.New("player not found")
	ErrInvalidCard        = errors.New("invalid card index")
	ErrInvalidPlayerCount = errors.New("invalid player count")
	ErrUnknownGameState   = errors.New("unknown game state")

	ErrEmptyMessage = errors.New("message is empty")

	ErrCredentialNotFound = errors.New("credential not found")
	ErrCredentialExpired  = errors.New("credential is expired")
)
