package entity

import (
	"fmt"

	"github.com/gugu/cmiuc-client/internal/apperror"
)

type GameState string

const (
	StateGameStart       GameState = "GAME_START"
	StateDrawFirstPlayer GameState = "DRAW_FIRST_PLAYER"
	StateDrawPlayerRole  GameState = "DRAW_PLAYER_ROLE"
	StateRound           GameState = "ROUND"
	StateDrawCard        GameState = "DRAW_CARD"
	StateGameEnd         GameState = "GAME_END"
)

var countdownSeconds = map[GameState]int{
	StateGameStart:       3,
	StateDrawFirstPlayer: 3,
	StateDrawPlayerRole:  10,
	StateRound:           3,
	StateDrawCard:        120,
	StateGameEnd:         0,
}

// CountdownSeconds returns how long the countdown runs in the given state.
func (that GameState) CountdownSeconds() (int, error) {
	seconds, ok := countdownSeconds[that]
	if !ok {
		return 0, fmt.Errorf("%w: %q", apperror.ErrUnknownGameState, string(that))
	}

	return seconds, nil
}

func (that GameState) IsValid() bool {
	_, ok := countdownSeconds[that]
	return ok
}
