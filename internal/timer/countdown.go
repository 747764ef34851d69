// Package timer is the display countdown of a game phase. It is local only
// and never gates protocol actions.
package timer

import (
	"fmt"

	"github.com/gugu/cmiuc-client/internal/entity"
)

type Countdown struct {
	state     entity.GameState
	remaining int
}

// Seed starts a new countdown for state, replacing any running one.
func (that *Countdown) Seed(state entity.GameState) (int, error) {
	seconds, err := state.CountdownSeconds()
	if err != nil {
		return that.remaining, fmt.Errorf("failed to seed countdown: %w", err)
	}

	that.state = state
	that.remaining = seconds

	return that.remaining, nil
}

// Tick advances one second. It returns the new value and whether the
// countdown is still running; it never goes below zero.
func (that *Countdown) Tick() (int, bool) {
	if that.remaining > 0 {
		that.remaining--
	}

	return that.remaining, that.remaining > 0
}

func (that *Countdown) Remaining() int {
	return that.remaining
}

func (that *Countdown) State() entity.GameState {
	return that.state
}

func (that *Countdown) Running() bool {
	return that.remaining > 0
}
