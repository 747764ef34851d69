package application

import (
	"testing"

	"github.com/gugu/cmiuc-client/internal/entity"
	"github.com/gugu/cmiuc-client/internal/game"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCommand(t *testing.T) {
	t.Run("Pick", func(t *testing.T) {
		cmd, err := parseCommand("  pick 2 0 ")

		require.NoError(t, err)
		assert.Equal(t, command{name: commandPick, ownerID: 2, cardIndex: 0}, cmd)
	})

	t.Run("View", func(t *testing.T) {
		cmd, err := parseCommand("view")

		require.NoError(t, err)
		assert.Equal(t, commandView, cmd.name)
	})

	for _, line := range []string{"", "pick", "pick 2", "pick x 0", "pick 2 y", "draw 1 1"} {
		t.Run("Rejects "+line, func(t *testing.T) {
			_, err := parseCommand(line)

			require.ErrorIs(t, err, ErrUnknownCommand)
		})
	}
}

func TestFormatView(t *testing.T) {
	view := game.View{
		GameState: entity.StateDrawCard,
		Remaining: 117,
		Round:     2,
		CurTurn:   1,
		TableCard: entity.TableCard{301, 201},
		Players: []entity.PlayerInfo{
			{MemberID: 1, Order: 0, Cards: []entity.Card{101, 302}},
			{MemberID: 2, Order: 1, Cards: []entity.Card{102}},
		},
	}

	assert.Equal(t, "[DRAW_CARD 117s] round 2 turn 1 table [301 201] | 1:2 cards | 2:1 cards", FormatView(view))
}
