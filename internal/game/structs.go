package game

import "github.com/gugu/cmiuc-client/internal/entity"

// View is a snapshot of the board and its countdown.
type View struct {
	GameID    string              `json:"gameId"`
	MemberID  int64               `json:"memberId"`
	GameState entity.GameState    `json:"gameState"`
	CurTurn   int                 `json:"curTurn"`
	Round     int                 `json:"round"`
	Players   []entity.PlayerInfo `json:"players"`
	CardTypes entity.CardTypes    `json:"cardTypes"`
	RoundCard entity.RoundCard    `json:"roundCard"`
	TableCard entity.TableCard    `json:"tableCard"`
	Remaining int                 `json:"remaining"`
}

// Timer is the countdown part of a View.
type Timer struct {
	GameState entity.GameState `json:"gameState"`
	Remaining int              `json:"remaining"`
}
