package game

import (
	"fmt"

	"github.com/gugu/cmiuc-client/internal/apperror"
	"github.com/gugu/cmiuc-client/internal/entity"
)

const firstRound = 1

// Board is the local view state of one game. It is not safe for concurrent
// use; the controller loop owns it.
type Board struct {
	Players   []entity.PlayerInfo
	CurTurn   int
	Round     int
	GameState entity.GameState
	CardTypes entity.CardTypes
	RoundCard entity.RoundCard
	TableCard entity.TableCard
}

func NewBoard() *Board {
	return &Board{
		Round:     firstRound,
		GameState: entity.StateGameStart,
		CardTypes: entity.NewCardTypes(),
		RoundCard: entity.RoundCard{firstRound - 1: entity.NewCardTypes()},
		TableCard: entity.TableCard{},
	}
}

// TurnHolder is the player whose order matches the current turn.
func (that *Board) TurnHolder() (entity.PlayerInfo, error) {
	for _, player := range that.Players {
		if player.Order == that.CurTurn {
			return player, nil
		}
	}

	return entity.PlayerInfo{}, fmt.Errorf("%w: no player with order %d", apperror.ErrPlayerNotFound, that.CurTurn)
}

// Pick opens the card at cardIndex of ownerID's hand on behalf of the turn
// holder and returns the event to publish.
func (that *Board) Pick(ownerID int64, cardIndex int) (entity.PickCardEvent, error) {
	owner, err := that.player(ownerID)
	if err != nil {
		return entity.PickCardEvent{}, err
	}

	self, err := that.TurnHolder()
	if err != nil {
		return entity.PickCardEvent{}, err
	}

	if self.MemberID == ownerID {
		return entity.PickCardEvent{}, apperror.ErrOwnCard
	}

	hand := that.Players[owner].Cards
	if cardIndex < 0 || cardIndex >= len(hand) {
		return entity.PickCardEvent{}, fmt.Errorf("%w: index %d of %d", apperror.ErrInvalidCard, cardIndex, len(hand))
	}

	card := hand[cardIndex]
	if err = that.open(owner, card); err != nil {
		return entity.PickCardEvent{}, err
	}

	return entity.PickCardEvent{NextTurn: ownerID, OpenCardNum: card}, nil
}

// Apply folds a broadcast into the board.
func (that *Board) Apply(event entity.Event) error {
	switch typed := event.(type) {
	case entity.PickCardEvent:
		return that.applyPick(typed)
	case entity.StateEvent:
		that.applyState(typed)
		return nil
	default:
		return nil
	}
}

// Clone returns a deep copy for readers outside the owner goroutine.
func (that *Board) Clone() *Board {
	players := make([]entity.PlayerInfo, len(that.Players))
	for i, player := range that.Players {
		players[i] = player.Clone()
	}

	return &Board{
		Players:   players,
		CurTurn:   that.CurTurn,
		Round:     that.Round,
		GameState: that.GameState,
		CardTypes: that.CardTypes.Clone(),
		RoundCard: that.RoundCard.Clone(),
		TableCard: append(entity.TableCard{}, that.TableCard...),
	}
}

func (that *Board) applyPick(event entity.PickCardEvent) error {
	// the echo of a local pick is already on the table
	if that.TableCard.Contains(event.OpenCardNum) {
		return nil
	}

	owner, err := that.player(event.NextTurn)
	if err != nil {
		return err
	}

	return that.open(owner, event.OpenCardNum)
}

func (that *Board) applyState(event entity.StateEvent) {
	players := make([]entity.PlayerInfo, len(event.Players))
	for i, player := range event.Players {
		players[i] = player.Clone()
	}

	that.Players = players
	that.CurTurn = event.CurTurn
	that.GameState = event.GameState

	if event.Round >= firstRound && event.Round != that.Round {
		that.Round = event.Round
		that.TableCard = entity.TableCard{}
	}

	if _, ok := that.RoundCard[that.Round-1]; !ok {
		that.RoundCard[that.Round-1] = entity.NewCardTypes()
	}
}

// open moves card from the owner's hand to the buckets and the table and
// passes the turn to the owner. Nothing changes if the card has no type.
func (that *Board) open(owner int, card entity.Card) error {
	info, err := entity.CardInfoMap(len(that.Players))
	if err != nil {
		return err
	}

	cardType, err := info.Classify(card)
	if err != nil {
		return err
	}

	round, ok := that.RoundCard[that.Round-1]
	if !ok {
		round = entity.NewCardTypes()
		that.RoundCard[that.Round-1] = round
	}

	that.CardTypes[cardType] = append(that.CardTypes[cardType], card)
	round[cardType] = append(round[cardType], card)
	that.TableCard = append(that.TableCard, card)

	that.Players[owner].RemoveCard(card)
	that.CurTurn = that.Players[owner].Order

	return nil
}

func (that *Board) player(memberID int64) (int, error) {
	for i, player := range that.Players {
		if player.MemberID == memberID {
			return i, nil
		}
	}

	return -1, fmt.Errorf("%w: member %d", apperror.ErrPlayerNotFound, memberID)
}
