package entity

import (
	"fmt"

	"github.com/gugu/cmiuc-client/internal/apperror"
)

const (
	MinPlayers = 2
	MaxPlayers = 6
)

// Card values encode their type in the hundreds digit.
const (
	cheeseBase = 100
	trapBase   = 200
	emptyBase  = 300
)

type Card int

type CardType string

const (
	CardCheese CardType = "CHEESE"
	CardTrap   CardType = "TRAP"
	CardEmpty  CardType = "EMPTY"
)

// CardTypeOrder is the order buckets are searched in during classification.
var CardTypeOrder = []CardType{CardCheese, CardTrap, CardEmpty}

type CardBucket struct {
	Type  CardType
	Cards []Card
}

// CardInfo is the static card table for one player count.
type CardInfo []CardBucket

// CardInfoMap returns the card table for the given number of players.
func CardInfoMap(players int) (CardInfo, error) {
	if players < MinPlayers || players > MaxPlayers {
		return nil, fmt.Errorf("%w: %d", apperror.ErrInvalidPlayerCount, players)
	}

	cheese := make([]Card, 0, players)
	for i := 1; i <= players; i++ {
		cheese = append(cheese, Card(cheeseBase+i))
	}

	empty := make([]Card, 0, 4*players-1)
	for i := 1; i <= 4*players-1; i++ {
		empty = append(empty, Card(emptyBase+i))
	}

	return CardInfo{
		{Type: CardCheese, Cards: cheese},
		{Type: CardTrap, Cards: []Card{trapBase + 1}},
		{Type: CardEmpty, Cards: empty},
	}, nil
}

// Classify returns the first bucket containing card.
func (that CardInfo) Classify(card Card) (CardType, error) {
	for _, bucket := range that {
		for _, candidate := range bucket.Cards {
			if candidate == card {
				return bucket.Type, nil
			}
		}
	}

	return "", fmt.Errorf("%w: %d", apperror.ErrUnclassifiedCard, card)
}

// Deck lists every card of the table in bucket order.
func (that CardInfo) Deck() []Card {
	var deck []Card
	for _, bucket := range that {
		deck = append(deck, bucket.Cards...)
	}

	return deck
}

// CardTypes accumulates drawn cards per type.
type CardTypes map[CardType][]Card

func NewCardTypes() CardTypes {
	types := make(CardTypes, len(CardTypeOrder))
	for _, cardType := range CardTypeOrder {
		types[cardType] = []Card{}
	}

	return types
}

func (that CardTypes) Clone() CardTypes {
	clone := make(CardTypes, len(that))
	for cardType, cards := range that {
		clone[cardType] = append([]Card{}, cards...)
	}

	return clone
}

func (that CardTypes) Count(card Card) int {
	count := 0
	for _, cards := range that {
		for _, candidate := range cards {
			if candidate == card {
				count++
			}
		}
	}

	return count
}

// RoundCard maps a zero-based round index to the cards drawn in that round.
type RoundCard map[int]CardTypes

func (that RoundCard) Clone() RoundCard {
	clone := make(RoundCard, len(that))
	for round, types := range that {
		clone[round] = types.Clone()
	}

	return clone
}

// TableCard holds the cards face up on the table in the current round.
type TableCard []Card

func (that TableCard) Contains(card Card) bool {
	for _, candidate := range that {
		if candidate == card {
			return true
		}
	}

	return false
}
