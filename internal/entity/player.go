package entity

type PlayerInfo struct {
	MemberID int64  `json:"memberId"`
	Nickname string `json:"nickname,omitempty"`
	Order    int    `json:"order"`
	Cards    []Card `json:"cards"`
}

func (that PlayerInfo) Clone() PlayerInfo {
	that.Cards = append([]Card{}, that.Cards...)
	return that
}

// RemoveCard drops the first occurrence of card from the hand.
func (that *PlayerInfo) RemoveCard(card Card) bool {
	for i, candidate := range that.Cards {
		if candidate == card {
			that.Cards = append(that.Cards[:i:i], that.Cards[i+1:]...)
			return true
		}
	}

	return false
}
