package domain

// CanPlayCard reports whether playing card from hand is legal given the
// trick's lead suit and the deal's trump suit. The first card of a trick is
// always legal. Otherwise the player must follow the lead suit if able,
// must play trump if void in the lead suit but holding trump, and may play
// anything when void in both.
func CanPlayCard(card Card, hand []Card, leadSuit, trumpSuit Suit) bool {
	if leadSuit == "" {
		return true
	}
	if holdsSuit(hand, leadSuit) {
		return card.Suit == leadSuit
	}
	if trumpSuit != "" && holdsSuit(hand, trumpSuit) {
		return card.Suit == trumpSuit
	}
	return true
}

// DetermineWinner returns the player id that takes the trick. Any trump
// outranks every non-trump; otherwise the highest card of the lead suit
// wins. The result depends only on the set of cards, not on their order
// in the slice. Ties are impossible in a single 52-card deck.
func DetermineWinner(played []PlayedCard, leadSuit, trumpSuit Suit) string {
	candidates := filterBySuit(played, trumpSuit)
	if len(candidates) == 0 {
		candidates = filterBySuit(played, leadSuit)
	}
	if len(candidates) == 0 {
		candidates = played
	}
	winner := candidates[0]
	for _, current := range candidates[1:] {
		if RankValue(current.Card.Rank) > RankValue(winner.Card.Rank) {
			winner = current
		}
	}
	return winner.PlayerID
}

func filterBySuit(played []PlayedCard, suit Suit) []PlayedCard {
	if suit == "" {
		return nil
	}
	var out []PlayedCard
	for _, pc := range played {
		if pc.Card.Suit == suit {
			out = append(out, pc)
		}
	}
	return out
}

func holdsSuit(hand []Card, suit Suit) bool {
	for _, c := range hand {
		if c.Suit == suit {
			return true
		}
	}
	return false
}
