package domain

import (
	"math/rand"
	"sort"
)

// NewDeck returns the 52 distinct cards in fixed suit-major order.
func NewDeck() []Card {
	deck := make([]Card, 0, 52)
	for _, s := range Suits {
		for _, r := range Ranks {
			deck = append(deck, NewCard(s, r))
		}
	}
	return deck
}

// ShuffleDeck returns a uniformly shuffled copy of the given deck.
func ShuffleDeck(rng *rand.Rand, deck []Card) []Card {
	out := make([]Card, len(deck))
	copy(out, deck)
	rng.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}

// Deal splits a 52-card deck into 4 hands of 13. The first 5 cards per seat
// go out round-robin, then the remaining 32 round-robin in deck order.
func Deal(deck []Card) [4][]Card {
	var hands [4][]Card
	for i := range hands {
		hands[i] = make([]Card, 0, 13)
	}
	for i := 0; i < 5; i++ {
		for p := 0; p < 4; p++ {
			hands[p] = append(hands[p], deck[i*4+p])
		}
	}
	for i := 0; i < 8; i++ {
		for p := 0; p < 4; p++ {
			hands[p] = append(hands[p], deck[20+i*4+p])
		}
	}
	return hands
}

// SortHand orders a hand by suit, then by descending rank within each suit.
func SortHand(cards []Card) {
	sort.Slice(cards, func(i, j int) bool {
		if cards[i].Suit != cards[j].Suit {
			return suitOrder[cards[i].Suit] < suitOrder[cards[j].Suit]
		}
		return RankValue(cards[i].Rank) > RankValue(cards[j].Rank)
	})
}
