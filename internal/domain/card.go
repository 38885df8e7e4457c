package domain

// Suit is one of the four French suits.
type Suit string

const (
	Hearts   Suit = "hearts"
	Diamonds Suit = "diamonds"
	Clubs    Suit = "clubs"
	Spades   Suit = "spades"
)

// Rank is a card rank, Ace high.
type Rank string

const (
	Ace   Rank = "A"
	King  Rank = "K"
	Queen Rank = "Q"
	Jack  Rank = "J"
	Ten   Rank = "10"
	Nine  Rank = "9"
	Eight Rank = "8"
	Seven Rank = "7"
	Six   Rank = "6"
	Five  Rank = "5"
	Four  Rank = "4"
	Three Rank = "3"
	Two   Rank = "2"
)

// Suits lists the suits in fixed deck order.
var Suits = []Suit{Hearts, Diamonds, Clubs, Spades}

// Ranks lists the ranks from highest to lowest.
var Ranks = []Rank{Ace, King, Queen, Jack, Ten, Nine, Eight, Seven, Six, Five, Four, Three, Two}

// rankValues maps each rank to its comparison value (Ace highest).
var rankValues = map[Rank]int{
	Ace: 14, King: 13, Queen: 12, Jack: 11, Ten: 10, Nine: 9, Eight: 8,
	Seven: 7, Six: 6, Five: 5, Four: 4, Three: 3, Two: 2,
}

// suitOrder gives each suit a stable index for hand sorting.
var suitOrder = map[Suit]int{Spades: 0, Hearts: 1, Diamonds: 2, Clubs: 3}

// Card is a single playing card. The ID is unique across the 52-card deck.
type Card struct {
	Suit Suit   `json:"suit"`
	Rank Rank   `json:"rank"`
	ID   string `json:"id"`
}

// NewCard builds a card with its canonical id.
func NewCard(suit Suit, rank Rank) Card {
	return Card{Suit: suit, Rank: rank, ID: string(suit) + "-" + string(rank)}
}

// RankValue returns the comparison value of a rank; unknown ranks compare lowest.
func RankValue(r Rank) int {
	return rankValues[r]
}
