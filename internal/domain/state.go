package domain

// Phase represents the lifecycle stage of a Rung match.
type Phase string

const (
	// PhaseWaiting is the pre-deal state before any round starts.
	PhaseWaiting Phase = "waiting"
	// PhaseTrumpSelection waits for the trump caller to pick a suit.
	PhaseTrumpSelection Phase = "trump-selection"
	// PhasePlaying is the active trick-play state.
	PhasePlaying Phase = "playing"
	// PhaseTrickNoAward follows a completed trick whose pile stays in play.
	PhaseTrickNoAward Phase = "trick-complete-without-winner"
	// PhaseTrickAward follows a completed trick whose pile was credited.
	PhaseTrickAward Phase = "trick-complete-with-winner"
	// PhaseRoundComplete follows a deal won by one team.
	PhaseRoundComplete Phase = "round-complete"
	// PhaseGameOver is terminal; the round loop never produces it on its own.
	PhaseGameOver Phase = "game-over"
)

// Player holds the per-seat state inside a match. Positions 0..3 are fixed
// for the match; partners sit at positions differing by 2.
type Player struct {
	ID        string `json:"id"`
	Nickname  string `json:"nickname"`
	Position  int    `json:"position"`
	Hand      []Card `json:"cards"`
	WonCards  []Card `json:"cardsWon"`
	TricksWon int    `json:"tricksWon"`
}

// PlayedCard pairs a card with the player who played it.
type PlayedCard struct {
	Card     Card   `json:"card"`
	PlayerID string `json:"playerId"`
}

// Trick is one round of up to four cards. LeadSuit is set by the first
// card; WinnerID only once all four cards are down.
type Trick struct {
	Cards    []PlayedCard `json:"cards"`
	WinnerID string       `json:"winner,omitempty"`
	LeadSuit Suit         `json:"leadSuit,omitempty"`
}

// ChatMessage is a single chat entry replicated with the game state.
type ChatMessage struct {
	ID        string `json:"id"`
	PlayerID  string `json:"playerId"`
	Nickname  string `json:"nickname"`
	Message   string `json:"message"`
	Timestamp int64  `json:"timestamp"`
}

// GameState is the full replicated match state. The host's copy is
// authoritative; every other peer holds a best-effort replica advanced by
// the same transitions.
type GameState struct {
	Phase   Phase    `json:"phase"`
	Players []Player `json:"players"`

	TrumpSuit     Suit   `json:"trumpSuit,omitempty"`
	TrumpCallerID string `json:"trumpCallerId,omitempty"`

	CurrentTrick Trick `json:"currentTrick"`
	// Pile accumulates tricks not yet credited to any player; it is flushed
	// to the round's current winner as one unit.
	Pile            []Trick `json:"pile"`
	CompletedTricks int     `json:"completedTricks"`

	CurrentPlayerIndex int `json:"currentPlayerIndex"`
	DealerIndex        int `json:"dealerIndex"`

	Team1DealsWon int `json:"team1DealsWon"`
	Team2DealsWon int `json:"team2DealsWon"`
	// Court counters are carried and replicated but not yet computed; see
	// the completeRound note in the app package.
	Team1Courts            int `json:"team1Courts"`
	Team2Courts            int `json:"team2Courts"`
	ConsecutiveDealsWinner int `json:"consecutiveDealsWinner,omitempty"`
	ConsecutiveDealsCount  int `json:"consecutiveDealsCount"`

	RoundNumber       int    `json:"roundNumber"`
	PrevTrickWinnerID string `json:"prevTrickWinner,omitempty"`

	ChatMessages []ChatMessage `json:"chatMessages"`
}

// Clone returns a deep copy safe to mutate without touching the receiver.
func (s *GameState) Clone() *GameState {
	out := *s
	out.Players = make([]Player, len(s.Players))
	for i, p := range s.Players {
		p.Hand = append([]Card(nil), p.Hand...)
		p.WonCards = append([]Card(nil), p.WonCards...)
		out.Players[i] = p
	}
	out.CurrentTrick = cloneTrick(s.CurrentTrick)
	out.Pile = make([]Trick, len(s.Pile))
	for i, t := range s.Pile {
		out.Pile[i] = cloneTrick(t)
	}
	out.ChatMessages = append([]ChatMessage(nil), s.ChatMessages...)
	return &out
}

func cloneTrick(t Trick) Trick {
	t.Cards = append([]PlayedCard(nil), t.Cards...)
	return t
}

// PlayerIndex returns the seat of the given player id, or -1.
func (s *GameState) PlayerIndex(playerID string) int {
	for i, p := range s.Players {
		if p.ID == playerID {
			return i
		}
	}
	return -1
}

// TeamTricks sums the tricks won by a team (1 covers seats 0/2, 2 covers
// seats 1/3).
func (s *GameState) TeamTricks(team int) int {
	if len(s.Players) < 4 {
		return 0
	}
	if team == 1 {
		return s.Players[0].TricksWon + s.Players[2].TricksWon
	}
	return s.Players[1].TricksWon + s.Players[3].TricksWon
}

// RemoveCard removes the card with the given id from a hand and returns the
// updated hand.
func RemoveCard(hand []Card, cardID string) []Card {
	out := make([]Card, 0, len(hand))
	for _, c := range hand {
		if c.ID == cardID {
			continue
		}
		out = append(out, c)
	}
	return out
}

// HasCard reports whether the hand holds the card with the given id.
func HasCard(hand []Card, cardID string) bool {
	for _, c := range hand {
		if c.ID == cardID {
			return true
		}
	}
	return false
}
