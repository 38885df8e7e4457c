package app

import (
	"math/rand"
	"time"

	"github.com/google/uuid"

	"rung/internal/domain"
)

// Seat names a participant joining a match, in seat order.
type Seat struct {
	ID       string
	Nickname string
}

// Service contains the Rung state transitions. Every transition takes the
// current state and returns the next one; an input that cannot be applied
// returns the input state pointer unchanged, so callers can detect no-ops
// by reference equality. Transitions never mutate their input.
type Service struct {
	rng *rand.Rand
}

// NewService constructs a Service with the provided rng or a time-seeded
// default. Replicated peers applying the same deterministic transitions
// never consult the rng; it only feeds dealing and dealer selection on the
// peer that drives a new round.
func NewService(rng *rand.Rand) *Service {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Service{rng: rng}
}

// CreateInitialGameState seats the given players and returns a fresh match
// in the waiting phase with a random first dealer.
func (s *Service) CreateInitialGameState(seats []Seat) *domain.GameState {
	players := make([]domain.Player, len(seats))
	for i, seat := range seats {
		players[i] = domain.Player{
			ID:       seat.ID,
			Nickname: seat.Nickname,
			Position: i,
		}
	}
	return &domain.GameState{
		Phase:       domain.PhaseWaiting,
		Players:     players,
		DealerIndex: s.rng.Intn(4),
		RoundNumber: 1,
	}
}

// StartNewRound shuffles and deals a fresh deck and moves to trump
// selection. The trump caller is the seat counter-clockwise of the dealer
// and leads the first trick. A no-op outside the waiting and
// round-complete phases.
func (s *Service) StartNewRound(state *domain.GameState) *domain.GameState {
	if state.Phase != domain.PhaseWaiting && state.Phase != domain.PhaseRoundComplete {
		return state
	}

	deck := domain.ShuffleDeck(s.rng, domain.NewDeck())
	hands := domain.Deal(deck)

	next := state.Clone()
	trumpCaller := (next.DealerIndex - 1 + 4) % 4
	for i := range next.Players {
		next.Players[i].Hand = hands[i]
		next.Players[i].WonCards = nil
		next.Players[i].TricksWon = 0
	}

	next.Phase = domain.PhaseTrumpSelection
	next.TrumpSuit = ""
	next.TrumpCallerID = next.Players[trumpCaller].ID
	next.CurrentTrick = domain.Trick{}
	next.Pile = []domain.Trick{{}}
	next.CompletedTricks = 0
	next.CurrentPlayerIndex = trumpCaller
	next.PrevTrickWinnerID = ""
	return next
}

// SelectTrump fixes the trump suit for the deal and opens play. The trump
// caller keeps the lead. A no-op outside trump selection.
func (s *Service) SelectTrump(state *domain.GameState, suit domain.Suit) *domain.GameState {
	if state.Phase != domain.PhaseTrumpSelection {
		return state
	}
	next := state.Clone()
	next.Phase = domain.PhasePlaying
	next.TrumpSuit = suit
	return next
}

// PlayCard applies one card to the current trick. The play is rejected
// (state returned unchanged) unless it is the playing phase, the player
// holds the turn, the card is in their hand, and the card is legal under
// the follow-suit and trump rules.
func (s *Service) PlayCard(state *domain.GameState, playerID string, card domain.Card) *domain.GameState {
	if state.Phase != domain.PhasePlaying {
		return state
	}
	playerIndex := state.PlayerIndex(playerID)
	if playerIndex < 0 || playerIndex != state.CurrentPlayerIndex {
		return state
	}
	player := state.Players[playerIndex]
	if !domain.HasCard(player.Hand, card.ID) {
		return state
	}
	if !domain.CanPlayCard(card, player.Hand, state.CurrentTrick.LeadSuit, state.TrumpSuit) {
		return state
	}

	next := state.Clone()
	next.Players[playerIndex].Hand = domain.RemoveCard(next.Players[playerIndex].Hand, card.ID)

	trick := &next.CurrentTrick
	if trick.LeadSuit == "" {
		trick.LeadSuit = card.Suit
	}
	trick.Cards = append(trick.Cards, domain.PlayedCard{Card: card, PlayerID: playerID})

	// The growing trick is always the tail of the pile.
	if len(next.Pile) == 0 {
		next.Pile = []domain.Trick{{}}
	}
	next.Pile[len(next.Pile)-1] = cloneTrick(*trick)

	if len(trick.Cards) < 4 {
		next.CurrentPlayerIndex = (next.CurrentPlayerIndex - 1 + 4) % 4
		return next
	}

	next.CompletedTricks++
	winnerID := domain.DetermineWinner(trick.Cards, trick.LeadSuit, next.TrumpSuit)
	winnerIndex := next.PlayerIndex(winnerID)
	trick.WinnerID = winnerID
	next.Pile[len(next.Pile)-1] = cloneTrick(*trick)

	awarded := next.CompletedTricks > 2 &&
		((winnerID == next.PrevTrickWinnerID && len(next.Pile) > 1) || next.CompletedTricks == 13)

	if awarded {
		winner := &next.Players[winnerIndex]
		winner.TricksWon += len(next.Pile)
		for _, t := range next.Pile {
			for _, pc := range t.Cards {
				winner.WonCards = append(winner.WonCards, pc.Card)
			}
		}
		next.Phase = domain.PhaseTrickAward
	} else {
		next.Phase = domain.PhaseTrickNoAward
	}
	next.PrevTrickWinnerID = winnerID
	next.CurrentPlayerIndex = winnerIndex
	return next
}

// ContinueAfterTrick advances past a completed trick: either back into
// play with a fresh trick, or into round completion once a team holds 7
// tricks. A no-op outside the two trick-complete phases.
func (s *Service) ContinueAfterTrick(state *domain.GameState) *domain.GameState {
	switch state.Phase {
	case domain.PhaseTrickAward:
		if winnerTeam(state) != 0 {
			next := s.completeRound(state)
			next.Phase = domain.PhaseRoundComplete
			return next
		}
		next := state.Clone()
		next.Phase = domain.PhasePlaying
		next.CurrentTrick = domain.Trick{}
		next.Pile = []domain.Trick{{}}
		return next
	case domain.PhaseTrickNoAward:
		next := state.Clone()
		next.Phase = domain.PhasePlaying
		next.CurrentTrick = domain.Trick{}
		next.Pile = append(next.Pile, domain.Trick{})
		return next
	default:
		return state
	}
}

// AddChatMessage appends a chat entry; chat is accepted in every phase.
func (s *Service) AddChatMessage(state *domain.GameState, msg domain.ChatMessage) *domain.GameState {
	next := state.Clone()
	next.ChatMessages = append(next.ChatMessages, msg)
	return next
}

// NewChatMessage builds a chat entry for the given player.
func NewChatMessage(playerID, nickname, text string) domain.ChatMessage {
	return domain.ChatMessage{
		ID:        uuid.NewString(),
		PlayerID:  playerID,
		Nickname:  nickname,
		Message:   text,
		Timestamp: time.Now().UnixMilli(),
	}
}

// completeRound credits the deal to the winning team and hands the next
// deal to one of its two seats, chosen uniformly.
//
// Court scoring (52-trick sweep, first-7-consecutive, 7-consecutive-deals)
// is an open extension point: the counters travel with the state but no
// rule updates them yet.
func (s *Service) completeRound(state *domain.GameState) *domain.GameState {
	team := winnerTeam(state)
	if team == 0 {
		return state
	}
	next := state.Clone()
	if team == 1 {
		next.Team1DealsWon++
		next.DealerIndex = s.pickOne(0, 2)
	} else {
		next.Team2DealsWon++
		next.DealerIndex = s.pickOne(1, 3)
	}
	next.RoundNumber++
	return next
}

// winnerTeam returns 1 or 2 once that team holds at least 7 tricks, else 0.
func winnerTeam(state *domain.GameState) int {
	if state.TeamTricks(1) >= 7 {
		return 1
	}
	if state.TeamTricks(2) >= 7 {
		return 2
	}
	return 0
}

func (s *Service) pickOne(a, b int) int {
	if s.rng.Intn(2) == 0 {
		return a
	}
	return b
}

func cloneTrick(t domain.Trick) domain.Trick {
	t.Cards = append([]domain.PlayedCard(nil), t.Cards...)
	return t
}
