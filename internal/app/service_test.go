package app

import (
	"math/rand"
	"testing"

	"rung/internal/domain"
)

func testSeats() []Seat {
	return []Seat{
		{ID: "p0", Nickname: "North"},
		{ID: "p1", Nickname: "East"},
		{ID: "p2", Nickname: "South"},
		{ID: "p3", Nickname: "West"},
	}
}

func testService() *Service {
	return NewService(rand.New(rand.NewSource(7)))
}

// playingState builds a mid-deal state with explicit hands, skipping the
// dealer. Seat 0 leads.
func playingState(hands [4][]domain.Card, trump domain.Suit) *domain.GameState {
	players := make([]domain.Player, 4)
	for i, seat := range testSeats() {
		players[i] = domain.Player{
			ID:       seat.ID,
			Nickname: seat.Nickname,
			Position: i,
			Hand:     append([]domain.Card(nil), hands[i]...),
		}
	}
	return &domain.GameState{
		Phase:       domain.PhasePlaying,
		Players:     players,
		TrumpSuit:   trump,
		Pile:        []domain.Trick{{}},
		RoundNumber: 1,
	}
}

func hearts(ranks ...domain.Rank) []domain.Card {
	cards := make([]domain.Card, len(ranks))
	for i, r := range ranks {
		cards[i] = domain.NewCard(domain.Hearts, r)
	}
	return cards
}

// playTrick plays four cards in turn order starting from the current
// player, failing the test on any rejected play.
func playTrick(t *testing.T, svc *Service, state *domain.GameState, cards map[string]domain.Card) *domain.GameState {
	t.Helper()
	for i := 0; i < 4; i++ {
		player := state.Players[state.CurrentPlayerIndex]
		card, ok := cards[player.ID]
		if !ok {
			t.Fatalf("no scripted card for %s", player.ID)
		}
		next := svc.PlayCard(state, player.ID, card)
		if next == state {
			t.Fatalf("play %s by %s rejected", card.ID, player.ID)
		}
		state = next
	}
	return state
}

func TestCreateInitialGameState(t *testing.T) {
	svc := testService()
	state := svc.CreateInitialGameState(testSeats())

	if state.Phase != domain.PhaseWaiting {
		t.Errorf("expected waiting phase, got %s", state.Phase)
	}
	if len(state.Players) != 4 {
		t.Fatalf("expected 4 players, got %d", len(state.Players))
	}
	if state.RoundNumber != 1 {
		t.Errorf("expected round 1, got %d", state.RoundNumber)
	}
	if state.DealerIndex < 0 || state.DealerIndex > 3 {
		t.Errorf("dealer index out of range: %d", state.DealerIndex)
	}
	for i, p := range state.Players {
		if p.Position != i {
			t.Errorf("player %d: expected position %d, got %d", i, i, p.Position)
		}
	}
}

func TestStartNewRound(t *testing.T) {
	svc := testService()
	state := svc.StartNewRound(svc.CreateInitialGameState(testSeats()))

	if state.Phase != domain.PhaseTrumpSelection {
		t.Fatalf("expected trump selection, got %s", state.Phase)
	}
	for i, p := range state.Players {
		if len(p.Hand) != 13 {
			t.Errorf("player %d: expected 13 cards, got %d", i, len(p.Hand))
		}
	}
	caller := (state.DealerIndex - 1 + 4) % 4
	if state.TrumpCallerID != state.Players[caller].ID {
		t.Errorf("expected trump caller %s, got %s", state.Players[caller].ID, state.TrumpCallerID)
	}
	if state.CurrentPlayerIndex != caller {
		t.Errorf("expected trump caller to lead, got seat %d", state.CurrentPlayerIndex)
	}
	if len(state.Pile) != 1 || len(state.Pile[0].Cards) != 0 {
		t.Errorf("expected a single empty pending trick in the pile")
	}
}

func TestStartNewRoundNoOpOutsideWaiting(t *testing.T) {
	svc := testService()
	state := playingState([4][]domain.Card{}, domain.Spades)
	if next := svc.StartNewRound(state); next != state {
		t.Error("expected no-op during play")
	}
}

func TestSelectTrump(t *testing.T) {
	svc := testService()
	state := svc.StartNewRound(svc.CreateInitialGameState(testSeats()))

	next := svc.SelectTrump(state, domain.Spades)
	if next == state {
		t.Fatal("expected trump selection to apply")
	}
	if next.Phase != domain.PhasePlaying || next.TrumpSuit != domain.Spades {
		t.Errorf("expected playing with spades trump, got %s / %s", next.Phase, next.TrumpSuit)
	}

	if again := svc.SelectTrump(next, domain.Hearts); again != next {
		t.Error("expected no-op outside trump selection")
	}
}

func TestPlayCardRejections(t *testing.T) {
	svc := testService()
	hands := [4][]domain.Card{
		append(hearts(domain.Ace), domain.NewCard(domain.Clubs, domain.Two)),
		hearts(domain.King),
		hearts(domain.Queen),
		hearts(domain.Jack),
	}
	state := playingState(hands, domain.Spades)

	tests := []struct {
		name     string
		playerID string
		card     domain.Card
	}{
		{"out of turn", "p1", domain.NewCard(domain.Hearts, domain.King)},
		{"card not held", "p0", domain.NewCard(domain.Diamonds, domain.Two)},
		{"unknown player", "nobody", domain.NewCard(domain.Hearts, domain.Ace)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if next := svc.PlayCard(state, tt.playerID, tt.card); next != state {
				t.Error("expected rejected play to return the same state")
			}
		})
	}

	t.Run("must follow suit", func(t *testing.T) {
		// Seat 0 leads a heart; seat 3 holds a heart and tries a club.
		mid := svc.PlayCard(state, "p0", domain.NewCard(domain.Hearts, domain.Ace))
		if mid == state {
			t.Fatal("lead play rejected")
		}
		mid.Players[3].Hand = append(mid.Players[3].Hand, domain.NewCard(domain.Clubs, domain.Three))
		if next := svc.PlayCard(mid, "p3", domain.NewCard(domain.Clubs, domain.Three)); next != mid {
			t.Error("expected revoke to be rejected")
		}
	})
}

func TestPileAwardedToRepeatWinner(t *testing.T) {
	svc := testService()
	hands := [4][]domain.Card{
		hearts(domain.Ace, domain.King, domain.Queen),
		hearts(domain.Jack, domain.Ten, domain.Nine),
		hearts(domain.Eight, domain.Seven, domain.Six),
		hearts(domain.Five, domain.Four, domain.Three),
	}
	state := playingState(hands, domain.Spades)

	// Trick 1: seat 0 wins. Too early for an award.
	state = playTrick(t, svc, state, map[string]domain.Card{
		"p0": domain.NewCard(domain.Hearts, domain.Queen),
		"p3": domain.NewCard(domain.Hearts, domain.Three),
		"p2": domain.NewCard(domain.Hearts, domain.Six),
		"p1": domain.NewCard(domain.Hearts, domain.Nine),
	})
	if state.Phase != domain.PhaseTrickNoAward {
		t.Fatalf("trick 1: expected no award, got %s", state.Phase)
	}
	if state.PrevTrickWinnerID != "p0" {
		t.Fatalf("trick 1: expected p0 to win, got %s", state.PrevTrickWinnerID)
	}
	state = svc.ContinueAfterTrick(state)
	if len(state.Pile) != 2 {
		t.Fatalf("expected pile of 2 after continue, got %d", len(state.Pile))
	}

	// Trick 2: seat 0 wins again, but only two tricks are done.
	state = playTrick(t, svc, state, map[string]domain.Card{
		"p0": domain.NewCard(domain.Hearts, domain.King),
		"p3": domain.NewCard(domain.Hearts, domain.Four),
		"p2": domain.NewCard(domain.Hearts, domain.Seven),
		"p1": domain.NewCard(domain.Hearts, domain.Ten),
	})
	if state.Phase != domain.PhaseTrickNoAward {
		t.Fatalf("trick 2: expected no award, got %s", state.Phase)
	}
	state = svc.ContinueAfterTrick(state)

	// Trick 3: seat 0 takes its second consecutive trick past the gate and
	// collects the whole pile.
	state = playTrick(t, svc, state, map[string]domain.Card{
		"p0": domain.NewCard(domain.Hearts, domain.Ace),
		"p3": domain.NewCard(domain.Hearts, domain.Five),
		"p2": domain.NewCard(domain.Hearts, domain.Eight),
		"p1": domain.NewCard(domain.Hearts, domain.Jack),
	})
	if state.Phase != domain.PhaseTrickAward {
		t.Fatalf("trick 3: expected award, got %s", state.Phase)
	}
	winner := state.Players[0]
	if winner.TricksWon != 3 {
		t.Errorf("expected 3 tricks credited, got %d", winner.TricksWon)
	}
	if len(winner.WonCards) != 12 {
		t.Errorf("expected 12 cards collected, got %d", len(winner.WonCards))
	}

	state = svc.ContinueAfterTrick(state)
	if state.Phase != domain.PhasePlaying {
		t.Fatalf("expected play to resume, got %s", state.Phase)
	}
	if len(state.Pile) != 1 || len(state.Pile[0].Cards) != 0 {
		t.Error("expected the pile to reset after an award")
	}
}

func TestNoAwardWhenWinnerChanges(t *testing.T) {
	svc := testService()
	hands := [4][]domain.Card{
		hearts(domain.Queen, domain.King, domain.Two),
		hearts(domain.Jack, domain.Ten, domain.Nine),
		hearts(domain.Eight, domain.Seven, domain.Six),
		hearts(domain.Five, domain.Four, domain.Three),
	}
	state := playingState(hands, domain.Spades)

	state = playTrick(t, svc, state, map[string]domain.Card{
		"p0": domain.NewCard(domain.Hearts, domain.Queen),
		"p3": domain.NewCard(domain.Hearts, domain.Three),
		"p2": domain.NewCard(domain.Hearts, domain.Six),
		"p1": domain.NewCard(domain.Hearts, domain.Nine),
	})
	state = svc.ContinueAfterTrick(state)
	state = playTrick(t, svc, state, map[string]domain.Card{
		"p0": domain.NewCard(domain.Hearts, domain.King),
		"p3": domain.NewCard(domain.Hearts, domain.Four),
		"p2": domain.NewCard(domain.Hearts, domain.Seven),
		"p1": domain.NewCard(domain.Hearts, domain.Ten),
	})
	state = svc.ContinueAfterTrick(state)

	// Trick 3 falls to a different seat, so the pile keeps growing.
	state = playTrick(t, svc, state, map[string]domain.Card{
		"p0": domain.NewCard(domain.Hearts, domain.Two),
		"p3": domain.NewCard(domain.Hearts, domain.Five),
		"p2": domain.NewCard(domain.Hearts, domain.Eight),
		"p1": domain.NewCard(domain.Hearts, domain.Jack),
	})
	if state.Phase != domain.PhaseTrickNoAward {
		t.Fatalf("expected no award on a new winner, got %s", state.Phase)
	}
	if state.PrevTrickWinnerID != "p1" {
		t.Errorf("expected p1 to win trick 3, got %s", state.PrevTrickWinnerID)
	}
	if state.Players[0].TricksWon != 0 || state.Players[1].TricksWon != 0 {
		t.Error("expected no tricks credited yet")
	}
	state = svc.ContinueAfterTrick(state)
	if len(state.Pile) != 4 {
		t.Errorf("expected the pile to grow to 4, got %d", len(state.Pile))
	}
}

func TestThirteenthTrickAlwaysAwarded(t *testing.T) {
	svc := testService()
	hands := [4][]domain.Card{
		hearts(domain.Ace),
		hearts(domain.King),
		hearts(domain.Queen),
		hearts(domain.Jack),
	}
	state := playingState(hands, domain.Spades)
	state.CompletedTricks = 12
	state.PrevTrickWinnerID = "p2"

	state = playTrick(t, svc, state, map[string]domain.Card{
		"p0": domain.NewCard(domain.Hearts, domain.Ace),
		"p3": domain.NewCard(domain.Hearts, domain.Jack),
		"p2": domain.NewCard(domain.Hearts, domain.Queen),
		"p1": domain.NewCard(domain.Hearts, domain.King),
	})
	if state.Phase != domain.PhaseTrickAward {
		t.Fatalf("expected the final trick to always award, got %s", state.Phase)
	}
	if state.Players[0].TricksWon != 1 {
		t.Errorf("expected 1 trick credited, got %d", state.Players[0].TricksWon)
	}
}

func TestContinueCompletesRoundAtSevenTricks(t *testing.T) {
	svc := testService()
	state := playingState([4][]domain.Card{}, domain.Spades)
	state.Phase = domain.PhaseTrickAward
	state.Players[0].TricksWon = 4
	state.Players[2].TricksWon = 3

	next := svc.ContinueAfterTrick(state)
	if next.Phase != domain.PhaseRoundComplete {
		t.Fatalf("expected round complete, got %s", next.Phase)
	}
	if next.Team1DealsWon != 1 || next.Team2DealsWon != 0 {
		t.Errorf("expected team 1 to take the deal, got %d-%d", next.Team1DealsWon, next.Team2DealsWon)
	}
	if next.DealerIndex != 0 && next.DealerIndex != 2 {
		t.Errorf("expected the next dealer on the winning team, got seat %d", next.DealerIndex)
	}
	if next.RoundNumber != 2 {
		t.Errorf("expected round 2, got %d", next.RoundNumber)
	}

	// A fresh round resets the per-deal player state.
	round2 := svc.StartNewRound(next)
	for i, p := range round2.Players {
		if len(p.Hand) != 13 || p.TricksWon != 0 || len(p.WonCards) != 0 {
			t.Errorf("player %d not reset for the new round", i)
		}
	}
}

func TestContinueNoOpOutsideTrickComplete(t *testing.T) {
	svc := testService()
	state := playingState([4][]domain.Card{}, domain.Spades)
	if next := svc.ContinueAfterTrick(state); next != state {
		t.Error("expected no-op during play")
	}
}

func TestAddChatMessage(t *testing.T) {
	svc := testService()
	state := svc.CreateInitialGameState(testSeats())

	msg := NewChatMessage("p1", "East", "hello")
	next := svc.AddChatMessage(state, msg)
	if next == state {
		t.Fatal("expected chat to apply")
	}
	if len(next.ChatMessages) != 1 || next.ChatMessages[0].Message != "hello" {
		t.Errorf("unexpected chat log: %+v", next.ChatMessages)
	}
	if len(state.ChatMessages) != 0 {
		t.Error("chat mutated the input state")
	}
	if msg.ID == "" || msg.Timestamp == 0 {
		t.Error("expected a generated id and timestamp")
	}
}

// A seeded full round: every card ends up in a hand, the pile or a won
// stack, and the round terminates with one team at 7+ tricks.
func TestFullRoundConservation(t *testing.T) {
	svc := NewService(rand.New(rand.NewSource(42)))
	state := svc.StartNewRound(svc.CreateInitialGameState(testSeats()))
	state = svc.SelectTrump(state, domain.Spades)

	for i := 0; i < 200 && state.Phase != domain.PhaseRoundComplete; i++ {
		switch state.Phase {
		case domain.PhasePlaying:
			if n := countCards(state); n != 52 {
				t.Fatalf("card conservation broken: %d cards visible", n)
			}
			cur := state.Players[state.CurrentPlayerIndex]
			played := false
			for _, c := range cur.Hand {
				if next := svc.PlayCard(state, cur.ID, c); next != state {
					state = next
					played = true
					break
				}
			}
			if !played {
				t.Fatalf("seat %d has no legal card", state.CurrentPlayerIndex)
			}
		case domain.PhaseTrickAward, domain.PhaseTrickNoAward:
			state = svc.ContinueAfterTrick(state)
		default:
			t.Fatalf("unexpected phase %s", state.Phase)
		}
	}

	if state.Phase != domain.PhaseRoundComplete {
		t.Fatalf("round never completed, stuck in %s", state.Phase)
	}
	if state.TeamTricks(1) < 7 && state.TeamTricks(2) < 7 {
		t.Errorf("round completed without a 7-trick team: %d-%d",
			state.TeamTricks(1), state.TeamTricks(2))
	}
}

// countCards sums hands, won stacks and unawarded pile tricks.
func countCards(state *domain.GameState) int {
	n := 0
	for _, p := range state.Players {
		n += len(p.Hand) + len(p.WonCards)
	}
	for _, trick := range state.Pile {
		n += len(trick.Cards)
	}
	return n
}
