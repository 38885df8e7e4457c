// Package session replicates one Rung match over a room's star mesh. The
// host's state is authoritative; guests hold replicas advanced by the same
// transitions, resynchronized wholesale whenever the host ships a
// snapshot.
package session

import (
	"errors"
	"sync"

	"go.uber.org/zap"

	"rung/internal/app"
	"rung/internal/domain"
	"rung/internal/protocol"
)

// Transport is the data-channel surface the session drives. rtc.Manager
// satisfies it; tests substitute a fake.
type Transport interface {
	SendTo(peerID string, data []byte) error
	Broadcast(data []byte, exclude ...string)
	PeerID() string
	IsHost() bool
}

// ErrRejected is returned when a local action does not apply to the
// current state.
var ErrRejected = errors.New("session: action rejected by current state")

// ErrNoState is returned when an action arrives before any state exists.
var ErrNoState = errors.New("session: no game state yet")

// Session binds the match state machine to a transport. All exported
// methods are safe for concurrent use.
type Session struct {
	svc       *app.Service
	transport Transport
	logger    *zap.Logger
	onState   func(*domain.GameState)

	mu         sync.Mutex
	state      *domain.GameState
	readyPeers map[string]bool
}

// NewSession builds a session over the given transport. onState fires
// after every accepted state change, including snapshot replacement; it
// may be nil. The logger may be nil.
func NewSession(svc *app.Service, transport Transport, onState func(*domain.GameState), logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Session{
		svc:        svc,
		transport:  transport,
		logger:     logger,
		onState:    onState,
		readyPeers: make(map[string]bool),
	}
}

// State returns the current state, nil before the match exists.
func (s *Session) State() *domain.GameState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// ReadyPeers lists the peers that have announced readiness.
func (s *Session) ReadyPeers() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.readyPeers))
	for id := range s.readyPeers {
		out = append(out, id)
	}
	return out
}

// Ready announces the local peer as ready to every connected peer.
func (s *Session) Ready() error {
	id := s.transport.PeerID()
	s.mu.Lock()
	s.readyPeers[id] = true
	s.mu.Unlock()
	return s.send(protocol.Ready(id))
}

// StartGame seats the players and deals the first round. Host only: the
// deal is random, so guests receive the resulting state as a snapshot
// rather than replaying the transition.
func (s *Session) StartGame(seats []app.Seat) error {
	if !s.transport.IsHost() {
		return errors.New("session: only the host starts the game")
	}
	if err := s.send(protocol.StartGame()); err != nil {
		return err
	}

	s.mu.Lock()
	state := s.svc.CreateInitialGameState(seats)
	state = s.svc.StartNewRound(state)
	s.state = state
	s.mu.Unlock()

	s.notify(state)
	return s.pushSnapshot("")
}

// RequestSync asks the host for the authoritative state. Guests call this
// after their data channel to the host opens.
func (s *Session) RequestSync() error {
	return s.send(protocol.RequestGameState())
}

// SelectTrump applies the local peer's trump choice and replicates it.
func (s *Session) SelectTrump(suit domain.Suit) error {
	s.mu.Lock()
	if s.state == nil {
		s.mu.Unlock()
		return ErrNoState
	}
	next := s.svc.SelectTrump(s.state, suit)
	if next == s.state {
		s.mu.Unlock()
		return ErrRejected
	}
	s.state = next
	s.mu.Unlock()

	s.notify(next)
	return s.send(protocol.TrumpSelected(suit))
}

// PlayCard applies the local peer's card play and replicates it.
func (s *Session) PlayCard(card domain.Card) error {
	playerID := s.transport.PeerID()
	s.mu.Lock()
	if s.state == nil {
		s.mu.Unlock()
		return ErrNoState
	}
	next := s.svc.PlayCard(s.state, playerID, card)
	if next == s.state {
		s.mu.Unlock()
		return ErrRejected
	}
	s.state = next
	s.mu.Unlock()

	s.notify(next)
	return s.send(protocol.CardPlayed(playerID, card))
}

// SendChat builds, applies and replicates a chat message from the local
// peer.
func (s *Session) SendChat(nickname, text string) error {
	msg := app.NewChatMessage(s.transport.PeerID(), nickname, text)
	s.mu.Lock()
	if s.state == nil {
		s.mu.Unlock()
		return ErrNoState
	}
	next := s.svc.AddChatMessage(s.state, msg)
	s.state = next
	s.mu.Unlock()

	s.notify(next)
	return s.send(protocol.Chat(msg))
}

// Continue advances past a completed trick. Host only: the transition can
// start a new round, which deals randomly, so the result always ships as
// a snapshot.
func (s *Session) Continue() error {
	if !s.transport.IsHost() {
		return errors.New("session: only the host advances past a trick")
	}
	s.mu.Lock()
	if s.state == nil {
		s.mu.Unlock()
		return ErrNoState
	}
	next := s.svc.ContinueAfterTrick(s.state)
	if next == s.state {
		s.mu.Unlock()
		return ErrRejected
	}
	if next.Phase == domain.PhaseRoundComplete {
		next = s.svc.StartNewRound(next)
	}
	s.state = next
	s.mu.Unlock()

	s.notify(next)
	return s.pushSnapshot("")
}

// HandleMessage processes one inbound data-channel payload. On the host,
// every message except a snapshot request is relayed to the rest of the
// star before being applied locally.
func (s *Session) HandleMessage(fromPeerID string, data []byte) {
	env, err := protocol.Decode(data)
	if err != nil {
		s.logger.Warn("dropping malformed peer message",
			zap.String("peer", fromPeerID), zap.Error(err))
		return
	}

	if s.transport.IsHost() && env.Type != protocol.TypeRequestGameState {
		s.relay(env, fromPeerID, data)
	}

	switch env.Type {
	case protocol.TypeReady:
		s.mu.Lock()
		s.readyPeers[env.PlayerID] = true
		s.mu.Unlock()

	case protocol.TypeStartGame:
		// State arrives with the snapshot that follows.

	case protocol.TypeTrumpSelected:
		s.apply(func(state *domain.GameState) *domain.GameState {
			return s.svc.SelectTrump(state, env.Suit)
		})

	case protocol.TypeCardPlayed:
		s.apply(func(state *domain.GameState) *domain.GameState {
			return s.svc.PlayCard(state, env.PlayerID, *env.Card)
		})

	case protocol.TypeChatMessage:
		s.apply(func(state *domain.GameState) *domain.GameState {
			return s.svc.AddChatMessage(state, *env.Message)
		})

	case protocol.TypeGameStateSync:
		if s.transport.IsHost() {
			return
		}
		s.mu.Lock()
		s.state = env.State
		s.mu.Unlock()
		s.notify(env.State)

	case protocol.TypeRequestGameState:
		if !s.transport.IsHost() {
			return
		}
		if err := s.pushSnapshot(fromPeerID); err != nil {
			s.logger.Warn("snapshot reply failed",
				zap.String("peer", fromPeerID), zap.Error(err))
		}
	}
}

// relay forwards an inbound message to every other spoke. Chat is never
// echoed back to its declared sender, who may sit behind a different link
// than the one the message arrived on.
func (s *Session) relay(env protocol.Envelope, fromPeerID string, data []byte) {
	exclude := []string{fromPeerID}
	if env.Type == protocol.TypeChatMessage && env.Message.PlayerID != fromPeerID {
		exclude = append(exclude, env.Message.PlayerID)
	}
	s.transport.Broadcast(data, exclude...)
}

// apply runs a replicated transition against the current state.
func (s *Session) apply(fn func(*domain.GameState) *domain.GameState) {
	s.mu.Lock()
	if s.state == nil {
		s.mu.Unlock()
		return
	}
	next := fn(s.state)
	if next == s.state {
		s.mu.Unlock()
		return
	}
	s.state = next
	s.mu.Unlock()
	s.notify(next)
}

// pushSnapshot ships the authoritative state, to one peer or to all.
func (s *Session) pushSnapshot(peerID string) error {
	s.mu.Lock()
	state := s.state
	s.mu.Unlock()
	if state == nil {
		return ErrNoState
	}
	data, err := protocol.Encode(protocol.GameStateSync(state))
	if err != nil {
		return err
	}
	if peerID != "" {
		return s.transport.SendTo(peerID, data)
	}
	s.transport.Broadcast(data)
	return nil
}

func (s *Session) send(env protocol.Envelope) error {
	data, err := protocol.Encode(env)
	if err != nil {
		return err
	}
	s.transport.Broadcast(data)
	return nil
}

func (s *Session) notify(state *domain.GameState) {
	if s.onState != nil {
		s.onState(state)
	}
}
