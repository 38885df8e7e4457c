// Package protocol defines the wire envelope exchanged between peers over
// the data channels of a room's star mesh.
package protocol

import (
	"encoding/json"
	"fmt"

	"rung/internal/domain"
)

// Type identifies one arm of the message union.
type Type string

const (
	// TypeReady signals a peer finished its waiting-room setup.
	TypeReady Type = "ready"
	// TypeStartGame moves the room from the waiting room into the match.
	TypeStartGame Type = "start-game"
	// TypeTrumpSelected carries the trump caller's chosen suit.
	TypeTrumpSelected Type = "trump-selected"
	// TypeCardPlayed carries one card play.
	TypeCardPlayed Type = "card-played"
	// TypeChatMessage carries a chat entry.
	TypeChatMessage Type = "chat-message"
	// TypeGameStateSync carries a full authoritative state snapshot.
	TypeGameStateSync Type = "game-state-sync"
	// TypeRequestGameState asks the host for a snapshot.
	TypeRequestGameState Type = "request-game-state"
)

// Envelope is the serialized message. Exactly the fields of the sending
// arm are populated; everything else stays empty on the wire.
type Envelope struct {
	Type     Type                `json:"type"`
	Suit     domain.Suit         `json:"suit,omitempty"`
	Card     *domain.Card        `json:"card,omitempty"`
	PlayerID string              `json:"playerId,omitempty"`
	Message  *domain.ChatMessage `json:"message,omitempty"`
	State    *domain.GameState   `json:"state,omitempty"`
}

// Ready builds a ready message for the given peer.
func Ready(playerID string) Envelope {
	return Envelope{Type: TypeReady, PlayerID: playerID}
}

// StartGame builds the start-game message.
func StartGame() Envelope {
	return Envelope{Type: TypeStartGame}
}

// TrumpSelected builds a trump-selected message.
func TrumpSelected(suit domain.Suit) Envelope {
	return Envelope{Type: TypeTrumpSelected, Suit: suit}
}

// CardPlayed builds a card-played message.
func CardPlayed(playerID string, card domain.Card) Envelope {
	return Envelope{Type: TypeCardPlayed, PlayerID: playerID, Card: &card}
}

// Chat builds a chat-message envelope.
func Chat(msg domain.ChatMessage) Envelope {
	return Envelope{Type: TypeChatMessage, Message: &msg}
}

// GameStateSync builds a full-state snapshot message.
func GameStateSync(state *domain.GameState) Envelope {
	return Envelope{Type: TypeGameStateSync, State: state}
}

// RequestGameState builds a snapshot request.
func RequestGameState() Envelope {
	return Envelope{Type: TypeRequestGameState}
}

// Encode serializes the envelope to its wire form.
func Encode(e Envelope) ([]byte, error) {
	return json.Marshal(e)
}

// Decode parses and validates a wire message. Unknown types and envelopes
// missing their arm's required fields are errors.
func Decode(data []byte) (Envelope, error) {
	var e Envelope
	if err := json.Unmarshal(data, &e); err != nil {
		return Envelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	switch e.Type {
	case TypeStartGame, TypeRequestGameState:
		// No payload beyond the tag.
	case TypeReady:
		if e.PlayerID == "" {
			return Envelope{}, fmt.Errorf("ready message missing player")
		}
	case TypeTrumpSelected:
		if e.Suit == "" {
			return Envelope{}, fmt.Errorf("trump-selected message missing suit")
		}
	case TypeCardPlayed:
		if e.Card == nil || e.PlayerID == "" {
			return Envelope{}, fmt.Errorf("card-played message missing card or player")
		}
	case TypeChatMessage:
		if e.Message == nil {
			return Envelope{}, fmt.Errorf("chat message missing payload")
		}
	case TypeGameStateSync:
		if e.State == nil {
			return Envelope{}, fmt.Errorf("game-state-sync message missing state")
		}
	default:
		return Envelope{}, fmt.Errorf("unknown message type %q", e.Type)
	}
	return e, nil
}
