// Package signaling implements room presence, host election and
// offer/answer exchange over a websocket broadcast channel. The channel is
// ephemeral pub/sub: the relay keeps no state beyond who is currently
// present on each channel.
package signaling

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Peer is one participant as advertised on the presence channel. JoinedAt
// is the peer's logical join time and drives host election.
type Peer struct {
	ID       string `json:"id"`
	Nickname string `json:"nickname"`
	IsHost   bool   `json:"isHost"`
	IsReady  bool   `json:"isReady"`
	JoinedAt int64  `json:"joinedAt"`
}

// SignalPayload is a unicast frame routed through the broadcast channel
// and filtered client-side by target peer id.
type SignalPayload struct {
	TargetPeerID string          `json:"targetPeerId"`
	FromPeerID   string          `json:"fromPeerId"`
	FromNickname string          `json:"fromNickname"`
	Data         json.RawMessage `json:"data"`
}

// frame is the wire format spoken with the relay.
type frame struct {
	Event    string         `json:"event"`
	Channel  string         `json:"channel,omitempty"`
	Presence *Peer          `json:"presence,omitempty"`
	Peers    []Peer         `json:"peers,omitempty"`
	Payload  *SignalPayload `json:"payload,omitempty"`
}

const (
	eventTrack    = "track"
	eventPresence = "presence"
	eventSignal   = "signal"
)

// Callbacks is the handler set a client owner supplies at construction.
// Handlers run on the client's read loop; nil handlers are skipped.
type Callbacks struct {
	// OnRoomCreated fires when the local peer establishes the room as host.
	OnRoomCreated func(roomCode string)
	// OnRoomJoined fires when the local peer joins an existing host's room.
	OnRoomJoined func(roomCode, hostID string)
	// OnRoomState fires on every presence change once a host is known.
	OnRoomState func(peers []Peer, hostID string)
	// OnRoomClosed fires when the room is torn down; terminal.
	OnRoomClosed func(reason string)
	// OnOffer delivers a session offer addressed to the local peer.
	OnOffer func(fromPeerID, fromNickname string, sdp json.RawMessage)
	// OnAnswer delivers a session answer addressed to the local peer.
	OnAnswer func(fromPeerID, fromNickname string, sdp json.RawMessage)
	// OnError reports non-fatal signaling failures.
	OnError func(err error)
}

// ErrNotConnected is returned when sending before Connect succeeds.
var ErrNotConnected = errors.New("signaling: not connected")

// Client maintains one peer's presence on a room channel and routes
// offer/answer signals. One Client per process; the peer id is generated
// once and not reused across reconnects.
type Client struct {
	url      string
	cb       Callbacks
	logger   *zap.Logger
	peerID   string
	joinedAt int64

	mu            sync.Mutex
	conn          *websocket.Conn
	roomCode      string
	nickname      string
	isHost        bool
	isReady       bool
	currentHostID string
	closed        bool
}

// NewClient builds a client for the given relay URL. The logger may be nil.
func NewClient(url string, cb Callbacks, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		url:      url,
		cb:       cb,
		logger:   logger,
		peerID:   uuid.NewString(),
		joinedAt: time.Now().UnixMilli(),
	}
}

// PeerID returns the process-stable peer identity.
func (c *Client) PeerID() string { return c.peerID }

// IsHost reports whether the local peer currently holds the host role.
func (c *Client) IsHost() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.isHost
}

// Connect joins the room channel and publishes initial presence. The peer
// always starts as a guest; the presence sync logic promotes it to host
// when it is the earliest joiner and nobody else claims the role.
func (c *Client) Connect(ctx context.Context, roomCode, nickname string) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return fmt.Errorf("signaling dial: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.roomCode = roomCode
	c.nickname = nickname
	c.closed = false
	c.mu.Unlock()

	if err := c.trackPresence(false, false); err != nil {
		_ = conn.Close()
		return err
	}

	go c.readLoop(conn)
	return nil
}

// SetReady republishes presence with the ready flag set.
func (c *Client) SetReady() error {
	c.mu.Lock()
	isHost := c.isHost
	c.isReady = true
	c.mu.Unlock()
	return c.trackPresence(isHost, true)
}

// SendSignal unicasts an offer/answer blob to the target peer through the
// broadcast channel.
func (c *Client) SendSignal(targetPeerID string, data json.RawMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return ErrNotConnected
	}
	return c.conn.WriteJSON(frame{
		Event:   eventSignal,
		Channel: c.roomCode,
		Payload: &SignalPayload{
			TargetPeerID: targetPeerID,
			FromPeerID:   c.peerID,
			FromNickname: c.nickname,
			Data:         data,
		},
	})
}

// Disconnect leaves the channel and resets the host role. The peer id is
// retained but a fresh Client should be used for a new room.
func (c *Client) Disconnect() {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.closed = true
	c.isHost = false
	c.isReady = false
	c.currentHostID = ""
	c.mu.Unlock()
	if conn != nil {
		_ = conn.Close()
	}
}

func (c *Client) trackPresence(isHost, isReady bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return ErrNotConnected
	}
	return c.conn.WriteJSON(frame{
		Event:   eventTrack,
		Channel: c.roomCode,
		Presence: &Peer{
			ID:       c.peerID,
			Nickname: c.nickname,
			IsHost:   isHost,
			IsReady:  isReady,
			JoinedAt: c.joinedAt,
		},
	})
}

func (c *Client) readLoop(conn *websocket.Conn) {
	for {
		var f frame
		if err := conn.ReadJSON(&f); err != nil {
			c.mu.Lock()
			closed := c.closed
			c.mu.Unlock()
			if !closed {
				c.logger.Warn("signaling channel dropped", zap.Error(err))
				c.Disconnect()
				if c.cb.OnRoomClosed != nil {
					c.cb.OnRoomClosed("signaling channel closed")
				}
			}
			return
		}

		switch f.Event {
		case eventPresence:
			c.handlePresence(f.Peers)
		case eventSignal:
			c.handleSignal(f.Payload)
		default:
			c.logger.Debug("ignoring unknown signaling event", zap.String("event", f.Event))
		}
	}
}

// handlePresence runs host election on each presence snapshot.
func (c *Client) handlePresence(peers []Peer) {
	c.mu.Lock()
	roomCode := c.roomCode
	prevHostID := c.currentHostID
	c.mu.Unlock()

	// A previously observed host that vanished tears the room down for
	// everyone still connected.
	if prevHostID != "" && findPeer(peers, prevHostID) == nil {
		c.Disconnect()
		if c.cb.OnRoomClosed != nil {
			c.cb.OnRoomClosed("host left the room")
		}
		return
	}

	var host *Peer
	for i := range peers {
		if peers[i].IsHost {
			host = &peers[i]
			break
		}
	}

	if host == nil {
		// Nobody claims the role yet: the earliest joiner promotes itself
		// and republishes; everyone else waits for that republish.
		first := earliestPeer(peers)
		if first == nil || first.ID != c.peerID {
			return
		}
		c.mu.Lock()
		c.isHost = true
		c.currentHostID = c.peerID
		isReady := c.isReady
		c.mu.Unlock()

		if err := c.trackPresence(true, isReady); err != nil {
			if c.cb.OnError != nil {
				c.cb.OnError(err)
			}
			return
		}
		c.logger.Info("promoted to room host", zap.String("room", roomCode))
		if c.cb.OnRoomCreated != nil {
			c.cb.OnRoomCreated(roomCode)
		}
		if c.cb.OnRoomState != nil {
			c.cb.OnRoomState(peers, c.peerID)
		}
		return
	}

	if prevHostID != host.ID {
		c.mu.Lock()
		c.currentHostID = host.ID
		c.mu.Unlock()
		if host.ID != c.peerID && c.cb.OnRoomJoined != nil {
			c.cb.OnRoomJoined(roomCode, host.ID)
		}
	}
	if c.cb.OnRoomState != nil {
		c.cb.OnRoomState(peers, host.ID)
	}
}

func (c *Client) handleSignal(p *SignalPayload) {
	if p == nil || p.TargetPeerID != c.peerID {
		return
	}
	var probe struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(p.Data, &probe); err != nil {
		if c.cb.OnError != nil {
			c.cb.OnError(fmt.Errorf("malformed signal from %s: %w", p.FromPeerID, err))
		}
		return
	}
	switch probe.Type {
	case "offer":
		if c.cb.OnOffer != nil {
			c.cb.OnOffer(p.FromPeerID, p.FromNickname, p.Data)
		}
	case "answer":
		if c.cb.OnAnswer != nil {
			c.cb.OnAnswer(p.FromPeerID, p.FromNickname, p.Data)
		}
	}
}

func findPeer(peers []Peer, id string) *Peer {
	for i := range peers {
		if peers[i].ID == id {
			return &peers[i]
		}
	}
	return nil
}

// earliestPeer picks the peer with the lowest JoinedAt, breaking ties by
// id so every replica elects the same peer.
func earliestPeer(peers []Peer) *Peer {
	var first *Peer
	for i := range peers {
		p := &peers[i]
		if first == nil || p.JoinedAt < first.JoinedAt ||
			(p.JoinedAt == first.JoinedAt && p.ID < first.ID) {
			first = p
		}
	}
	return first
}

const roomCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// NewRoomCode returns a short shareable room code.
func NewRoomCode() string {
	code := make([]byte, 6)
	for i := range code {
		code[i] = roomCodeAlphabet[rand.Intn(len(roomCodeAlphabet))]
	}
	return string(code)
}
