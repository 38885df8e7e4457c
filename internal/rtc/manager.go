// Package rtc manages the per-peer WebRTC transports of a room. The mesh
// is a star: every guest holds exactly one connection, to the host, and
// the host holds one connection per guest. All game traffic flows over a
// single ordered data channel per connection.
package rtc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/pion/webrtc/v3"
	"go.uber.org/zap"

	"rung/internal/config"
	"rung/internal/signaling"
)

const dataChannelLabel = "game"

// ErrPeerNotFound is returned by SendTo when no connected transport exists
// for the target peer.
var ErrPeerNotFound = errors.New("rtc: target peer not found")

// Callbacks is the lifecycle handler set supplied at construction.
// Handlers run on signaling or pion callback goroutines; nil handlers are
// skipped.
type Callbacks struct {
	OnRoomCreated  func(roomCode string)
	OnRoomJoined   func(roomCode string)
	OnRoomState    func(peers []signaling.Peer)
	OnRoomClosed   func(reason string)
	OnConnected    func(peerID, nickname string)
	OnDisconnected func(peerID string)
	OnError        func(err error)
}

// DataHandler receives raw data-channel payloads from a peer.
type DataHandler func(peerID string, data []byte)

type dataSub struct {
	id int
	fn DataHandler
}

type peerLink struct {
	pc        *webrtc.PeerConnection
	dc        *webrtc.DataChannel
	nickname  string
	connected bool
}

// Manager owns the signaling client and every peer transport of the local
// process.
type Manager struct {
	cfg        config.Net
	cb         Callbacks
	logger     *zap.Logger
	httpClient *http.Client
	signal     *signaling.Client

	mu         sync.Mutex
	peers      map[string]*peerLink
	iceServers []webrtc.ICEServer
	isHost     bool
	hostID     string
	nickname   string

	subMu     sync.Mutex
	dataSubs  []dataSub
	nextSubID int
}

// NewManager wires a manager to a fresh signaling client. The logger may
// be nil; the HTTP client is used only for the TURN credential fetch.
func NewManager(cfg config.Net, cb Callbacks, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Manager{
		cfg:        cfg,
		cb:         cb,
		logger:     logger,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		peers:      make(map[string]*peerLink),
		iceServers: buildICEServers(cfg.STUNServers, nil),
	}

	m.signal = signaling.NewClient(cfg.SignalingURL, signaling.Callbacks{
		OnRoomCreated: func(roomCode string) {
			m.mu.Lock()
			m.isHost = true
			m.hostID = m.signal.PeerID()
			m.mu.Unlock()
			if m.cb.OnRoomCreated != nil {
				m.cb.OnRoomCreated(roomCode)
			}
		},
		OnRoomJoined: func(roomCode, hostID string) {
			m.mu.Lock()
			m.isHost = false
			m.hostID = hostID
			m.mu.Unlock()
			if m.cb.OnRoomJoined != nil {
				m.cb.OnRoomJoined(roomCode)
			}
		},
		OnRoomState:  m.handleRoomState,
		OnRoomClosed: m.handleRoomClosed,
		OnOffer:      m.handleOffer,
		OnAnswer:     m.handleAnswer,
		OnError: func(err error) {
			if m.cb.OnError != nil {
				m.cb.OnError(err)
			}
		},
	}, logger)

	return m
}

// PeerID returns the process-stable peer identity.
func (m *Manager) PeerID() string { return m.signal.PeerID() }

// IsHost reports whether the local peer holds the host role.
func (m *Manager) IsHost() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.isHost
}

// CreateRoom connects intending to establish the room. Host status is
// still decided by presence election.
func (m *Manager) CreateRoom(ctx context.Context, roomCode, nickname string) error {
	return m.Connect(ctx, roomCode, nickname)
}

// JoinRoom connects to an existing room.
func (m *Manager) JoinRoom(ctx context.Context, roomCode, nickname string) error {
	return m.Connect(ctx, roomCode, nickname)
}

// Connect loads TURN credentials, then joins the signaling channel. TURN
// failure degrades to STUN-only.
func (m *Manager) Connect(ctx context.Context, roomCode, nickname string) error {
	m.mu.Lock()
	m.nickname = nickname
	m.mu.Unlock()

	if m.cfg.TURNCredentialURL != "" {
		turn, err := fetchTURNServers(ctx, m.httpClient, m.cfg.TURNCredentialURL, m.cfg.TURNBearerToken)
		if err != nil {
			m.logger.Warn("turn unavailable, using stun only", zap.Error(err))
		} else {
			m.mu.Lock()
			m.iceServers = buildICEServers(m.cfg.STUNServers, turn)
			m.mu.Unlock()
			m.logger.Info("turn servers loaded", zap.Int("count", len(turn)))
		}
	}

	return m.signal.Connect(ctx, roomCode, nickname)
}

// SetReady advertises the local peer as ready in the waiting room.
func (m *Manager) SetReady() error { return m.signal.SetReady() }

// SubscribeData registers a data handler. Handlers are invoked in
// registration order; the returned function unsubscribes.
func (m *Manager) SubscribeData(fn DataHandler) func() {
	m.subMu.Lock()
	defer m.subMu.Unlock()
	m.nextSubID++
	id := m.nextSubID
	m.dataSubs = append(m.dataSubs, dataSub{id: id, fn: fn})
	return func() {
		m.subMu.Lock()
		defer m.subMu.Unlock()
		for i, s := range m.dataSubs {
			if s.id == id {
				m.dataSubs = append(m.dataSubs[:i], m.dataSubs[i+1:]...)
				return
			}
		}
	}
}

// SendTo delivers data to a single connected peer.
func (m *Manager) SendTo(peerID string, data []byte) error {
	m.mu.Lock()
	link, ok := m.peers[peerID]
	var dc *webrtc.DataChannel
	if ok && link.connected {
		dc = link.dc
	}
	m.mu.Unlock()
	if dc == nil {
		return fmt.Errorf("%w: %s", ErrPeerNotFound, peerID)
	}
	return dc.Send(data)
}

// Broadcast delivers data to every connected peer except those excluded.
// Channel state is snapshotted under the lock; sends happen outside it.
func (m *Manager) Broadcast(data []byte, exclude ...string) {
	type target struct {
		id string
		dc *webrtc.DataChannel
	}
	m.mu.Lock()
	targets := make([]target, 0, len(m.peers))
	for id, link := range m.peers {
		if contains(exclude, id) || link.dc == nil || !link.connected {
			continue
		}
		targets = append(targets, target{id: id, dc: link.dc})
	}
	m.mu.Unlock()

	for _, t := range targets {
		if err := t.dc.Send(data); err != nil {
			m.logger.Warn("broadcast send failed", zap.String("peer", t.id), zap.Error(err))
		}
	}
}

// Disconnect tears down every transport and leaves the room.
func (m *Manager) Disconnect() {
	m.cleanup()
	m.signal.Disconnect()
}

func (m *Manager) handleRoomState(peers []signaling.Peer, hostID string) {
	m.mu.Lock()
	m.hostID = hostID
	isHost := m.isHost
	_, haveHostLink := m.peers[hostID]
	m.mu.Unlock()

	if m.cb.OnRoomState != nil {
		m.cb.OnRoomState(peers)
	}

	// Star topology: guests initiate the single connection to the host;
	// the host only answers.
	if !isHost && hostID != "" && !haveHostLink {
		var hostNickname string
		for _, p := range peers {
			if p.ID == hostID {
				hostNickname = p.Nickname
				break
			}
		}
		if hostNickname != "" {
			m.logger.Info("initiating connection to host", zap.String("host", hostID))
			go m.createPeerConnection(hostID, hostNickname, true)
		}
	}
}

func (m *Manager) handleRoomClosed(reason string) {
	m.cleanup()
	if m.cb.OnRoomClosed != nil {
		m.cb.OnRoomClosed(reason)
	}
}

// createPeerConnection builds the transport for one peer. The initiating
// side opens the data channel and sends a non-trickle offer once ICE
// gathering settles.
func (m *Manager) createPeerConnection(peerID, nickname string, initiator bool) {
	m.mu.Lock()
	if _, exists := m.peers[peerID]; exists {
		m.mu.Unlock()
		return
	}
	iceServers := append([]webrtc.ICEServer(nil), m.iceServers...)
	link := &peerLink{nickname: nickname}
	m.peers[peerID] = link
	m.mu.Unlock()

	pc, err := webrtc.NewPeerConnection(webrtc.Configuration{ICEServers: iceServers})
	if err != nil {
		m.removePeer(peerID)
		m.reportError(fmt.Errorf("create peer connection for %s: %w", peerID, err))
		return
	}

	m.mu.Lock()
	link.pc = pc
	m.mu.Unlock()

	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		switch state {
		case webrtc.PeerConnectionStateConnected:
			m.mu.Lock()
			link.connected = true
			m.mu.Unlock()
			m.logger.Info("peer connected", zap.String("peer", peerID), zap.String("nickname", nickname))
			if m.cb.OnConnected != nil {
				m.cb.OnConnected(peerID, nickname)
			}
		case webrtc.PeerConnectionStateFailed, webrtc.PeerConnectionStateClosed,
			webrtc.PeerConnectionStateDisconnected:
			if m.removePeer(peerID) {
				m.logger.Info("peer disconnected", zap.String("peer", peerID))
				if m.cb.OnDisconnected != nil {
					m.cb.OnDisconnected(peerID)
				}
			}
		}
	})

	if initiator {
		dc, err := pc.CreateDataChannel(dataChannelLabel, nil)
		if err != nil {
			m.removePeer(peerID)
			m.reportError(fmt.Errorf("create data channel for %s: %w", peerID, err))
			return
		}
		m.wireDataChannel(peerID, link, dc)

		offer, err := pc.CreateOffer(nil)
		if err != nil {
			m.removePeer(peerID)
			m.reportError(fmt.Errorf("create offer for %s: %w", peerID, err))
			return
		}
		if err := m.settleAndSignal(peerID, pc, offer); err != nil {
			m.removePeer(peerID)
			m.reportError(err)
		}
		return
	}

	pc.OnDataChannel(func(dc *webrtc.DataChannel) {
		if dc.Label() != dataChannelLabel {
			return
		}
		m.wireDataChannel(peerID, link, dc)
	})
}

// settleAndSignal applies the local description, waits for ICE gathering
// to complete and ships the settled description to the remote peer.
func (m *Manager) settleAndSignal(peerID string, pc *webrtc.PeerConnection, desc webrtc.SessionDescription) error {
	gathered := webrtc.GatheringCompletePromise(pc)
	if err := pc.SetLocalDescription(desc); err != nil {
		return fmt.Errorf("set local description for %s: %w", peerID, err)
	}
	<-gathered

	payload, err := json.Marshal(pc.LocalDescription())
	if err != nil {
		return fmt.Errorf("marshal description for %s: %w", peerID, err)
	}
	if err := m.signal.SendSignal(peerID, payload); err != nil {
		return fmt.Errorf("signal %s: %w", peerID, err)
	}
	return nil
}

func (m *Manager) wireDataChannel(peerID string, link *peerLink, dc *webrtc.DataChannel) {
	m.mu.Lock()
	link.dc = dc
	m.mu.Unlock()

	dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		m.subMu.Lock()
		subs := append([]dataSub(nil), m.dataSubs...)
		m.subMu.Unlock()
		for _, s := range subs {
			s.fn(peerID, msg.Data)
		}
	})
}

// handleOffer answers an inbound offer, creating the non-initiating side
// of the transport if it does not exist yet.
func (m *Manager) handleOffer(fromPeerID, fromNickname string, sdp json.RawMessage) {
	m.mu.Lock()
	_, exists := m.peers[fromPeerID]
	m.mu.Unlock()
	if !exists {
		m.createPeerConnection(fromPeerID, fromNickname, false)
	}

	m.mu.Lock()
	link, ok := m.peers[fromPeerID]
	var pc *webrtc.PeerConnection
	if ok {
		pc = link.pc
	}
	m.mu.Unlock()
	if pc == nil {
		return
	}

	var offer webrtc.SessionDescription
	if err := json.Unmarshal(sdp, &offer); err != nil {
		m.reportError(fmt.Errorf("decode offer from %s: %w", fromPeerID, err))
		return
	}

	go func() {
		if err := pc.SetRemoteDescription(offer); err != nil {
			m.reportError(fmt.Errorf("apply offer from %s: %w", fromPeerID, err))
			return
		}
		answer, err := pc.CreateAnswer(nil)
		if err != nil {
			m.reportError(fmt.Errorf("create answer for %s: %w", fromPeerID, err))
			return
		}
		if err := m.settleAndSignal(fromPeerID, pc, answer); err != nil {
			m.reportError(err)
		}
	}()
}

func (m *Manager) handleAnswer(fromPeerID, _ string, sdp json.RawMessage) {
	m.mu.Lock()
	link, ok := m.peers[fromPeerID]
	var pc *webrtc.PeerConnection
	if ok {
		pc = link.pc
	}
	m.mu.Unlock()
	if pc == nil {
		return
	}

	var answer webrtc.SessionDescription
	if err := json.Unmarshal(sdp, &answer); err != nil {
		m.reportError(fmt.Errorf("decode answer from %s: %w", fromPeerID, err))
		return
	}
	if err := pc.SetRemoteDescription(answer); err != nil {
		m.reportError(fmt.Errorf("apply answer from %s: %w", fromPeerID, err))
	}
}

// removePeer drops the link and closes its transport. Returns false when
// the peer was already gone, so disconnect events fire once.
func (m *Manager) removePeer(peerID string) bool {
	m.mu.Lock()
	link, ok := m.peers[peerID]
	delete(m.peers, peerID)
	m.mu.Unlock()
	if !ok {
		return false
	}
	if link.pc != nil {
		_ = link.pc.Close()
	}
	return true
}

func (m *Manager) cleanup() {
	m.mu.Lock()
	peers := m.peers
	m.peers = make(map[string]*peerLink)
	m.isHost = false
	m.hostID = ""
	m.mu.Unlock()
	for _, link := range peers {
		if link.pc != nil {
			_ = link.pc.Close()
		}
	}
}

func (m *Manager) reportError(err error) {
	m.logger.Warn("rtc error", zap.Error(err))
	if m.cb.OnError != nil {
		m.cb.OnError(err)
	}
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
