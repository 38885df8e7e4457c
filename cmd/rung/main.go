// Command rung is a headless Rung client. It joins (or establishes) a
// room over the signaling relay, meshes with the other peers via WebRTC
// data channels and drives the match from a small stdin command loop.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"rung/internal/app"
	"rung/internal/config"
	"rung/internal/domain"
	"rung/internal/rtc"
	"rung/internal/session"
	"rung/internal/signaling"
)

func main() {
	var (
		nickname   = flag.String("nick", "", "player nickname (required)")
		roomCode   = flag.String("room", "", "room code to join; empty creates a new room")
		configPath = flag.String("config", "", "path to a net config JSON file")
		debug      = flag.Bool("debug", false, "enable debug logging")
	)
	flag.Parse()

	if *nickname == "" {
		fmt.Fprintln(os.Stderr, "a nickname is required (-nick)")
		os.Exit(2)
	}

	logger, err := newLogger(*debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := config.LoadDotEnv(".env"); err != nil {
		logger.Warn("dotenv load failed", zap.Error(err))
	}
	if err := config.LoadNetConfig(*configPath); err != nil {
		logger.Fatal("net config", zap.Error(err))
	}
	cfg := config.GetNetConfig()

	code := *roomCode
	creating := code == ""
	if creating {
		code = signaling.NewRoomCode()
	}

	client := newClient(cfg, *nickname, logger)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	err = client.connect(ctx, code, creating)
	cancel()
	if err != nil {
		logger.Fatal("connect", zap.Error(err))
	}
	fmt.Printf("room %s as %q (peer %s)\n", code, *nickname, client.manager.PeerID())

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go client.commandLoop()

	select {
	case <-stop:
	case <-client.done:
	}
	client.manager.Disconnect()
	logger.Info("shutting down")
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// client glues the transport, the session and the terminal together.
type client struct {
	nickname string
	logger   *zap.Logger
	manager  *rtc.Manager
	sess     *session.Session
	done     chan struct{}

	mu       sync.Mutex
	roster   []app.Seat
	started  bool
	doneOnce sync.Once
}

func newClient(cfg config.Net, nickname string, logger *zap.Logger) *client {
	c := &client{
		nickname: nickname,
		logger:   logger,
		done:     make(chan struct{}),
	}

	c.manager = rtc.NewManager(cfg, rtc.Callbacks{
		OnRoomCreated: func(code string) {
			fmt.Printf("hosting room %s, waiting for players\n", code)
		},
		OnRoomJoined: func(code string) {
			fmt.Printf("joined room %s\n", code)
		},
		OnRoomState: func(peers []signaling.Peer) {
			fmt.Printf("%d peer(s) in room\n", len(peers))
		},
		OnRoomClosed: func(reason string) {
			fmt.Printf("room closed: %s\n", reason)
			c.doneOnce.Do(func() { close(c.done) })
		},
		OnConnected:    c.onPeerConnected,
		OnDisconnected: c.onPeerDisconnected,
		OnError: func(err error) {
			logger.Warn("transport error", zap.Error(err))
		},
	}, logger)

	c.sess = session.NewSession(app.NewService(nil), c.manager, c.onState, logger)
	c.manager.SubscribeData(c.sess.HandleMessage)
	return c
}

func (c *client) connect(ctx context.Context, code string, creating bool) error {
	c.mu.Lock()
	c.roster = []app.Seat{{ID: c.manager.PeerID(), Nickname: c.nickname}}
	c.mu.Unlock()
	if creating {
		return c.manager.CreateRoom(ctx, code, c.nickname)
	}
	return c.manager.JoinRoom(ctx, code, c.nickname)
}

func (c *client) onPeerConnected(peerID, nickname string) {
	fmt.Printf("connected: %s\n", nickname)

	if !c.manager.IsHost() {
		// Late or on time, a guest always asks the host for the current
		// state once its channel opens.
		if err := c.sess.RequestSync(); err != nil {
			c.logger.Warn("state request failed", zap.Error(err))
		}
		return
	}

	c.mu.Lock()
	c.roster = append(c.roster, app.Seat{ID: peerID, Nickname: nickname})
	full := len(c.roster) == 4
	started := c.started
	c.mu.Unlock()

	if full && !started {
		fmt.Println("table full; type 'start' to deal")
	}
}

func (c *client) onPeerDisconnected(peerID string) {
	c.mu.Lock()
	for i, seat := range c.roster {
		if seat.ID == peerID {
			c.roster = append(c.roster[:i], c.roster[i+1:]...)
			break
		}
	}
	c.mu.Unlock()
	fmt.Printf("peer left: %s\n", peerID)
}

// onState prints a terse view of each accepted state change.
func (c *client) onState(state *domain.GameState) {
	switch state.Phase {
	case domain.PhaseTrumpSelection:
		caller := state.TrumpCallerID
		if i := state.PlayerIndex(caller); i >= 0 {
			caller = state.Players[i].Nickname
		}
		fmt.Printf("round %d: %s picks trump\n", state.RoundNumber, caller)
		c.printHand(state)
	case domain.PhasePlaying:
		cur := state.Players[state.CurrentPlayerIndex]
		fmt.Printf("trump %s, trick %d, %s to play\n",
			state.TrumpSuit, state.CompletedTricks+1, cur.Nickname)
		if cur.ID == c.manager.PeerID() {
			c.printHand(state)
		}
	case domain.PhaseTrickAward, domain.PhaseTrickNoAward:
		fmt.Printf("trick to %s (pile %d, score %d-%d)\n",
			state.PrevTrickWinnerID, len(state.Pile),
			state.TeamTricks(1), state.TeamTricks(2))
	case domain.PhaseRoundComplete:
		fmt.Printf("round over, deals %d-%d\n", state.Team1DealsWon, state.Team2DealsWon)
	}
	if n := len(state.ChatMessages); n > 0 {
		last := state.ChatMessages[n-1]
		fmt.Printf("[%s] %s\n", last.Nickname, last.Message)
	}
}

func (c *client) printHand(state *domain.GameState) {
	i := state.PlayerIndex(c.manager.PeerID())
	if i < 0 {
		return
	}
	hand := append([]domain.Card(nil), state.Players[i].Hand...)
	domain.SortHand(hand)
	ids := make([]string, len(hand))
	for j, card := range hand {
		ids[j] = card.ID
	}
	fmt.Printf("hand: %s\n", strings.Join(ids, " "))
}

// commandLoop reads player commands from stdin until EOF.
func (c *client) commandLoop() {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		cmd, arg, _ := strings.Cut(line, " ")
		if err := c.runCommand(cmd, arg); err != nil {
			fmt.Printf("error: %v\n", err)
		}
	}
	c.doneOnce.Do(func() { close(c.done) })
}

func (c *client) runCommand(cmd, arg string) error {
	switch cmd {
	case "ready":
		if err := c.manager.SetReady(); err != nil {
			return err
		}
		return c.sess.Ready()
	case "start":
		c.mu.Lock()
		seats := append([]app.Seat(nil), c.roster...)
		c.started = true
		c.mu.Unlock()
		if len(seats) != 4 {
			return fmt.Errorf("need 4 players, have %d", len(seats))
		}
		return c.sess.StartGame(seats)
	case "trump":
		suit := domain.Suit(arg)
		switch suit {
		case domain.Hearts, domain.Diamonds, domain.Clubs, domain.Spades:
			return c.sess.SelectTrump(suit)
		}
		return fmt.Errorf("unknown suit %q", arg)
	case "play":
		card, err := parseCardID(arg)
		if err != nil {
			return err
		}
		return c.sess.PlayCard(card)
	case "next":
		return c.sess.Continue()
	case "say":
		return c.sess.SendChat(c.nickname, arg)
	case "quit":
		c.doneOnce.Do(func() { close(c.done) })
		return nil
	default:
		return fmt.Errorf("unknown command %q (ready, start, trump, play, next, say, quit)", cmd)
	}
}

// parseCardID turns a card id like "hearts-A" back into a card.
func parseCardID(id string) (domain.Card, error) {
	suitStr, rankStr, ok := strings.Cut(id, "-")
	if !ok {
		return domain.Card{}, fmt.Errorf("card id must look like hearts-A, got %q", id)
	}
	suit := domain.Suit(suitStr)
	rank := domain.Rank(rankStr)
	for _, s := range domain.Suits {
		if s != suit {
			continue
		}
		for _, r := range domain.Ranks {
			if r == rank {
				return domain.NewCard(suit, rank), nil
			}
		}
	}
	return domain.Card{}, fmt.Errorf("unknown card %q", id)
}
