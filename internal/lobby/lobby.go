package lobby

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/DoyleJ11/snakes-ladders-backend/internal/bot"
	"github.com/DoyleJ11/snakes-ladders-backend/internal/engine"
)

var ErrNotSeated = errors.New("join the game first")
var ErrAlreadySeated = errors.New("already seated")
var ErrServerOnly = errors.New("command is applied by the server")

// Recorder persists the outcome of a finished game.
type Recorder interface {
	RecordResults(ctx context.Context, lobbyCode string, results []engine.PlayerResult) error
}

type Msg interface{ isLobbyMsg() }

type FromClient struct {
	ClientID string
	Cmd      engine.Command
}

func (FromClient) isLobbyMsg() {}

type Join struct {
	ClientID string
	Outbox   chan Update // where this client wants to receive updates
}

func (Join) isLobbyMsg() {}

type Leave struct{ ClientID string }

func (Leave) isLobbyMsg() {}

type Shutdown struct{}

func (Shutdown) isLobbyMsg() {}

type GetState struct {
	Reply chan View
}

func (GetState) isLobbyMsg() {}

type Predict struct {
	Roll  int
	Reply chan Prediction
}

func (Predict) isLobbyMsg() {}

// botStep and endTurnTimer come back from time.AfterFunc. Both carry the
// epoch they were scheduled under and are dropped when it no longer matches.
type botStep struct{ c bot.Continuation }

func (botStep) isLobbyMsg() {}

type endTurnTimer struct {
	Epoch uint64
	Turn  uint64
	Moves int
}

func (endTurnTimer) isLobbyMsg() {}

// idleTimer fires IdleTimeout after the lobby last saw its final client go.
type idleTimer struct{ Gen int }

func (idleTimer) isLobbyMsg() {}

type FrameKind string

const (
	FrameDice FrameKind = "dice"
	FrameStep FrameKind = "step"
)

// Frame is a display-only beat of a bot turn.
type Frame struct {
	PlayerID string    `json:"player_id"`
	Kind     FrameKind `json:"kind"`
	Value    int       `json:"value"`
}

// Update is what a client receives. Exactly one of State, Frame or Err is set.
type Update struct {
	Version int
	State   *engine.Snapshot
	Events  []engine.Event
	Frame   *Frame
	Err     error
}

type View struct {
	Version    int
	NumClients int
	NumSeats   int
	State      engine.Snapshot
}

type Prediction struct {
	Result engine.MoveResult
	Err    error
}

type Config struct {
	Code        string
	Board       engine.Board
	Rules       engine.Rules
	Delays      bot.Delays
	MaxRolls    int
	Dice        engine.Dice
	AutoEndTurn bool
	Bots        int // bots seated before anyone joins
	Recorder    Recorder
	Logger      *zap.Logger

	// IdleTimeout > 0 makes the lobby call OnIdle once it has had no clients
	// for that long. The owner is expected to close it.
	IdleTimeout time.Duration
	OnIdle      func(code string)
}

type Lobby struct {
	code     string
	inbox    chan Msg
	sess     *engine.Session
	bots     *bot.Scheduler
	dice     engine.Dice
	autoEnd  bool
	delays   bot.Delays
	recorder Recorder
	log      *zap.Logger
	version  int
	clients  map[string]chan Update
	seats    map[string]string // client id -> player id
	idle     time.Duration
	onIdle   func(string)
	idleGen  int
	ctx      context.Context
	cancel   context.CancelFunc
}

func NewLobby(parent context.Context, cfg Config) *Lobby {
	ctx, cancel := context.WithCancel(parent)
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Dice == nil {
		cfg.Dice = engine.RandomDice{}
	}
	log := cfg.Logger.With(zap.String("lobby", cfg.Code))

	l := &Lobby{
		code:     cfg.Code,
		inbox:    make(chan Msg, 64), // Small buffer
		sess:     engine.NewSession(cfg.Board, cfg.Rules),
		dice:     cfg.Dice,
		autoEnd:  cfg.AutoEndTurn,
		delays:   cfg.Delays,
		recorder: cfg.Recorder,
		log:      log,
		clients:  make(map[string]chan Update),
		seats:    make(map[string]string),
		idle:     cfg.IdleTimeout,
		onIdle:   cfg.OnIdle,
		ctx:      ctx,
		cancel:   cancel,
	}
	l.bots = bot.NewScheduler(bot.Options{
		Delays:   cfg.Delays,
		MaxRolls: cfg.MaxRolls,
		Dice:     cfg.Dice,
		After: func(d time.Duration, c bot.Continuation) {
			l.after(d, botStep{c: c})
		},
		Sink:   frameSink{l: l},
		Logger: log,
	})
	for i := 0; i < cfg.Bots; i++ {
		if _, err := l.sess.AddBot(); err != nil {
			log.Warn("could not seat bot", zap.Error(err))
			break
		}
	}

	l.armIdle()
	go l.loop()
	return l
}

func (l *Lobby) Code() string { return l.code }

// Close stops the lobby goroutine and closes every client outbox.
func (l *Lobby) Close() { l.cancel() }

func (l *Lobby) loop() {
	for {
		select {
		case <-l.ctx.Done():
			l.shutdown()
			return

		case m := <-l.inbox:
			switch msg := m.(type) {
			case Join:
				// Register client + send current snapshot immediately
				l.clients[msg.ClientID] = msg.Outbox
				l.idleGen++
				snap := l.sess.Snapshot()
				msg.Outbox <- Update{Version: l.version, State: &snap}

			case Leave:
				if ch, ok := l.clients[msg.ClientID]; ok {
					close(ch) // lets the client's writer goroutine exit
					delete(l.clients, msg.ClientID)
				}
				if id, ok := l.seats[msg.ClientID]; ok {
					delete(l.seats, msg.ClientID)
					if err := l.sess.Leave(id); err == nil {
						l.publish([]engine.Event{{Type: engine.EvtPlayerLeft, PlayerID: id}})
					}
				}
				if len(l.clients) == 0 {
					l.armIdle()
				}

			case FromClient:
				l.handleCommand(msg)

			case Predict:
				res, err := l.sess.Predict(msg.Roll)
				msg.Reply <- Prediction{Result: res, Err: err}

			case botStep:
				if events := l.bots.Handle(l.sess, msg.c); len(events) > 0 {
					l.publish(events)
				}

			case endTurnTimer:
				l.autoEndTurn(msg)

			case idleTimer:
				if msg.Gen == l.idleGen && len(l.clients) == 0 && l.onIdle != nil {
					l.log.Info("lobby idle, asking to be removed", zap.Duration("idle", l.idle))
					l.onIdle(l.code)
				}

			case GetState:
				msg.Reply <- View{
					Version:    l.version,
					NumClients: len(l.clients),
					NumSeats:   len(l.seats),
					State:      l.sess.Snapshot(),
				}

			case Shutdown:
				l.shutdown()
				return
			}
			// Bots only play while someone is seated to watch.
			if len(l.seats) > 0 {
				l.bots.Observe(l.sess)
			}
		}
	}
}

func (l *Lobby) handleCommand(msg FromClient) {
	cmd := msg.Cmd
	seat, seated := l.seats[msg.ClientID]
	switch cmd.Type {
	case engine.CmdJoin:
		if seated {
			l.reject(msg.ClientID, ErrAlreadySeated)
			return
		}
		cmd.PlayerID = ""
	case engine.CmdApplyCollision:
		l.reject(msg.ClientID, ErrServerOnly)
		return
	default:
		if !seated {
			l.reject(msg.ClientID, ErrNotSeated)
			return
		}
		cmd.PlayerID = seat
	}
	if cmd.Type == engine.CmdRollDice {
		// Immunity is earned through the shield, never claimed by a client.
		cmd.Overrides = engine.Overrides{}
		if !cmd.Custom {
			cmd.Value = l.dice.Roll()
		}
	}

	events, err := l.sess.Apply(cmd)
	if err != nil {
		l.log.Debug("command rejected",
			zap.String("player_id", cmd.PlayerID),
			zap.String("command", string(cmd.Type)),
			zap.Error(err))
		l.reject(msg.ClientID, err)
		return
	}

	switch cmd.Type {
	case engine.CmdJoin:
		l.seats[msg.ClientID] = events[0].PlayerID
	case engine.CmdLeave:
		delete(l.seats, msg.ClientID)
	}
	if res, ok := movedResult(events); ok {
		// Humans have no animation gate on the server; bumps land with the move.
		events = append(events, l.sess.CollisionEvents(res)...)
		l.scheduleEndTurn(res)
	}
	if cmd.Type == engine.CmdResume {
		l.rearmEndTurn()
	}
	l.publish(events)
}

func movedResult(events []engine.Event) (engine.MoveResult, bool) {
	for _, e := range events {
		if e.Type == engine.EvtPlayerMoved && e.Move != nil {
			return *e.Move, true
		}
	}
	return engine.MoveResult{}, false
}

func (l *Lobby) scheduleEndTurn(res engine.MoveResult) {
	if !l.autoEnd || l.sess.Status() != engine.StatusPlaying || l.sess.HasBonusRoll() {
		return
	}
	l.after(l.delays.SettleDelay(res), endTurnTimer{
		Epoch: l.sess.Epoch(),
		Turn:  l.sess.Turn(),
		Moves: l.sess.MoveCount(),
	})
}

// rearmEndTurn restarts the end-turn timer a pause swallowed. Bot turns are
// picked back up by Observe instead.
func (l *Lobby) rearmEndTurn() {
	p, ok := l.sess.CurrentPlayer()
	if !ok || p.IsBot || !l.sess.AwaitingEndTurn() {
		return
	}
	l.scheduleEndTurn(engine.MoveResult{})
}

func (l *Lobby) autoEndTurn(t endTurnTimer) {
	if t.Epoch != l.sess.Epoch() || t.Turn != l.sess.Turn() || t.Moves != l.sess.MoveCount() {
		l.log.Debug("dropping stale end-turn timer", zap.Uint64("epoch", t.Epoch))
		return
	}
	if l.sess.Paused() {
		l.log.Debug("end-turn timer fired while paused, waiting for resume")
		return
	}
	if !l.sess.AwaitingEndTurn() {
		return
	}
	p, _ := l.sess.CurrentPlayer()
	events, err := l.sess.Apply(engine.Command{Type: engine.CmdEndTurn, PlayerID: p.ID})
	if err != nil || len(events) == 0 {
		return
	}
	l.publish(events)
}

func (l *Lobby) armIdle() {
	if l.idle <= 0 || l.onIdle == nil {
		return
	}
	l.idleGen++
	l.after(l.idle, idleTimer{Gen: l.idleGen})
}

// after delivers m back into the inbox once d has elapsed, unless the lobby
// has shut down by then.
func (l *Lobby) after(d time.Duration, m Msg) {
	time.AfterFunc(d, func() {
		select {
		case l.inbox <- m:
		case <-l.ctx.Done():
		}
	})
}

func (l *Lobby) publish(events []engine.Event) {
	l.version++
	snap := l.sess.Snapshot()
	l.broadcast(Update{Version: l.version, State: &snap, Events: events})
	if engine.ContainsEvent(events, engine.EvtGameCompleted) {
		l.recordResults()
	}
}

func (l *Lobby) recordResults() {
	if l.recorder == nil {
		return
	}
	results, err := l.sess.Results()
	if err != nil || len(results) == 0 {
		return
	}
	rec, code, log := l.recorder, l.code, l.log
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := rec.RecordResults(ctx, code, results); err != nil {
			log.Error("recording game results failed", zap.Error(err))
		}
	}()
}

func (l *Lobby) reject(clientID string, err error) {
	ch, ok := l.clients[clientID]
	if !ok {
		return
	}
	select {
	case ch <- Update{Version: l.version, Err: err}:
	default:
	}
}

func (l *Lobby) shutdown() {
	for id, ch := range l.clients {
		close(ch) // Tell client no more updates
		delete(l.clients, id)
	}
	l.cancel()
}

func (l *Lobby) broadcast(u Update) {
	dropped := false
	for id, ch := range l.clients {
		select {
		case ch <- u:
			//ok
		default:
			// Client is slow/full - drop them.
			close(ch)
			delete(l.clients, id)
			dropped = true
		}
	}
	if dropped && len(l.clients) == 0 {
		l.armIdle()
	}
}

// Expose the inbox so tests or WS layer can send messages.
func (l *Lobby) Inbox() chan<- Msg { return l.inbox }

type frameSink struct{ l *Lobby }

func (s frameSink) DiceShown(playerID string, roll int) {
	s.l.broadcast(Update{Version: s.l.version, Frame: &Frame{PlayerID: playerID, Kind: FrameDice, Value: roll}})
}

func (s frameSink) Step(playerID string, square int) {
	s.l.broadcast(Update{Version: s.l.version, Frame: &Frame{PlayerID: playerID, Kind: FrameStep, Value: square}})
}
