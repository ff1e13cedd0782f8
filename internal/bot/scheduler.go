package bot

import (
	"time"

	"go.uber.org/zap"

	"github.com/DoyleJ11/snakes-ladders-backend/internal/engine"
)

type Stage string

const (
	StageRoll    Stage = "roll"    // draw a die value and show it
	StageReveal  Stage = "reveal"  // apply the shown value to the session
	StageAnimate Stage = "animate" // walk the token one square per step
	StageSettle  Stage = "settle"  // end the turn or go again after a six
)

// DefaultMaxRolls bounds how many times one bot may roll in a single turn.
const DefaultMaxRolls = 10

// Continuation is one deferred step of a bot turn. It carries everything it
// needs so that a stale one can be recognised without consulting the closure
// that scheduled it.
type Continuation struct {
	Epoch    uint64
	PlayerID string
	Stage    Stage
	Rolls    int // rolls made so far in this sequence
	Roll     int
	Result   engine.MoveResult
	Path     []int
	Step     int
}

type Delays struct {
	Trigger         time.Duration
	Reveal          time.Duration
	Step            time.Duration
	Settle          time.Duration
	SpecialSettle   time.Duration // snake, ladder or bounce
	CollisionSettle time.Duration
	TeleportSettle  time.Duration
	Bonus           time.Duration
}

func DefaultDelays() Delays {
	return Delays{
		Trigger:         time.Second,
		Reveal:          1500 * time.Millisecond,
		Step:            200 * time.Millisecond,
		Settle:          500 * time.Millisecond,
		SpecialSettle:   2 * time.Second,
		CollisionSettle: 2500 * time.Millisecond,
		TeleportSettle:  time.Second,
		Bonus:           time.Second,
	}
}

// SettleDelay is how long a resolved move stays on screen before the turn
// moves on.
func (d Delays) SettleDelay(res engine.MoveResult) time.Duration {
	switch {
	case len(res.Collisions) > 0:
		return d.CollisionSettle
	case res.Kind == engine.KindTeleport:
		return d.TeleportSettle
	case res.Kind != engine.KindNormal:
		return d.SpecialSettle
	default:
		return d.Settle
	}
}

// Sink receives the purely visual parts of a bot turn.
type Sink interface {
	DiceShown(playerID string, roll int)
	Step(playerID string, square int)
}

type NopSink struct{}

func (NopSink) DiceShown(string, int) {}
func (NopSink) Step(string, int)      {}

type Options struct {
	Delays   Delays
	MaxRolls int
	Dice     engine.Dice
	// After must arrange for c to come back through Handle once d has
	// elapsed, on the goroutine that owns the session.
	After  func(d time.Duration, c Continuation)
	Sink   Sink
	Logger *zap.Logger
}

// Scheduler drives bot turns for one session. Observe and Handle must be
// called from the goroutine that owns the session.
type Scheduler struct {
	token    Token
	delays   Delays
	maxRolls int
	dice     engine.Dice
	after    func(time.Duration, Continuation)
	sink     Sink
	log      *zap.Logger
}

func NewScheduler(opts Options) *Scheduler {
	s := &Scheduler{
		delays:   opts.Delays,
		maxRolls: opts.MaxRolls,
		dice:     opts.Dice,
		after:    opts.After,
		sink:     opts.Sink,
		log:      opts.Logger,
	}
	if s.maxRolls <= 0 {
		s.maxRolls = DefaultMaxRolls
	}
	if s.dice == nil {
		s.dice = engine.RandomDice{}
	}
	if s.sink == nil {
		s.sink = NopSink{}
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	return s
}

func (s *Scheduler) Token() *Token { return &s.token }

func (s *Scheduler) Delays() Delays { return s.delays }

// Observe starts a bot turn if the current player is a bot and nobody holds
// the token for this epoch. Calling it again while a sequence is in flight
// does nothing.
func (s *Scheduler) Observe(sess *engine.Session) {
	if sess.Status() != engine.StatusPlaying || sess.Paused() || sess.Animating() {
		return
	}
	p, ok := sess.CurrentPlayer()
	if !ok || !p.IsBot {
		return
	}
	epoch := sess.Epoch()
	if !s.token.Acquire(p.ID, epoch) {
		return
	}

	c := Continuation{Epoch: epoch, PlayerID: p.ID, Stage: StageRoll}
	delay := s.delays.Trigger
	// A sequence interrupted by a pause resumes where the session left off.
	switch bumps := sess.PendingCollisions(); {
	case len(bumps) > 0:
		// The walk was cut short; land it and apply the bumps it owes.
		c.Stage = StageAnimate
		c.Result = engine.MoveResult{PlayerID: p.ID, Collisions: bumps}
		delay = s.delays.Step
	case sess.AwaitingEndTurn() && !sess.HasBonusRoll():
		c.Stage = StageSettle
		delay = s.delays.Settle
	}
	s.log.Debug("bot turn started",
		zap.String("player_id", p.ID),
		zap.Uint64("epoch", epoch),
		zap.String("stage", string(c.Stage)))
	s.after(delay, c)
}

// Handle runs one step of a bot turn. It returns the events the step produced
// so the caller can broadcast them.
func (s *Scheduler) Handle(sess *engine.Session, c Continuation) []engine.Event {
	log := s.log.With(
		zap.String("player_id", c.PlayerID),
		zap.Uint64("epoch", c.Epoch),
		zap.String("stage", string(c.Stage)))

	if c.Epoch != sess.Epoch() || !s.token.Holds(c.PlayerID, c.Epoch) {
		log.Debug("dropping stale bot continuation", zap.Uint64("session_epoch", sess.Epoch()))
		s.token.Release(c.PlayerID, c.Epoch)
		return nil
	}
	if p, ok := sess.CurrentPlayer(); !ok || p.ID != c.PlayerID {
		log.Debug("bot no longer holds the turn")
		s.abort(sess, c)
		return nil
	}

	switch c.Stage {
	case StageRoll:
		return s.roll(sess, c, log)
	case StageReveal:
		return s.reveal(sess, c, log)
	case StageAnimate:
		return s.animate(sess, c)
	case StageSettle:
		return s.settle(sess, c, log)
	default:
		log.Error("unknown bot stage")
		s.abort(sess, c)
		return nil
	}
}

func (s *Scheduler) roll(sess *engine.Session, c Continuation, log *zap.Logger) []engine.Event {
	if sess.Status() != engine.StatusPlaying || sess.Paused() {
		s.abort(sess, c)
		return nil
	}
	c.Rolls++
	if c.Rolls > s.maxRolls {
		log.Warn("bot roll ceiling reached, forcing the turn over", zap.Int("rolls", c.Rolls-1))
		s.abort(sess, c)
		if err := sess.ForceEndTurn(); err != nil {
			return nil
		}
		next, _ := sess.CurrentPlayer()
		return []engine.Event{{Type: engine.EvtTurnAdvanced, PlayerID: next.ID}}
	}

	c.Roll = s.dice.Roll()
	s.sink.DiceShown(c.PlayerID, c.Roll)
	c.Stage = StageReveal
	s.after(s.delays.Reveal, c)
	return nil
}

func (s *Scheduler) reveal(sess *engine.Session, c Continuation, log *zap.Logger) []engine.Event {
	if sess.Status() != engine.StatusPlaying || sess.Paused() {
		s.abort(sess, c)
		return nil
	}
	events, err := sess.Apply(engine.Command{Type: engine.CmdRollDice, PlayerID: c.PlayerID, Value: c.Roll})
	if err != nil {
		log.Debug("bot roll rejected", zap.Int("roll", c.Roll), zap.Error(err))
		s.abort(sess, c)
		return nil
	}
	c.Result = *events[0].Move
	c.Path = engine.Path(c.Result)
	c.Step = 0
	log.Debug("bot moved",
		zap.Int("roll", c.Roll),
		zap.Int("from", c.Result.From),
		zap.Int("to", c.Result.To),
		zap.String("kind", string(c.Result.Kind)))

	sess.SetAnimating(true)
	c.Stage = StageAnimate
	s.after(s.delays.Step, c)
	return events
}

func (s *Scheduler) animate(sess *engine.Session, c Continuation) []engine.Event {
	if sess.Paused() {
		s.abort(sess, c)
		return nil
	}
	if c.Step < len(c.Path) {
		s.sink.Step(c.PlayerID, c.Path[c.Step])
		c.Step++
		s.after(s.delays.Step, c)
		return nil
	}

	sess.SetAnimating(false)
	events := sess.CollisionEvents(c.Result)
	if sess.Status() != engine.StatusPlaying {
		s.token.Release(c.PlayerID, c.Epoch)
		return events
	}
	c.Stage = StageSettle
	s.after(s.delays.SettleDelay(c.Result), c)
	return events
}

func (s *Scheduler) settle(sess *engine.Session, c Continuation, log *zap.Logger) []engine.Event {
	if sess.Status() != engine.StatusPlaying || sess.Paused() {
		s.abort(sess, c)
		return nil
	}
	if sess.HasBonusRoll() {
		c.Stage = StageRoll
		s.after(s.delays.Bonus, c)
		return nil
	}

	events, err := sess.Apply(engine.Command{Type: engine.CmdEndTurn, PlayerID: c.PlayerID})
	s.token.Release(c.PlayerID, c.Epoch)
	if err != nil {
		log.Debug("bot end turn rejected", zap.Error(err))
		return nil
	}
	return events
}

// abort gives up the sequence. A move that was mid-animation is left where the
// session put it, and its bumps stay pending for the next Observe.
func (s *Scheduler) abort(sess *engine.Session, c Continuation) {
	if c.Stage == StageAnimate {
		sess.SetAnimating(false)
	}
	s.token.Release(c.PlayerID, c.Epoch)
}
