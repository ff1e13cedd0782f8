package engine

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var ErrNotPlaying = errors.New("game is not in progress")
var ErrGameInProgress = errors.New("game already started")
var ErrGameFinished = errors.New("game already finished")
var ErrNotFinished = errors.New("game not finished")
var ErrNotEnoughPlayers = errors.New("not enough players")
var ErrLobbyFull = errors.New("lobby is full")
var ErrDuplicatePlayer = errors.New("player already joined")
var ErrUnknownPlayer = errors.New("unknown player")
var ErrWrongTurn = errors.New("not this player's turn")
var ErrPaused = errors.New("game is paused")
var ErrAnimating = errors.New("a move is still animating")
var ErrInvalidRoll = errors.New("roll must be between 1 and 6")
var ErrAwaitingEndTurn = errors.New("move already resolved, end the turn first")
var ErrTurnNotResolved = errors.New("no resolved move to end")
var ErrStaleCollision = errors.New("collision no longer applies")
var ErrTeleportUsed = errors.New("teleport already used")
var ErrRestrictedZone = errors.New("power-ups are disabled near the finish")
var ErrShieldActive = errors.New("shield already active")
var ErrCooldown = errors.New("power-up is cooling down")

type Status string

const (
	StatusWaiting  Status = "waiting"
	StatusPlaying  Status = "playing"
	StatusFinished Status = "finished"
)

type Rules struct {
	MinPlayers         int
	MaxPlayers         int
	BumpDistance       int
	RestrictedZone     int // first square where power-ups stop working
	ShieldCharges      int
	ShieldCooldown     time.Duration
	CustomDiceCooldown time.Duration
}

func DefaultRules() Rules {
	return Rules{
		MinPlayers:         MinPlayers,
		MaxPlayers:         MaxPlayers,
		BumpDistance:       DefaultBumpDistance,
		RestrictedZone:     91,
		ShieldCharges:      3,
		ShieldCooldown:     2 * time.Minute,
		CustomDiceCooldown: time.Minute,
	}
}

type Player struct {
	ID                string    `json:"id"`
	Name              string    `json:"name"`
	Color             string    `json:"color"`
	Position          int       `json:"position"`
	IsBot             bool      `json:"is_bot"`
	LastRoll          int       `json:"last_roll,omitempty"`
	TeleportUsed      bool      `json:"teleport_used"`
	ShieldCharges     int       `json:"shield_charges"`
	ShieldReadyAt     time.Time `json:"shield_ready_at"`
	CustomDiceReadyAt time.Time `json:"custom_dice_ready_at"`
	JoinedAt          time.Time `json:"joined_at"`
}

// MoveEvent is one entry of the append-only move history.
type MoveEvent struct {
	PlayerID   string      `json:"player_id"`
	PlayerName string      `json:"player_name"`
	From       int         `json:"from"`
	To         int         `json:"to"`
	Roll       int         `json:"roll"`
	Kind       MoveKind    `json:"kind"`
	Bumps      []Collision `json:"bumps,omitempty"`
	At         time.Time   `json:"at"`
}

type PlayerResult struct {
	PlayerID string `json:"player_id"`
	Name     string `json:"name"`
	Won      bool   `json:"won"`
	Moves    int    `json:"moves"`
}

// Session is the authoritative state of one game. It is not safe for
// concurrent use; a lobby goroutine owns it.
type Session struct {
	board Board
	rules Rules
	now   func() time.Time

	players  []Player
	current  int
	status   Status
	winnerID string
	history  []MoveEvent

	bonus     bool
	rolled    bool // current player has a resolved move that EndTurn has not consumed
	paused    bool
	animating bool
	bumps     []Collision // from the latest move, not yet applied

	epoch uint64
	turn  uint64
}

func NewSession(board Board, rules Rules) *Session {
	return &Session{
		board:  board,
		rules:  rules,
		now:    time.Now,
		status: StatusWaiting,
	}
}

// SetClock replaces the time source used for cooldowns and history stamps.
func (s *Session) SetClock(now func() time.Time) { s.now = now }

func (s *Session) Board() Board            { return s.board }
func (s *Session) Rules() Rules            { return s.rules }
func (s *Session) Status() Status          { return s.status }
func (s *Session) Epoch() uint64           { return s.epoch }
func (s *Session) Turn() uint64            { return s.turn }
func (s *Session) HasBonusRoll() bool      { return s.bonus }
func (s *Session) AwaitingEndTurn() bool   { return s.rolled }
func (s *Session) Paused() bool            { return s.paused }
func (s *Session) Animating() bool         { return s.animating }
func (s *Session) SetAnimating(on bool)    { s.animating = on }
func (s *Session) CurrentPlayerIndex() int { return s.current }
func (s *Session) MoveCount() int          { return len(s.history) }

func (s *Session) Players() []Player {
	out := make([]Player, len(s.players))
	copy(out, s.players)
	return out
}

func (s *Session) History() []MoveEvent {
	out := make([]MoveEvent, len(s.history))
	copy(out, s.history)
	return out
}

func (s *Session) Player(id string) (Player, bool) {
	i := s.indexOf(id)
	if i < 0 {
		return Player{}, false
	}
	return s.players[i], true
}

func (s *Session) CurrentPlayer() (Player, bool) {
	if len(s.players) == 0 {
		return Player{}, false
	}
	return s.players[s.current], true
}

func (s *Session) Winner() (Player, bool) {
	if s.winnerID == "" {
		return Player{}, false
	}
	return s.Player(s.winnerID)
}

func (s *Session) indexOf(id string) int {
	for i := range s.players {
		if s.players[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Session) Join(p Player) (Player, error) {
	if s.status != StatusWaiting {
		return Player{}, ErrGameInProgress
	}
	if len(s.players) >= s.rules.MaxPlayers {
		return Player{}, ErrLobbyFull
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if s.indexOf(p.ID) >= 0 {
		return Player{}, ErrDuplicatePlayer
	}
	if p.Color == "" {
		p.Color = PlayerColors[len(s.players)%len(PlayerColors)]
	}
	p.Position = StartSquare
	p.LastRoll = 0
	p.JoinedAt = s.now()
	s.players = append(s.players, p)
	return p, nil
}

func (s *Session) AddBot() (Player, error) {
	bots := 0
	for _, p := range s.players {
		if p.IsBot {
			bots++
		}
	}
	return s.Join(Player{
		ID:    BotIDPrefix + uuid.NewString(),
		Name:  BotNames[bots%len(BotNames)],
		IsBot: true,
	})
}

// Leave removes a player. The turn pointer stays on whoever would have
// played next.
func (s *Session) Leave(id string) error {
	i := s.indexOf(id)
	if i < 0 {
		return ErrUnknownPlayer
	}
	wasCurrent := i == s.current
	s.players = append(s.players[:i], s.players[i+1:]...)

	if i < s.current {
		s.current--
	}
	if s.current >= len(s.players) {
		s.current = 0
	}
	if wasCurrent && s.status == StatusPlaying {
		s.bonus = false
		s.rolled = false
		s.bumps = nil
		s.turn++
	}
	if s.status == StatusPlaying && len(s.players) < s.rules.MinPlayers {
		s.status = StatusWaiting
		s.paused = false
		s.animating = false
		s.epoch++
	}
	return nil
}

func (s *Session) Start() error {
	switch s.status {
	case StatusPlaying:
		return ErrGameInProgress
	case StatusFinished:
		return ErrGameFinished
	}
	if len(s.players) < s.rules.MinPlayers {
		return ErrNotEnoughPlayers
	}
	s.status = StatusPlaying
	s.current = firstHumanIndex(s.players)
	s.bonus = false
	s.rolled = false
	s.paused = false
	s.turn++
	return nil
}

func (s *Session) canMove() error {
	switch s.status {
	case StatusWaiting:
		return ErrNotPlaying
	case StatusFinished:
		return ErrGameFinished
	}
	if s.paused {
		return ErrPaused
	}
	if s.animating {
		return ErrAnimating
	}
	if s.rolled && !s.bonus {
		return ErrAwaitingEndTurn
	}
	return nil
}

func (s *Session) checkTurn(playerID string) error {
	i := s.indexOf(playerID)
	if i < 0 {
		return ErrUnknownPlayer
	}
	if i != s.current {
		return ErrWrongTurn
	}
	return nil
}

// Predict reports what roll would do for the current player without
// touching any state.
func (s *Session) Predict(roll int) (MoveResult, error) {
	if roll < 1 || roll > DieFaces {
		return MoveResult{}, ErrInvalidRoll
	}
	p, ok := s.CurrentPlayer()
	if !ok || s.status != StatusPlaying {
		return MoveResult{}, ErrNotPlaying
	}
	res := s.board.Predict(p.Position, roll)
	res.PlayerID = p.ID
	if !res.Won() {
		res.Collisions = ResolveCollisions(res.To, p.ID, s.players, s.rules.BumpDistance)
	}
	return res, nil
}

// Roll resolves roll for playerID, who must hold the turn.
func (s *Session) Roll(playerID string, roll int, o Overrides) (MoveResult, error) {
	if err := s.checkTurn(playerID); err != nil {
		return MoveResult{}, err
	}
	return s.RollForCurrentPlayer(roll, o)
}

func (s *Session) RollForCurrentPlayer(roll int, o Overrides) (MoveResult, error) {
	if roll < 1 || roll > DieFaces {
		return MoveResult{}, ErrInvalidRoll
	}
	if err := s.canMove(); err != nil {
		return MoveResult{}, err
	}

	p := &s.players[s.current]
	res := s.board.Resolve(p.Position, roll, o)
	if res.Kind == KindSnake && p.ShieldCharges > 0 {
		p.ShieldCharges--
		if p.ShieldCharges == 0 {
			p.ShieldReadyAt = s.now().Add(s.rules.ShieldCooldown)
		}
		o.IgnoreSnakes = true
		res = s.board.Resolve(p.Position, roll, o)
		res.Shielded = true
	}
	return s.applyMove(res), nil
}

func (s *Session) applyMove(res MoveResult) MoveResult {
	p := &s.players[s.current]
	res.PlayerID = p.ID
	if !res.Won() {
		res.Collisions = ResolveCollisions(res.To, p.ID, s.players, s.rules.BumpDistance)
	}

	p.Position = res.To
	p.LastRoll = res.Roll
	s.bumps = res.Collisions
	s.history = append(s.history, MoveEvent{
		PlayerID:   p.ID,
		PlayerName: p.Name,
		From:       res.From,
		To:         res.To,
		Roll:       res.Roll,
		Kind:       res.Kind,
		Bumps:      res.Collisions,
		At:         s.now(),
	})

	// A teleport is not a roll; a bonus earned before it still stands.
	if res.Kind != KindTeleport {
		s.bonus = false
	}
	if res.Won() {
		s.status = StatusFinished
		s.winnerID = p.ID
		s.rolled = false
		return res
	}
	s.rolled = true
	if res.Roll == BonusRollValue {
		s.bonus = true
	}
	return res
}

// PendingCollisions lists the bumps of the latest move that have not been
// applied yet.
func (s *Session) PendingCollisions() []Collision {
	return append([]Collision(nil), s.bumps...)
}

// ApplyCollision moves a bumped player to the square ResolveCollisions chose.
func (s *Session) ApplyCollision(c Collision) error {
	if s.status == StatusFinished {
		return ErrGameFinished
	}
	i := s.indexOf(c.PlayerID)
	if i < 0 {
		return ErrUnknownPlayer
	}
	if s.players[i].Position != c.From {
		return fmt.Errorf("%w: %s is on %d, not %d", ErrStaleCollision, c.PlayerID, s.players[i].Position, c.From)
	}
	s.players[i].Position = c.To
	return nil
}

func (s *Session) ApplyCollisions(cs []Collision) error {
	var errs []error
	for _, c := range cs {
		if err := s.ApplyCollision(c); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// EndTurn consumes the resolved move. After a six the same player keeps the
// turn; otherwise the pointer advances. It reports whether it advanced.
func (s *Session) EndTurn() (bool, error) {
	switch s.status {
	case StatusWaiting:
		return false, ErrNotPlaying
	case StatusFinished:
		return false, ErrGameFinished
	}
	if s.paused {
		return false, ErrPaused
	}
	if !s.rolled {
		return false, ErrTurnNotResolved
	}
	s.rolled = false
	if s.bonus {
		s.bonus = false
		return false, nil
	}
	s.advance()
	return true, nil
}

// ForceEndTurn hands the turn to the next player, discarding any bonus roll.
func (s *Session) ForceEndTurn() error {
	if s.status != StatusPlaying {
		return ErrNotPlaying
	}
	s.bonus = false
	s.rolled = false
	s.advance()
	return nil
}

func (s *Session) advance() {
	s.current = nextIndex(s.current, len(s.players))
	s.bumps = nil
	s.turn++
}

func (s *Session) Teleport(playerID string) (MoveResult, error) {
	if err := s.checkTurn(playerID); err != nil {
		return MoveResult{}, err
	}
	if err := s.canMove(); err != nil {
		return MoveResult{}, err
	}
	p := &s.players[s.current]
	if p.TeleportUsed {
		return MoveResult{}, ErrTeleportUsed
	}
	if p.Position >= s.rules.RestrictedZone {
		return MoveResult{}, ErrRestrictedZone
	}
	res, err := s.board.Teleport(p.Position, s.rules.RestrictedZone)
	if err != nil {
		return MoveResult{}, err
	}
	p.TeleportUsed = true
	return s.applyMove(res), nil
}

func (s *Session) ActivateShield(playerID string) error {
	if err := s.checkTurn(playerID); err != nil {
		return err
	}
	if s.status != StatusPlaying {
		return ErrNotPlaying
	}
	p := &s.players[s.current]
	if p.ShieldCharges > 0 {
		return ErrShieldActive
	}
	if p.Position >= s.rules.RestrictedZone {
		return ErrRestrictedZone
	}
	now := s.now()
	if now.Before(p.ShieldReadyAt) {
		return ErrCooldown
	}
	p.ShieldCharges = s.rules.ShieldCharges
	p.ShieldReadyAt = now.Add(s.rules.ShieldCooldown)
	return nil
}

// RollCustom resolves a value the player picked instead of rolling.
func (s *Session) RollCustom(playerID string, roll int, o Overrides) (MoveResult, error) {
	if err := s.checkTurn(playerID); err != nil {
		return MoveResult{}, err
	}
	p := &s.players[s.current]
	if p.Position >= s.rules.RestrictedZone {
		return MoveResult{}, ErrRestrictedZone
	}
	now := s.now()
	if now.Before(p.CustomDiceReadyAt) {
		return MoveResult{}, ErrCooldown
	}
	res, err := s.RollForCurrentPlayer(roll, o)
	if err != nil {
		return MoveResult{}, err
	}
	s.players[s.indexOf(playerID)].CustomDiceReadyAt = now.Add(s.rules.CustomDiceCooldown)
	return res, nil
}

func (s *Session) Pause() error {
	if s.status != StatusPlaying {
		return ErrNotPlaying
	}
	s.paused = true
	return nil
}

func (s *Session) Resume() error {
	if s.status != StatusPlaying {
		return ErrNotPlaying
	}
	s.paused = false
	return nil
}

// Reset starts the game over with the same players and bumps the epoch so
// every continuation scheduled before the reset knows it is stale.
func (s *Session) Reset() uint64 {
	for i := range s.players {
		p := &s.players[i]
		p.Position = StartSquare
		p.LastRoll = 0
		p.TeleportUsed = false
		p.ShieldCharges = 0
		p.ShieldReadyAt = time.Time{}
		p.CustomDiceReadyAt = time.Time{}
	}
	s.history = nil
	s.winnerID = ""
	s.bonus = false
	s.rolled = false
	s.paused = false
	s.animating = false
	s.bumps = nil
	s.current = firstHumanIndex(s.players)
	if len(s.players) >= s.rules.MinPlayers {
		s.status = StatusPlaying
	} else {
		s.status = StatusWaiting
	}
	s.turn++
	s.epoch++
	return s.epoch
}

// Results lists, for every human player, whether they won and how many moves
// they made. Only available once the game is finished.
func (s *Session) Results() ([]PlayerResult, error) {
	if s.status != StatusFinished {
		return nil, ErrNotFinished
	}
	moves := map[string]int{}
	for _, m := range s.history {
		moves[m.PlayerID]++
	}
	var out []PlayerResult
	for _, p := range s.players {
		if p.IsBot {
			continue
		}
		out = append(out, PlayerResult{
			PlayerID: p.ID,
			Name:     p.Name,
			Won:      p.ID == s.winnerID,
			Moves:    moves[p.ID],
		})
	}
	return out, nil
}

type PlayerView struct {
	Player
	IsCurrentTurn bool `json:"is_current_turn"`
}

type Snapshot struct {
	Status             Status       `json:"status"`
	Players            []PlayerView `json:"players"`
	CurrentPlayerIndex int          `json:"current_player_index"`
	CurrentPlayerID    string       `json:"current_player_id,omitempty"`
	WinnerID           string       `json:"winner_id,omitempty"`
	History            []MoveEvent  `json:"history"`
	HasBonusRoll       bool         `json:"has_bonus_roll"`
	AwaitingEndTurn    bool         `json:"awaiting_end_turn"`
	Paused             bool         `json:"paused"`
	Animating          bool         `json:"animating"`
	Epoch              uint64       `json:"epoch"`
	Turn               uint64       `json:"turn"`
	Board              Board        `json:"board"`
}

func (s *Session) Snapshot() Snapshot {
	snap := Snapshot{
		Status:             s.status,
		Players:            make([]PlayerView, len(s.players)),
		CurrentPlayerIndex: s.current,
		WinnerID:           s.winnerID,
		History:            s.History(),
		HasBonusRoll:       s.bonus,
		AwaitingEndTurn:    s.rolled,
		Paused:             s.paused,
		Animating:          s.animating,
		Epoch:              s.epoch,
		Turn:               s.turn,
		Board:              s.board,
	}
	for i, p := range s.players {
		current := s.status == StatusPlaying && i == s.current
		snap.Players[i] = PlayerView{Player: p, IsCurrentTurn: current}
		if current {
			snap.CurrentPlayerID = p.ID
		}
	}
	return snap
}
