package engine

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// helper: a playing session with the given humans, positions preset.
func newPlayingSession(t *testing.T, board Board, positions ...int) *Session {
	t.Helper()
	s := NewSession(board, DefaultRules())
	for i := range positions {
		_, err := s.Join(Player{ID: string(rune('a' + i)), Name: string(rune('A' + i))})
		require.NoError(t, err)
	}
	require.NoError(t, s.Start())
	for i, pos := range positions {
		s.players[i].Position = pos
	}
	return s
}

func TestStart_RequiresTwoPlayers(t *testing.T) {
	s := NewSession(DefaultBoard(), DefaultRules())
	_, err := s.Join(Player{ID: "a", Name: "A"})
	require.NoError(t, err)

	if err := s.Start(); !errors.Is(err, ErrNotEnoughPlayers) {
		t.Fatalf("want ErrNotEnoughPlayers, got %v", err)
	}

	_, err = s.AddBot()
	require.NoError(t, err)
	require.NoError(t, s.Start())
	assert.Equal(t, StatusPlaying, s.Status())

	_, err = s.Join(Player{ID: "late"})
	assert.ErrorIs(t, err, ErrGameInProgress)
}

func TestJoin_Limits(t *testing.T) {
	s := NewSession(DefaultBoard(), DefaultRules())
	for i := 0; i < MaxPlayers; i++ {
		p, err := s.Join(Player{Name: "p"})
		require.NoError(t, err)
		assert.Equal(t, StartSquare, p.Position)
		assert.NotEmpty(t, p.ID)
		assert.Equal(t, PlayerColors[i], p.Color)
	}
	_, err := s.Join(Player{Name: "extra"})
	assert.ErrorIs(t, err, ErrLobbyFull)
}

func TestJoin_DuplicateID(t *testing.T) {
	s := NewSession(DefaultBoard(), DefaultRules())
	_, err := s.Join(Player{ID: "a"})
	require.NoError(t, err)
	_, err = s.Join(Player{ID: "a"})
	assert.ErrorIs(t, err, ErrDuplicatePlayer)
}

func TestStart_HumanGoesFirst(t *testing.T) {
	s := NewSession(DefaultBoard(), DefaultRules())
	_, err := s.AddBot()
	require.NoError(t, err)
	_, err = s.Join(Player{ID: "human"})
	require.NoError(t, err)
	require.NoError(t, s.Start())

	p, ok := s.CurrentPlayer()
	require.True(t, ok)
	assert.Equal(t, "human", p.ID)
}

func TestWinningRollFinishesGame(t *testing.T) {
	s := newPlayingSession(t, DefaultBoard(), 95, 1)

	res, err := s.RollForCurrentPlayer(5, Overrides{})
	require.NoError(t, err)
	assert.Equal(t, 100, res.To)
	assert.Equal(t, KindNormal, res.Kind)

	assert.Equal(t, StatusFinished, s.Status())
	w, ok := s.Winner()
	require.True(t, ok)
	assert.Equal(t, "a", w.ID)
	assert.Len(t, s.History(), 1)
	assert.False(t, s.HasBonusRoll())

	_, err = s.EndTurn()
	assert.ErrorIs(t, err, ErrGameFinished)
	_, err = s.RollForCurrentPlayer(1, Overrides{})
	assert.ErrorIs(t, err, ErrGameFinished)
}

func TestWinningSixGrantsNoBonus(t *testing.T) {
	s := newPlayingSession(t, DefaultBoard(), 94, 1)

	_, err := s.RollForCurrentPlayer(6, Overrides{})
	require.NoError(t, err)
	assert.Equal(t, StatusFinished, s.Status())
	assert.False(t, s.HasBonusRoll())
}

func TestLadderOnSixKeepsTurn(t *testing.T) {
	board := Board{Ladders: map[int]int{7: 22}}
	s := newPlayingSession(t, board, 1, 1)

	res, err := s.RollForCurrentPlayer(6, Overrides{})
	require.NoError(t, err)
	assert.Equal(t, 22, res.To)
	assert.Equal(t, KindLadder, res.Kind)
	assert.True(t, s.HasBonusRoll())

	advanced, err := s.EndTurn()
	require.NoError(t, err)
	assert.False(t, advanced)
	assert.Equal(t, 0, s.CurrentPlayerIndex())
	assert.False(t, s.HasBonusRoll())
}

func TestLadderOnDefaultBoard(t *testing.T) {
	s := newPlayingSession(t, DefaultBoard(), 14, 1)

	res, err := s.RollForCurrentPlayer(6, Overrides{})
	require.NoError(t, err)
	assert.Equal(t, 39, res.To)
	assert.Equal(t, KindLadder, res.Kind)
	assert.True(t, s.HasBonusRoll())
}

func TestEndTurn_AdvancesOnceAndGuardsDoubleCall(t *testing.T) {
	s := newPlayingSession(t, DefaultBoard(), 1, 1, 1)

	_, err := s.RollForCurrentPlayer(3, Overrides{})
	require.NoError(t, err)

	advanced, err := s.EndTurn()
	require.NoError(t, err)
	assert.True(t, advanced)
	assert.Equal(t, 1, s.CurrentPlayerIndex())

	_, err = s.EndTurn()
	assert.ErrorIs(t, err, ErrTurnNotResolved)
	assert.Equal(t, 1, s.CurrentPlayerIndex())
}

func TestEndTurn_WrapsAround(t *testing.T) {
	s := newPlayingSession(t, DefaultBoard(), 1, 1)
	for _, want := range []int{1, 0, 1} {
		_, err := s.RollForCurrentPlayer(1, Overrides{})
		require.NoError(t, err)
		_, err = s.EndTurn()
		require.NoError(t, err)
		assert.Equal(t, want, s.CurrentPlayerIndex())
	}
}

func TestRoll_RejectsSecondRollBeforeEndTurn(t *testing.T) {
	s := newPlayingSession(t, DefaultBoard(), 1, 1)

	_, err := s.RollForCurrentPlayer(2, Overrides{})
	require.NoError(t, err)
	_, err = s.RollForCurrentPlayer(2, Overrides{})
	assert.ErrorIs(t, err, ErrAwaitingEndTurn)
}

func TestRoll_BonusAllowsImmediateReroll(t *testing.T) {
	s := newPlayingSession(t, DefaultBoard(), 30, 1)

	_, err := s.RollForCurrentPlayer(6, Overrides{})
	require.NoError(t, err)
	require.True(t, s.HasBonusRoll())

	res, err := s.RollForCurrentPlayer(1, Overrides{})
	require.NoError(t, err)
	assert.Equal(t, 37, res.To)
	assert.False(t, s.HasBonusRoll())

	advanced, err := s.EndTurn()
	require.NoError(t, err)
	assert.True(t, advanced)
}

func TestRoll_Preconditions(t *testing.T) {
	cases := []struct {
		name    string
		setup   func(s *Session)
		roll    int
		wantErr error
	}{
		{name: "paused", setup: func(s *Session) { require.NoError(t, s.Pause()) }, roll: 3, wantErr: ErrPaused},
		{name: "animating", setup: func(s *Session) { s.SetAnimating(true) }, roll: 3, wantErr: ErrAnimating},
		{name: "zero", setup: func(*Session) {}, roll: 0, wantErr: ErrInvalidRoll},
		{name: "seven", setup: func(*Session) {}, roll: 7, wantErr: ErrInvalidRoll},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := newPlayingSession(t, DefaultBoard(), 1, 1)
			tc.setup(s)
			_, err := s.RollForCurrentPlayer(tc.roll, Overrides{})
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("want %v, got %v", tc.wantErr, err)
			}
			assert.Empty(t, s.History())
		})
	}
}

func TestRoll_WrongTurn(t *testing.T) {
	s := newPlayingSession(t, DefaultBoard(), 1, 1)
	_, err := s.Roll("b", 3, Overrides{})
	assert.ErrorIs(t, err, ErrWrongTurn)
	_, err = s.Roll("nobody", 3, Overrides{})
	assert.ErrorIs(t, err, ErrUnknownPlayer)
}

func TestPauseResume(t *testing.T) {
	s := newPlayingSession(t, DefaultBoard(), 1, 1)
	require.NoError(t, s.Pause())
	assert.True(t, s.Paused())
	require.NoError(t, s.Resume())

	_, err := s.RollForCurrentPlayer(3, Overrides{})
	assert.NoError(t, err)
}

func TestEndTurn_RejectedWhilePaused(t *testing.T) {
	s := newPlayingSession(t, DefaultBoard(), 1, 1)
	_, err := s.RollForCurrentPlayer(1, Overrides{})
	require.NoError(t, err)
	require.NoError(t, s.Pause())

	_, err = s.EndTurn()
	assert.ErrorIs(t, err, ErrPaused)
	assert.Equal(t, 0, s.CurrentPlayerIndex())
	assert.True(t, s.AwaitingEndTurn())

	require.NoError(t, s.Resume())
	advanced, err := s.EndTurn()
	require.NoError(t, err)
	assert.True(t, advanced)
}

func TestCollisionBumpsOccupant(t *testing.T) {
	s := newPlayingSession(t, DefaultBoard(), 37, 40)

	res, err := s.RollForCurrentPlayer(3, Overrides{})
	require.NoError(t, err)
	require.Len(t, res.Collisions, 1)
	assert.Equal(t, Collision{PlayerID: "b", From: 40, To: 35}, res.Collisions[0])

	require.NoError(t, s.ApplyCollisions(res.Collisions))
	a, _ := s.Player("a")
	b, _ := s.Player("b")
	assert.Equal(t, 40, a.Position)
	assert.Equal(t, 35, b.Position)
	assert.Equal(t, 0, s.CurrentPlayerIndex())

	err = s.ApplyCollision(res.Collisions[0])
	assert.ErrorIs(t, err, ErrStaleCollision)
}

func TestPendingCollisions(t *testing.T) {
	s := newPlayingSession(t, DefaultBoard(), 37, 40)

	res, err := s.RollForCurrentPlayer(3, Overrides{})
	require.NoError(t, err)
	assert.Equal(t, res.Collisions, s.PendingCollisions())

	events := s.CollisionEvents(res)
	require.Len(t, events, 1)
	assert.Empty(t, s.PendingCollisions())

	_, err = s.EndTurn()
	require.NoError(t, err)
	_, err = s.RollForCurrentPlayer(5, Overrides{})
	require.NoError(t, err)
	b, _ := s.Player("b")
	require.Equal(t, 40, b.Position)
	require.Len(t, s.PendingCollisions(), 1)

	// Unapplied bumps do not outlive the turn.
	require.NoError(t, s.ForceEndTurn())
	assert.Empty(t, s.PendingCollisions())
}

func TestCollisionClampsToStart(t *testing.T) {
	s := newPlayingSession(t, DefaultBoard(), 1, 4, 4)

	res, err := s.RollForCurrentPlayer(3, Overrides{})
	require.NoError(t, err)
	require.Len(t, res.Collisions, 2)
	for _, c := range res.Collisions {
		assert.Equal(t, 1, c.To)
	}
}

func TestNoCollisionOnFinish(t *testing.T) {
	s := newPlayingSession(t, DefaultBoard(), 97, 100)
	res, err := s.RollForCurrentPlayer(3, Overrides{})
	require.NoError(t, err)
	assert.Empty(t, res.Collisions)
	assert.Equal(t, StatusFinished, s.Status())
}

func TestPredictDoesNotMutate(t *testing.T) {
	s := newPlayingSession(t, DefaultBoard(), 11, 17)
	before := s.Snapshot()

	res, err := s.Predict(6)
	require.NoError(t, err)
	assert.Equal(t, KindSnake, res.Kind)
	assert.Equal(t, 6, res.To)

	assert.Equal(t, before, s.Snapshot())

	res, err = s.RollForCurrentPlayer(6, Overrides{IgnoreSnakes: true})
	require.NoError(t, err)
	assert.Equal(t, 17, res.To)
	assert.Equal(t, KindNormal, res.Kind)
	require.Len(t, res.Collisions, 1)
}

func TestReset_BumpsEpochAndClearsState(t *testing.T) {
	s := newPlayingSession(t, DefaultBoard(), 95, 1)
	_, err := s.RollForCurrentPlayer(5, Overrides{})
	require.NoError(t, err)
	require.Equal(t, StatusFinished, s.Status())
	epoch := s.Epoch()

	next := s.Reset()
	assert.Equal(t, epoch+1, next)
	assert.Equal(t, StatusPlaying, s.Status())
	assert.Empty(t, s.History())
	_, ok := s.Winner()
	assert.False(t, ok)
	for _, p := range s.Players() {
		assert.Equal(t, StartSquare, p.Position)
	}
}

func TestReset_WithoutEnoughPlayersWaits(t *testing.T) {
	s := NewSession(DefaultBoard(), DefaultRules())
	s.Reset()
	assert.Equal(t, StatusWaiting, s.Status())
	assert.Equal(t, uint64(1), s.Epoch())
}

func TestTeleport_OncePerPlayer(t *testing.T) {
	s := newPlayingSession(t, DefaultBoard(), 10, 1)

	res, err := s.Teleport("a")
	require.NoError(t, err)
	assert.Equal(t, 39, res.To)
	assert.Equal(t, KindTeleport, res.Kind)
	assert.False(t, s.HasBonusRoll())
	assert.Equal(t, KindTeleport, s.History()[0].Kind)

	_, err = s.EndTurn()
	require.NoError(t, err)
	_, err = s.RollForCurrentPlayer(1, Overrides{})
	require.NoError(t, err)
	_, err = s.EndTurn()
	require.NoError(t, err)

	_, err = s.Teleport("a")
	assert.ErrorIs(t, err, ErrTeleportUsed)
}

func TestTeleport_KeepsBonusFromSix(t *testing.T) {
	s := newPlayingSession(t, DefaultBoard(), 4, 1)

	_, err := s.RollForCurrentPlayer(6, Overrides{})
	require.NoError(t, err)
	require.True(t, s.HasBonusRoll())

	events, err := s.Apply(Command{Type: CmdTeleport, PlayerID: "a"})
	require.NoError(t, err)
	assert.Equal(t, 39, events[0].Move.To)
	assert.False(t, ContainsEvent(events, EvtBonusRollGranted))
	assert.True(t, s.HasBonusRoll())

	_, err = s.RollForCurrentPlayer(1, Overrides{})
	require.NoError(t, err)
	a, _ := s.Player("a")
	assert.Equal(t, 40, a.Position)
	assert.Equal(t, 0, s.CurrentPlayerIndex())
}

func TestTeleport_Refusals(t *testing.T) {
	cases := []struct {
		name    string
		pos     int
		wantErr error
	}{
		{name: "top in late zone", pos: 60, wantErr: ErrTeleportBlocked},
		{name: "standing in late zone", pos: 92, wantErr: ErrRestrictedZone},
		{name: "no ladder ahead", pos: 89, wantErr: ErrNoLadderAhead},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := newPlayingSession(t, DefaultBoard(), tc.pos, 1)
			_, err := s.Teleport("a")
			assert.ErrorIs(t, err, tc.wantErr)
			p, _ := s.Player("a")
			assert.False(t, p.TeleportUsed)
		})
	}
}

func TestShieldConsumesChargeOnSnake(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	s := newPlayingSession(t, DefaultBoard(), 11, 1)
	s.SetClock(func() time.Time { return now })

	require.NoError(t, s.ActivateShield("a"))
	assert.ErrorIs(t, s.ActivateShield("a"), ErrShieldActive)

	res, err := s.RollForCurrentPlayer(6, Overrides{})
	require.NoError(t, err)
	assert.True(t, res.Shielded)
	assert.Equal(t, 17, res.To)
	assert.Equal(t, KindNormal, res.Kind)

	p, _ := s.Player("a")
	assert.Equal(t, 2, p.ShieldCharges)
}

func TestShieldCooldown(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	s := newPlayingSession(t, DefaultBoard(), 11, 1)
	s.SetClock(func() time.Time { return now })
	s.players[0].ShieldReadyAt = now.Add(time.Minute)

	assert.ErrorIs(t, s.ActivateShield("a"), ErrCooldown)

	now = now.Add(2 * time.Minute)
	assert.NoError(t, s.ActivateShield("a"))
}

func TestCustomDiceCooldown(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	s := newPlayingSession(t, DefaultBoard(), 30, 1)
	s.SetClock(func() time.Time { return now })

	res, err := s.RollCustom("a", 4, Overrides{})
	require.NoError(t, err)
	assert.Equal(t, 34, res.To)
	_, err = s.EndTurn()
	require.NoError(t, err)
	_, err = s.RollForCurrentPlayer(1, Overrides{})
	require.NoError(t, err)
	_, err = s.EndTurn()
	require.NoError(t, err)

	_, err = s.RollCustom("a", 4, Overrides{})
	assert.ErrorIs(t, err, ErrCooldown)

	now = now.Add(61 * time.Second)
	_, err = s.RollCustom("a", 4, Overrides{})
	assert.NoError(t, err)
}

func TestLeave_KeepsNextPlayer(t *testing.T) {
	s := newPlayingSession(t, DefaultBoard(), 1, 1, 1)
	_, err := s.RollForCurrentPlayer(1, Overrides{})
	require.NoError(t, err)
	_, err = s.EndTurn()
	require.NoError(t, err)
	require.Equal(t, 1, s.CurrentPlayerIndex())

	require.NoError(t, s.Leave("b"))
	p, _ := s.CurrentPlayer()
	assert.Equal(t, "c", p.ID)
	assert.Equal(t, StatusPlaying, s.Status())

	epoch := s.Epoch()
	require.NoError(t, s.Leave("c"))
	assert.Equal(t, StatusWaiting, s.Status())
	assert.Equal(t, epoch+1, s.Epoch())
}

func TestResults_SkipsBots(t *testing.T) {
	s := NewSession(DefaultBoard(), DefaultRules())
	_, err := s.Join(Player{ID: "h", Name: "Human"})
	require.NoError(t, err)
	_, err = s.AddBot()
	require.NoError(t, err)
	require.NoError(t, s.Start())

	_, err = s.Results()
	assert.ErrorIs(t, err, ErrNotFinished)

	s.players[0].Position = 90
	_, err = s.RollForCurrentPlayer(4, Overrides{})
	require.NoError(t, err)
	_, err = s.EndTurn()
	require.NoError(t, err)
	_, err = s.RollForCurrentPlayer(2, Overrides{})
	require.NoError(t, err)
	_, err = s.EndTurn()
	require.NoError(t, err)
	_, err = s.RollForCurrentPlayer(6, Overrides{})
	require.NoError(t, err)

	results, err := s.Results()
	require.NoError(t, err)
	assert.Equal(t, []PlayerResult{{PlayerID: "h", Name: "Human", Won: true, Moves: 2}}, results)
}

func TestSnapshot_DerivesCurrentTurn(t *testing.T) {
	s := newPlayingSession(t, DefaultBoard(), 1, 1)
	snap := s.Snapshot()
	require.Len(t, snap.Players, 2)
	assert.True(t, snap.Players[0].IsCurrentTurn)
	assert.False(t, snap.Players[1].IsCurrentTurn)
	assert.Equal(t, "a", snap.CurrentPlayerID)
}
