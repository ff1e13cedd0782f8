package store

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DoyleJ11/snakes-ladders-backend/internal/engine"
)

func TestMemoryStore_AggregatesByName(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.RecordResults(ctx, "AAA111", []engine.PlayerResult{
		{PlayerID: "p1", Name: "Ana", Won: true, Moves: 12},
		{PlayerID: "p2", Name: "Ben", Won: false, Moves: 11},
	}))
	require.NoError(t, s.RecordResults(ctx, "BBB222", []engine.PlayerResult{
		{PlayerID: "p3", Name: " ana ", Won: false, Moves: 9},
		{PlayerID: "p4", Name: "Ben", Won: true, Moves: 10},
	}))
	require.NoError(t, s.RecordResults(ctx, "CCC333", []engine.PlayerResult{
		{PlayerID: "p5", Name: "Cleo", Won: true, Moves: 7},
	}))

	board, err := s.Leaderboard(ctx, 0)
	require.NoError(t, err)
	require.Len(t, board, 3)

	// Cleo has one win in one game, so she outranks Ana and Ben, who tie on
	// wins and games and fall back to name order.
	assert.Equal(t, "Cleo", board[0].Name)
	assert.Equal(t, "Ben", board[1].Name)
	assert.Equal(t, "ana", board[2].Name)
	assert.Equal(t, 2, board[2].GamesPlayed)
	assert.Equal(t, 1, board[2].GamesWon)
	assert.Equal(t, 1, board[2].GamesLost)
	assert.Equal(t, 21, board[2].TotalMoves)

	games := s.Games()
	require.Len(t, games, 3)
	assert.Equal(t, "Ana", games[0].WinnerName)
	assert.Equal(t, 2, games[0].Players)
}

func TestMemoryStore_LimitAndClose(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	for _, name := range []string{"a", "b", "c"} {
		require.NoError(t, s.RecordResults(ctx, "X", []engine.PlayerResult{{Name: name, Won: true}}))
	}

	board, err := s.Leaderboard(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, board, 2)

	require.NoError(t, s.Close())
	_, err = s.Leaderboard(ctx, 2)
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, s.RecordResults(ctx, "X", nil), ErrClosed)
}

func TestGormStore_RoundTrip(t *testing.T) {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	s, err := OpenPostgres(ctx, dsn)
	require.NoError(t, err)
	defer s.Close()

	// Unique names keep reruns against the same database independent.
	winner := "w-" + uuid.NewString()[:8]
	loser := "l-" + uuid.NewString()[:8]

	for i := 0; i < 2; i++ {
		require.NoError(t, s.RecordResults(ctx, "PG0001", []engine.PlayerResult{
			{PlayerID: "a", Name: winner, Won: true, Moves: 5},
			{PlayerID: "b", Name: loser, Won: false, Moves: 4},
		}))
	}

	var got PlayerStats
	require.NoError(t, s.db.WithContext(ctx).Where("player_key = ?", winner).First(&got).Error)
	assert.Equal(t, 2, got.GamesPlayed)
	assert.Equal(t, 2, got.GamesWon)
	assert.Equal(t, 10, got.TotalMoves)

	board, err := s.Leaderboard(ctx, 1000)
	require.NoError(t, err)
	var sawLoser bool
	for _, row := range board {
		if row.Name == loser {
			sawLoser = true
			assert.Equal(t, 2, row.GamesLost)
		}
	}
	assert.True(t, sawLoser)
}
