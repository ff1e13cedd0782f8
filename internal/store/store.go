package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/DoyleJ11/snakes-ladders-backend/internal/engine"
)

var ErrClosed = errors.New("store closed")

// DefaultLeaderboardSize is used when a caller asks for a non-positive limit.
const DefaultLeaderboardSize = 10

// Store keeps per-player totals across finished games.
type Store interface {
	RecordResults(ctx context.Context, lobbyCode string, results []engine.PlayerResult) error
	Leaderboard(ctx context.Context, limit int) ([]PlayerStats, error)
	Close() error
}

// PlayerStats aggregates every finished game a player name took part in.
type PlayerStats struct {
	ID          uint      `gorm:"primaryKey" json:"-"`
	PlayerKey   string    `gorm:"uniqueIndex;size:64;not null" json:"-"`
	Name        string    `gorm:"size:64;not null" json:"name"`
	GamesPlayed int       `gorm:"not null;default:0" json:"games_played"`
	GamesWon    int       `gorm:"not null;default:0" json:"games_won"`
	GamesLost   int       `gorm:"not null;default:0" json:"games_lost"`
	TotalMoves  int       `gorm:"not null;default:0" json:"total_moves"`
	CreatedAt   time.Time `json:"-"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (PlayerStats) TableName() string {
	return "player_stats"
}

// GameRecord is one finished game.
type GameRecord struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	LobbyCode  string    `gorm:"index;size:16;not null" json:"lobby_code"`
	WinnerName string    `gorm:"size:64" json:"winner_name"`
	Players    int       `gorm:"not null" json:"players"`
	FinishedAt time.Time `gorm:"not null" json:"finished_at"`
}

func (GameRecord) TableName() string {
	return "game_records"
}

// playerKey folds names so "Ana" and " ana " share one leaderboard row.
// Player ids are per game, so they cannot serve as the key.
func playerKey(r engine.PlayerResult) string {
	if k := strings.ToLower(strings.TrimSpace(r.Name)); k != "" {
		return k
	}
	return r.PlayerID
}

func displayName(r engine.PlayerResult) string {
	if n := strings.TrimSpace(r.Name); n != "" {
		return n
	}
	return r.PlayerID
}

func winnerName(results []engine.PlayerResult) string {
	for _, r := range results {
		if r.Won {
			return displayName(r)
		}
	}
	return ""
}

func applyResult(s *PlayerStats, r engine.PlayerResult) {
	s.GamesPlayed++
	if r.Won {
		s.GamesWon++
	} else {
		s.GamesLost++
	}
	s.TotalMoves += r.Moves
}
