package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/DoyleJ11/snakes-ladders-backend/internal/engine"
)

// GormStore persists stats in postgres. gorm runs on top of a pgx pool.
type GormStore struct {
	db    *gorm.DB
	sqlDB *sql.DB
	pool  *pgxpool.Pool
	now   func() time.Time
}

// OpenPostgres connects to dsn, checks the connection and migrates the
// schema.
func OpenPostgres(ctx context.Context, dsn string) (*GormStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("open pgx pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	sqlDB := stdlib.OpenDBFromPool(pool)
	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		_ = sqlDB.Close()
		pool.Close()
		return nil, fmt.Errorf("open gorm: %w", err)
	}

	s := &GormStore{db: db, sqlDB: sqlDB, pool: pool, now: time.Now}
	if err := db.WithContext(ctx).AutoMigrate(&PlayerStats{}, &GameRecord{}); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *GormStore) RecordResults(ctx context.Context, lobbyCode string, results []engine.PlayerResult) error {
	now := s.now()
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, r := range results {
			row := PlayerStats{
				PlayerKey: playerKey(r),
				Name:      displayName(r),
				CreatedAt: now,
				UpdatedAt: now,
			}
			applyResult(&row, r)

			err := tx.Clauses(clause.OnConflict{
				Columns: []clause.Column{{Name: "player_key"}},
				DoUpdates: clause.Assignments(map[string]any{
					"name":         row.Name,
					"games_played": gorm.Expr("player_stats.games_played + ?", row.GamesPlayed),
					"games_won":    gorm.Expr("player_stats.games_won + ?", row.GamesWon),
					"games_lost":   gorm.Expr("player_stats.games_lost + ?", row.GamesLost),
					"total_moves":  gorm.Expr("player_stats.total_moves + ?", row.TotalMoves),
					"updated_at":   now,
				}),
			}).Create(&row).Error
			if err != nil {
				return fmt.Errorf("upsert stats for %q: %w", row.PlayerKey, err)
			}
		}

		game := GameRecord{
			LobbyCode:  lobbyCode,
			WinnerName: winnerName(results),
			Players:    len(results),
			FinishedAt: now,
		}
		if err := tx.Create(&game).Error; err != nil {
			return fmt.Errorf("insert game record: %w", err)
		}
		return nil
	})
}

func (s *GormStore) Leaderboard(ctx context.Context, limit int) ([]PlayerStats, error) {
	if limit <= 0 {
		limit = DefaultLeaderboardSize
	}
	var out []PlayerStats
	err := s.db.WithContext(ctx).
		Order("games_won DESC").
		Order("games_played ASC").
		Order("name ASC").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("query leaderboard: %w", err)
	}
	return out, nil
}

func (s *GormStore) Close() error {
	err := s.sqlDB.Close()
	s.pool.Close()
	return err
}
