package server

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"mystery-server/internal/game"
)

// Archive records finished matches in Postgres. It is write-only history:
// room state is never restored from it, so the server runs fine without a
// database configured.
type Archive struct {
	pool *pgxpool.Pool
}

const archiveSchema = `
CREATE TABLE IF NOT EXISTS match_history (
	id BIGSERIAL PRIMARY KEY,
	room_code TEXT NOT NULL,
	winner_name TEXT NOT NULL,
	solution_suspect TEXT NOT NULL,
	solution_weapon TEXT NOT NULL,
	solution_room TEXT NOT NULL,
	player_count INT NOT NULL,
	finished_at TIMESTAMPTZ NOT NULL
)`

// NewArchive connects and ensures the schema exists.
func NewArchive(ctx context.Context, databaseURL string) (*Archive, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to reach archive database: %w", err)
	}
	if _, err := pool.Exec(ctx, archiveSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ensure archive schema: %w", err)
	}
	return &Archive{pool: pool}, nil
}

// MatchRecord is one finished game.
type MatchRecord struct {
	RoomCode    string
	WinnerName  string
	Solution    game.Assumption
	PlayerCount int
	FinishedAt  time.Time
}

func (a *Archive) RecordResult(ctx context.Context, rec MatchRecord) error {
	_, err := a.pool.Exec(ctx, `
		INSERT INTO match_history
			(room_code, winner_name, solution_suspect, solution_weapon, solution_room, player_count, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		rec.RoomCode,
		rec.WinnerName,
		rec.Solution.Suspect,
		rec.Solution.Weapon,
		rec.Solution.Room,
		rec.PlayerCount,
		rec.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record match %s: %w", rec.RoomCode, err)
	}
	return nil
}

// RecentResults returns the latest finished matches, newest first.
func (a *Archive) RecentResults(ctx context.Context, limit int) ([]MatchRecord, error) {
	rows, err := a.pool.Query(ctx, `
		SELECT room_code, winner_name, solution_suspect, solution_weapon, solution_room, player_count, finished_at
		FROM match_history
		ORDER BY finished_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query match history: %w", err)
	}
	defer rows.Close()

	var records []MatchRecord
	for rows.Next() {
		var rec MatchRecord
		if err := rows.Scan(
			&rec.RoomCode,
			&rec.WinnerName,
			&rec.Solution.Suspect,
			&rec.Solution.Weapon,
			&rec.Solution.Room,
			&rec.PlayerCount,
			&rec.FinishedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan match row: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (a *Archive) Close() {
	a.pool.Close()
}
