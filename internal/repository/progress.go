package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/set-night/loyaltyledger/internal/domain"
)

func scanProgress(row pgx.Row) (domain.ChallengeProgress, error) {
	var (
		p         domain.ChallengeProgress
		completed pgtype.Timestamptz
	)
	if err := row.Scan(&p.AccountID, &p.ChallengeID, &p.Current, &p.MilestonesReached, &completed, &p.UpdatedAt); err != nil {
		return domain.ChallengeProgress{}, noRows(err)
	}
	p.CompletedAt = pgTimestamptzToTimePtr(completed)
	return p, nil
}

func (q *Queries) GetChallengeProgress(ctx context.Context, accountID, challengeID uuid.UUID) (domain.ChallengeProgress, error) {
	return scanProgress(q.db.QueryRow(ctx, `
		SELECT account_id, challenge_id, current, milestones_reached, completed_at, updated_at
		FROM challenge_progress WHERE account_id = $1 AND challenge_id = $2`, accountID, challengeID))
}

func (q *Queries) InsertChallengeProgress(ctx context.Context, p domain.ChallengeProgress) error {
	reached := p.MilestonesReached
	if reached == nil {
		reached = []int64{}
	}
	_, err := q.db.Exec(ctx, `
		INSERT INTO challenge_progress (account_id, challenge_id, current, milestones_reached, completed_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (account_id, challenge_id) DO NOTHING`,
		p.AccountID, p.ChallengeID, p.Current, reached, timePtrToPgTimestamptz(p.CompletedAt), p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert challenge progress: %w", err)
	}
	return nil
}

func (q *Queries) UpdateChallengeProgress(ctx context.Context, p domain.ChallengeProgress) error {
	reached := p.MilestonesReached
	if reached == nil {
		reached = []int64{}
	}
	tag, err := q.db.Exec(ctx, `
		UPDATE challenge_progress SET current = $3, milestones_reached = $4, completed_at = $5, updated_at = $6
		WHERE account_id = $1 AND challenge_id = $2`,
		p.AccountID, p.ChallengeID, p.Current, reached, timePtrToPgTimestamptz(p.CompletedAt), p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update challenge progress: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNoRows
	}
	return nil
}

func (q *Queries) ListChallengeProgress(ctx context.Context, accountID uuid.UUID) ([]domain.ChallengeProgress, error) {
	rows, err := q.db.Query(ctx, `
		SELECT account_id, challenge_id, current, milestones_reached, completed_at, updated_at
		FROM challenge_progress WHERE account_id = $1 ORDER BY updated_at DESC`, accountID)
	if err != nil {
		return nil, fmt.Errorf("list challenge progress: %w", err)
	}
	defer rows.Close()

	var out []domain.ChallengeProgress
	for rows.Next() {
		p, err := scanProgress(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
