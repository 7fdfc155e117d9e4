package repository

import (
	"context"

	"courseoj/internal/catalog/model"
	"courseoj/internal/common/db"
)

// ProgressRepository tracks each member's best outcome per problem.
type ProgressRepository interface {
	Upsert(ctx context.Context, userID, problemID int64, status model.ProgressStatus) error
	GetStatuses(ctx context.Context, userID int64, problemIDs []int64) (map[int64]model.ProgressStatus, error)
}

type MySQLProgressRepository struct {
	db db.Database
}

func NewProgressRepository(database db.Database) ProgressRepository {
	return &MySQLProgressRepository{db: database}
}

// Upsert records a judge outcome. SOLVED is sticky: a later failing
// submission never downgrades it.
func (r *MySQLProgressRepository) Upsert(ctx context.Context, userID, problemID int64, status model.ProgressStatus) error {
	query := `
		INSERT INTO problem_progress (user_id, problem_id, status)
		VALUES (?, ?, ?)
		ON DUPLICATE KEY UPDATE
			status = IF(status = 'SOLVED', status, VALUES(status))`
	_, err := r.db.Exec(ctx, query, userID, problemID, string(status))
	return err
}

func (r *MySQLProgressRepository) GetStatuses(ctx context.Context, userID int64, problemIDs []int64) (map[int64]model.ProgressStatus, error) {
	statuses := make(map[int64]model.ProgressStatus, len(problemIDs))
	if len(problemIDs) == 0 {
		return statuses, nil
	}

	placeholders := make([]byte, 0, len(problemIDs)*2-1)
	args := make([]any, 0, len(problemIDs)+1)
	args = append(args, userID)
	for i, id := range problemIDs {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
		args = append(args, id)
	}

	query := "SELECT problem_id, status FROM problem_progress WHERE user_id = ? AND problem_id IN (" + string(placeholders) + ")"
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			problemID int64
			status    string
		)
		if err := rows.Scan(&problemID, &status); err != nil {
			return nil, err
		}
		statuses[problemID] = model.ProgressStatus(status)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return statuses, nil
}
