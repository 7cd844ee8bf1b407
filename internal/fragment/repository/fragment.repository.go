package repository

import (
	"context"
	"database/sql"
	"fragmentone/internal/fragment/model"
	"fragmentone/pkg/errs"
	"fragmentone/pkg/logger"
	"time"

	"github.com/google/uuid"
)

type FragmentRepository struct {
	DB *sql.DB
}

func NewFragmentRepository(db *sql.DB) *FragmentRepository {
	return &FragmentRepository{DB: db}
}

// Append stores a fragment. created_at comes from the database clock.
func (r *FragmentRepository) Append(ctx context.Context, authorID, text string) (model.Fragment, error) {
	f := model.Fragment{ID: uuid.NewString(), AuthorID: authorID, Text: text}
	err := r.DB.QueryRowContext(ctx,
		`INSERT INTO fragments (id, author_id, text, created_at) VALUES ($1, $2, $3, NOW()) RETURNING created_at`,
		f.ID, authorID, text,
	).Scan(&f.CreatedAt)
	if err != nil {
		logger.Sugar.Errorf("Failed to append fragment for %s: %v", authorID, err)
		return model.Fragment{}, errs.Write("append", err)
	}
	return f, nil
}

func (r *FragmentRepository) FindSince(ctx context.Context, since time.Time) ([]model.Fragment, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT id, author_id, text, created_at FROM fragments WHERE created_at >= $1", since)
	if err != nil {
		logger.Sugar.Errorf("Failed to find fragments since %s: %v", since.Format(time.RFC3339), err)
		return nil, errs.Read("find since", err)
	}
	return scanFragments(rows, "find since")
}

func (r *FragmentRepository) FindByAuthorSince(ctx context.Context, authorID string, since time.Time) ([]model.Fragment, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT id, author_id, text, created_at FROM fragments WHERE author_id = $1 AND created_at >= $2",
		authorID, since)
	if err != nil {
		logger.Sugar.Errorf("Failed to find fragments for %s: %v", authorID, err)
		return nil, errs.Read("find by author since", err)
	}
	return scanFragments(rows, "find by author since")
}

// DeleteBefore removes every fragment strictly older than before.
// Running it again over an already swept range deletes nothing.
func (r *FragmentRepository) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	result, err := r.DB.ExecContext(ctx, "DELETE FROM fragments WHERE created_at < $1", before)
	if err != nil {
		logger.Sugar.Errorf("Failed to delete fragments before %s: %v", before.Format(time.RFC3339), err)
		return 0, errs.Write("delete before", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, errs.Write("delete before", err)
	}
	return n, nil
}

func (r *FragmentRepository) Ping(ctx context.Context) error {
	return r.DB.PingContext(ctx)
}

func scanFragments(rows *sql.Rows, op string) ([]model.Fragment, error) {
	defer rows.Close()

	fragments := []model.Fragment{}
	for rows.Next() {
		var f model.Fragment
		if err := rows.Scan(&f.ID, &f.AuthorID, &f.Text, &f.CreatedAt); err != nil {
			logger.Sugar.Errorf("Failed to scan fragment: %v", err)
			return nil, errs.Read(op, err)
		}
		fragments = append(fragments, f)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Read(op, err)
	}
	return fragments, nil
}
