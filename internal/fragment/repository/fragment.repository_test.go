package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"fragmentone/internal/fragment/model"
	"fragmentone/pkg/errs"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var day1Start = time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC)

func newMockRepo(t *testing.T) (*FragmentRepository, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewFragmentRepository(db), mock
}

func TestAppendUsesDatabaseClock(t *testing.T) {
	repo, mock := newMockRepo(t)
	serverTime := day1Start.Add(9 * time.Hour)

	mock.ExpectQuery(`INSERT INTO fragments \(id, author_id, text, created_at\) VALUES \(\$1, \$2, \$3, NOW\(\)\) RETURNING created_at`).
		WithArgs(sqlmock.AnyArg(), "author-a", "hope").
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(serverTime))

	f, err := repo.Append(context.Background(), "author-a", "hope")
	require.NoError(t, err)
	assert.NotEmpty(t, f.ID)
	assert.Equal(t, "author-a", f.AuthorID)
	assert.Equal(t, "hope", f.Text)
	assert.Equal(t, serverTime, f.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAppendFailureIsWriteError(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectQuery("INSERT INTO fragments").WillReturnError(errors.New("permission denied"))

	_, err := repo.Append(context.Background(), "author-a", "hope")
	require.Error(t, err)
	assert.True(t, errs.IsWrite(err))
}

func TestFindSince(t *testing.T) {
	repo, mock := newMockRepo(t)
	rows := sqlmock.NewRows([]string{"id", "author_id", "text", "created_at"}).
		AddRow("f1", "author-a", "hope", day1Start.Add(time.Hour)).
		AddRow("f2", "author-b", "light", day1Start.Add(2*time.Hour))

	mock.ExpectQuery(`SELECT id, author_id, text, created_at FROM fragments WHERE created_at >= \$1`).
		WithArgs(day1Start).
		WillReturnRows(rows)

	got, err := repo.FindSince(context.Background(), day1Start)
	require.NoError(t, err)

	want := []model.Fragment{
		{ID: "f1", AuthorID: "author-a", Text: "hope", CreatedAt: day1Start.Add(time.Hour)},
		{ID: "f2", AuthorID: "author-b", Text: "light", CreatedAt: day1Start.Add(2 * time.Hour)},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("FindSince mismatch (-want +got):\n%s", diff)
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindSinceEmptyIsNotNil(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectQuery("SELECT id, author_id, text, created_at FROM fragments").
		WillReturnRows(sqlmock.NewRows([]string{"id", "author_id", "text", "created_at"}))

	got, err := repo.FindSince(context.Background(), day1Start)
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestFindSinceFailureIsReadError(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectQuery("SELECT id, author_id, text, created_at FROM fragments").
		WillReturnError(errors.New("timeout"))

	_, err := repo.FindSince(context.Background(), day1Start)
	assert.True(t, errs.IsRead(err))
}

func TestFindByAuthorSince(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectQuery(`SELECT id, author_id, text, created_at FROM fragments WHERE author_id = \$1 AND created_at >= \$2`).
		WithArgs("author-a", day1Start).
		WillReturnRows(sqlmock.NewRows([]string{"id", "author_id", "text", "created_at"}).
			AddRow("f1", "author-a", "hope", day1Start.Add(time.Hour)))

	got, err := repo.FindByAuthorSince(context.Background(), "author-a", day1Start)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "f1", got[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteBeforeIsIdempotent(t *testing.T) {
	repo, mock := newMockRepo(t)
	day2Start := day1Start.AddDate(0, 0, 1)

	mock.ExpectExec(`DELETE FROM fragments WHERE created_at < \$1`).
		WithArgs(day2Start).
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec(`DELETE FROM fragments WHERE created_at < \$1`).
		WithArgs(day2Start).
		WillReturnResult(sqlmock.NewResult(0, 0))

	first, err := repo.DeleteBefore(context.Background(), day2Start)
	require.NoError(t, err)
	assert.Equal(t, int64(3), first)

	second, err := repo.DeleteBefore(context.Background(), day2Start)
	require.NoError(t, err)
	assert.Equal(t, int64(0), second)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteBeforeFailureIsWriteError(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectExec("DELETE FROM fragments").WillReturnError(errors.New("read-only transaction"))

	n, err := repo.DeleteBefore(context.Background(), day1Start)
	assert.Zero(t, n)
	assert.True(t, errs.IsWrite(err))
}
