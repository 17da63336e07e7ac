package reader

import (
	"context"

	"github.com/drallgood/shelf-reader/internal/database"
	"github.com/drallgood/shelf-reader/internal/progress"
)

// SaveAttempt describes one progress write
type SaveAttempt struct {
	BookID    int
	SessionID string
	Position  int
	Total     int
	Percent   progress.Percent
	Err       error
}

// Journal records save attempts. It is history only.
type Journal interface {
	Record(ctx context.Context, attempt SaveAttempt) error
}

// RepositoryJournal stores attempts in the local database
type RepositoryJournal struct {
	Repo *database.Repository
}

// Record implements Journal
func (j RepositoryJournal) Record(ctx context.Context, a SaveAttempt) error {
	rec := &database.ProgressRecord{
		BookID:    a.BookID,
		SessionID: a.SessionID,
		Position:  a.Position,
		Total:     a.Total,
		Percent:   int(a.Percent),
		Status:    database.StatusSaved,
	}
	if a.Err != nil {
		rec.Status = database.StatusFailed
		rec.Error = a.Err.Error()
	}
	return j.Repo.RecordProgress(ctx, rec)
}
