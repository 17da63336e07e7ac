package reader

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drallgood/shelf-reader/internal/api/bookshelf"
	"github.com/drallgood/shelf-reader/internal/apitest"
	"github.com/drallgood/shelf-reader/internal/database"
	"github.com/drallgood/shelf-reader/internal/library"
	"github.com/drallgood/shelf-reader/internal/logger"
	"github.com/drallgood/shelf-reader/internal/models"
	"github.com/drallgood/shelf-reader/internal/testutils"
)

func newBackendSession(t *testing.T, book models.Book, stored string) (*apitest.Server, *Session, *fakeScheduler, *database.Repository) {
	t.Helper()
	srv := apitest.New(t)
	srv.AddBook(book, nil)
	if stored != "" {
		srv.SetProgress(apitest.UserID, book.ID, stored)
	}

	repo := database.NewRepository(testutils.NewDatabase(t), nil, logger.Nop())

	client := bookshelf.NewClient(srv.URL, apitest.Token, bookshelf.WithLogger(logger.Nop()))
	sched := &fakeScheduler{}
	viewer := &fakeViewer{}
	s := NewSession(book.ID, book.Format, library.NewService(client, logger.Nop()), viewer, Options{
		Debounce:         time.Second,
		SettleDelay:      time.Second,
		AutosaveInterval: -1,
		Scheduler:        sched,
		Journal:          RepositoryJournal{Repo: repo},
		Logger:           logger.Nop(),
	})
	viewer.session = s
	return srv, s, sched, repo
}

func TestBackendRestoreAndSave(t *testing.T) {
	book := models.Book{ID: 11, Name: "Manual", Format: models.FormatPDF}
	srv, s, sched, repo := newBackendSession(t, book, "50%")
	ctx := context.Background()

	require.NoError(t, s.Resolve(200))
	pos, err := s.Restore(ctx)
	require.NoError(t, err)
	assert.Equal(t, 100, pos)
	sched.Fire()

	s.OnNavigate(150)
	sched.Fire()
	stored, _ := srv.Progress(apitest.UserID, book.ID)
	assert.Equal(t, "75%", stored)

	history, err := repo.History(ctx, book.ID, 0)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, database.StatusSaved, history[0].Status)
	assert.Equal(t, s.ID(), history[0].SessionID)
	assert.Equal(t, 75, history[0].Percent)
}

func TestBackendMalformedProgressStartsAtPageOne(t *testing.T) {
	book := models.Book{ID: 12, Name: "Broken", Format: models.FormatPDF}
	_, s, _, _ := newBackendSession(t, book, "abc%")

	require.NoError(t, s.Resolve(300))
	pos, err := s.Restore(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, pos)
}

func TestBackendFirstSaveAddsToLibrary(t *testing.T) {
	book := models.Book{ID: 13, Name: "New", Format: models.FormatEPUB}
	srv, s, sched, _ := newBackendSession(t, book, "")
	ctx := context.Background()

	require.NoError(t, s.Resolve(1024))
	_, err := s.Restore(ctx)
	require.NoError(t, err)
	sched.Fire()
	assert.False(t, srv.InLibrary(apitest.UserID, book.ID))

	s.OnNavigate(512)
	sched.Fire()
	stored, ok := srv.Progress(apitest.UserID, book.ID)
	require.True(t, ok)
	assert.Equal(t, "50%", stored)
	assert.Len(t, srv.CallsTo(http.MethodPost, "/api/library/:id"), 1)
}

func TestBackendFailedSaveIsJournaled(t *testing.T) {
	book := models.Book{ID: 14, Name: "Flaky", Format: models.FormatPDF}
	srv, s, sched, repo := newBackendSession(t, book, "10%")
	ctx := context.Background()

	require.NoError(t, s.Resolve(10))
	_, err := s.Restore(ctx)
	require.NoError(t, err)
	s.Settled()

	srv.FailNext(http.MethodPut, "/api/library/:id/progress", http.StatusBadGateway)
	s.OnNavigate(3)
	sched.Fire()

	stored, _ := srv.Progress(apitest.UserID, book.ID)
	assert.Equal(t, "10%", stored)

	require.NoError(t, s.FlushOnUnload(ctx))
	stored, _ = srv.Progress(apitest.UserID, book.ID)
	assert.Equal(t, "30%", stored, "the unload save retries")

	history, err := repo.History(ctx, book.ID, 0)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, database.StatusSaved, history[0].Status)
	assert.Equal(t, database.StatusFailed, history[1].Status)
	assert.Contains(t, history[1].Error, "502")
}
