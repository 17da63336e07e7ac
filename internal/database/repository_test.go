package database

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drallgood/shelf-reader/internal/crypto"
	"github.com/drallgood/shelf-reader/internal/logger"
)

func newTestRepository(t *testing.T) *Repository {
	t.Helper()
	db, err := NewDatabase(filepath.Join(t.TempDir(), "test.db"), logger.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	sealer, err := crypto.NewSealerWithKey([]byte(strings.Repeat("k", 32)), logger.Nop())
	require.NoError(t, err)
	return NewRepository(db, sealer, logger.Nop())
}

func TestNewDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "shelf.db")
	db, err := NewDatabase(path, logger.Nop())
	require.NoError(t, err)
	defer db.Close()

	assert.NoError(t, db.Health())
	assert.FileExists(t, path)
	assert.True(t, db.GetDB().Migrator().HasTable(&ProgressRecord{}))
	assert.True(t, db.GetDB().Migrator().HasTable(&CachedDocument{}))
	assert.True(t, db.GetDB().Migrator().HasTable(&AuthToken{}))
}

func TestProgressHistory(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	records := []ProgressRecord{
		{BookID: 1, SessionID: "a", Position: 10, Total: 100, Percent: 10, Status: StatusSaved, CreatedAt: base},
		{BookID: 1, SessionID: "a", Position: 20, Total: 100, Percent: 20, Status: StatusFailed, Error: "network failure", CreatedAt: base.Add(time.Minute)},
		{BookID: 2, SessionID: "b", Position: 5, Total: 50, Percent: 10, Status: StatusSaved, CreatedAt: base.Add(2 * time.Minute)},
	}
	for i := range records {
		require.NoError(t, repo.RecordProgress(ctx, &records[i]))
	}

	history, err := repo.History(ctx, 1, 0)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, 20, history[0].Position)
	assert.Equal(t, StatusFailed, history[0].Status)

	limited, err := repo.History(ctx, 1, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	last, err := repo.LastSaved(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 10, last.Percent)

	_, err = repo.LastSaved(ctx, 99)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDocuments(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	_, err := repo.GetDocument(ctx, 4)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, repo.SaveDocument(ctx, &CachedDocument{BookID: 4, Name: "Old", Format: "PDF", Path: "/tmp/4.pdf", Size: 10}))
	require.NoError(t, repo.SaveDocument(ctx, &CachedDocument{BookID: 4, Name: "New", Format: "PDF", Path: "/tmp/4.pdf", Size: 20}))

	doc, err := repo.GetDocument(ctx, 4)
	require.NoError(t, err)
	assert.Equal(t, "New", doc.Name)
	assert.Equal(t, int64(20), doc.Size)

	require.NoError(t, repo.DeleteDocument(ctx, 4))
	require.NoError(t, repo.DeleteDocument(ctx, 4))
	_, err = repo.GetDocument(ctx, 4)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTokens(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	const url = "http://books.local"

	_, err := repo.GetToken(ctx, url)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, repo.SaveToken(ctx, url, "alice", 7, "first"))
	require.NoError(t, repo.SaveToken(ctx, url, "alice", 7, "second"))

	token, err := repo.GetToken(ctx, url)
	require.NoError(t, err)
	assert.Equal(t, "second", token)

	var row AuthToken
	require.NoError(t, repo.db.GetDB().First(&row, "base_url = ?", url).Error)
	assert.NotContains(t, row.SealedToken, "second")

	require.NoError(t, repo.DeleteToken(ctx, url))
	_, err = repo.GetToken(ctx, url)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTokensWithoutSealer(t *testing.T) {
	db, err := NewDatabase(filepath.Join(t.TempDir(), "test.db"), logger.Nop())
	require.NoError(t, err)
	defer db.Close()
	repo := NewRepository(db, nil, logger.Nop())

	assert.Error(t, repo.SaveToken(context.Background(), "http://x", "u", 1, "t"))
	_, err = repo.GetToken(context.Background(), "http://x")
	assert.ErrorIs(t, err, ErrNotFound)
}
