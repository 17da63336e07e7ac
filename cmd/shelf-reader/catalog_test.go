package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drallgood/shelf-reader/internal/apitest"
	"github.com/drallgood/shelf-reader/internal/models"
	"github.com/drallgood/shelf-reader/internal/testutils"
)

func TestRegisterThenLogin(t *testing.T) {
	h := newCLIHarness(t)
	h.token = ""

	out, err := h.run("", "register", "--username", "newcomer", "--password", "pw")
	require.NoError(t, err)
	assert.Contains(t, out, "Registered newcomer")
	assert.True(t, h.srv.HasUser("newcomer"))

	_, err = h.run("", "register", "--username", "newcomer", "--password", "pw")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "registration failed")

	out, err = h.run("", "login", "--username", "newcomer", "--password", "pw")
	require.NoError(t, err)
	assert.Contains(t, out, "Logged in as newcomer")
}

func TestBooksAndSearch(t *testing.T) {
	h := newCLIHarness(t)

	out, err := h.run("", "books")
	require.NoError(t, err)
	assert.Contains(t, out, "The catalog is empty")

	h.srv.AddBook(models.Book{ID: 1, Name: "Dune", Authors: "Frank Herbert", Format: models.FormatPDF}, nil)
	h.srv.AddBook(models.Book{ID: 2, Name: "Emma", Authors: "Jane Austen", Format: models.FormatEPUB}, nil)

	out, err = h.run("", "books")
	require.NoError(t, err)
	assert.Contains(t, out, "Dune")
	assert.Contains(t, out, "Emma")

	out, err = h.run("", "search", "jane", "austen")
	require.NoError(t, err)
	assert.Contains(t, out, "Emma")
	assert.NotContains(t, out, "Dune")

	out, err = h.run("", "search", "tolkien")
	require.NoError(t, err)
	assert.Contains(t, out, `No books match "tolkien"`)

	_, err = h.run("", "search")
	assert.Error(t, err)
}

func TestInfoCommand(t *testing.T) {
	h := newCLIHarness(t)
	h.srv.AddBook(models.Book{ID: 4, Name: "Emma", Authors: "Jane Austen", Language: "English", Format: models.FormatEPUB}, nil)
	h.srv.SetRating(2, 4, 4)

	out, err := h.run("", "info", "4")
	require.NoError(t, err)
	assert.Contains(t, out, "Emma")
	assert.Contains(t, out, "Jane Austen")
	assert.Contains(t, out, "Publisher: Unknown")
	assert.Contains(t, out, "Not rated by you. Average 4.0 from 1 rating")

	_, err = h.run("", "info", "40")
	assert.Error(t, err)
}

func TestUploadCommand(t *testing.T) {
	h := newCLIHarness(t)
	path := filepath.Join(t.TempDir(), "field-notes.pdf")
	require.NoError(t, os.WriteFile(path, testutils.BuildPDF(t, 3), 0644))

	out, err := h.run("", "upload", "--author", "A. Birder", "--genre", "2", path)
	require.NoError(t, err)
	assert.Contains(t, out, `Uploaded "field-notes" as book 1 (PDF)`)

	book, ok := h.srv.Book(1)
	require.True(t, ok)
	assert.Equal(t, "A. Birder", book.Authors)
	assert.Equal(t, apitest.UserID, book.UserID)

	text := filepath.Join(t.TempDir(), "notes.pdf")
	require.NoError(t, os.WriteFile(text, []byte("plain text pretending to be a PDF"), 0644))
	_, err = h.run("", "upload", text)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "only PDF and EPUB")

	_, err = h.run("", "upload", filepath.Join(t.TempDir(), "missing.pdf"))
	assert.Error(t, err)
}

func TestUploadsCommands(t *testing.T) {
	h := newCLIHarness(t)

	out, err := h.run("", "uploads")
	require.NoError(t, err)
	assert.Contains(t, out, "You have not uploaded any books")

	h.srv.AddBook(models.Book{ID: 3, Name: "Draft", Language: "English", Format: models.FormatPDF, UserID: apitest.UserID}, testutils.BuildPDF(t, 1))
	h.srv.AddBook(models.Book{ID: 4, Name: "Theirs", Format: models.FormatPDF, UserID: 2}, nil)

	out, err = h.run("", "uploads", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "Draft")
	assert.NotContains(t, out, "Theirs")

	_, err = h.run("", "uploads", "edit", "3")
	assert.Error(t, err, "an edit needs a change")

	out, err = h.run("", "uploads", "edit", "--title", "Final", "3")
	require.NoError(t, err)
	assert.Contains(t, out, "Updated book 3")
	book, _ := h.srv.Book(3)
	assert.Equal(t, "Final", book.Name)
	assert.Equal(t, "English", book.Language, "unchanged fields are kept")
	assert.Equal(t, models.FormatPDF, book.Format)

	_, err = h.run("", "uploads", "edit", "--title", "Mine now", "4")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "only the uploader can edit book 4")

	// download it first so the delete has a local copy to clean up
	_, err = h.run("q\n", "open", "3")
	require.NoError(t, err)
	out, err = h.run("", "uploads", "delete", "3")
	require.NoError(t, err)
	assert.Contains(t, out, "Deleted book 3")
	_, ok := h.srv.Book(3)
	assert.False(t, ok)
	entries, err := os.ReadDir(filepath.Join(h.dataDir, "books"))
	require.NoError(t, err)
	assert.Empty(t, entries, "the downloaded copy is removed")

	_, err = h.run("", "uploads", "delete", "4")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "only the uploader can delete book 4")
}

func TestCollectionsCommands(t *testing.T) {
	h := newCLIHarness(t)
	h.srv.AddBook(models.Book{ID: 1, Name: "Dune", Format: models.FormatPDF}, nil)
	h.srv.AddBook(models.Book{ID: 2, Name: "Emma", Format: models.FormatEPUB}, nil)

	out, err := h.run("", "collections")
	require.NoError(t, err)
	assert.Contains(t, out, "You have no collections")

	out, err = h.run("", "collections", "create", "Weekend", "reads")
	require.NoError(t, err)
	assert.Contains(t, out, `Created collection "Weekend reads" (1)`)

	_, err = h.run("", "collections", "add", "1", "2")
	require.NoError(t, err)
	_, err = h.run("", "collections", "add", "1", "1")
	require.NoError(t, err)

	out, err = h.run("", "collections", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "Weekend reads")

	out, err = h.run("", "collections", "show", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "Dune")
	assert.Contains(t, out, "Emma")

	out, err = h.run("", "collections", "remove", "1", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "Removed book 1 from collection 1")
	ids, _ := h.srv.CollectionBooks(1)
	assert.Equal(t, []int{2}, ids)

	_, err = h.run("", "collections", "add", "1", "x")
	assert.Error(t, err)
	_, err = h.run("", "collections", "show", "9")
	assert.Error(t, err)

	out, err = h.run("", "collections", "delete", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "Deleted collection 1")
	_, ok := h.srv.CollectionBooks(1)
	assert.False(t, ok)
}
