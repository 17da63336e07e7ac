package library

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/drallgood/shelf-reader/internal/api/bookshelf"
	"github.com/drallgood/shelf-reader/internal/database"
	"github.com/drallgood/shelf-reader/internal/document"
	"github.com/drallgood/shelf-reader/internal/logger"
	"github.com/drallgood/shelf-reader/internal/models"
)

// maxDocumentSize bounds a single download
const maxDocumentSize = 512 << 20

// DocumentIndex records which books have been downloaded. *database.Repository
// implements it.
type DocumentIndex interface {
	GetDocument(ctx context.Context, bookID int) (*database.CachedDocument, error)
	SaveDocument(ctx context.Context, doc *database.CachedDocument) error
	DeleteDocument(ctx context.Context, bookID int) error
}

// Fetched is a document ready to open
type Fetched struct {
	Path   string
	Format models.Format
	Data   []byte
	// Cached is true when the bytes came from disk instead of the backend
	Cached bool
}

// Documents downloads book files into a local directory
type Documents struct {
	client bookshelf.ClientInterface
	index  DocumentIndex
	dir    string
	logger *logger.Logger
}

// NewDocuments creates a downloader storing files under dir
func NewDocuments(client bookshelf.ClientInterface, index DocumentIndex, dir string, log *logger.Logger) *Documents {
	if log == nil {
		log = logger.Get()
	}
	return &Documents{
		client: client,
		index:  index,
		dir:    dir,
		logger: log.Component("documents"),
	}
}

// Fetch returns the document bytes of a book, reusing an earlier download
// when its file is still intact
func (d *Documents) Fetch(ctx context.Context, book models.Book) (*Fetched, error) {
	if fetched, ok := d.cached(ctx, book.ID); ok {
		return fetched, nil
	}

	body, contentType, err := d.client.ReadBook(ctx, book.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to download book: %w", err)
	}
	defer body.Close()

	data, err := io.ReadAll(io.LimitReader(body, maxDocumentSize+1))
	if err != nil {
		return nil, bookshelf.WithBookID(fmt.Errorf("failed to download book: %w", err), book.ID)
	}
	if len(data) > maxDocumentSize {
		return nil, bookshelf.WithBookID(fmt.Errorf("document exceeds %d bytes", maxDocumentSize), book.ID)
	}

	format := book.Format
	detected, err := document.DetectFormat(data)
	switch {
	case err != nil:
		d.logger.Warn("Could not detect document format, trusting metadata", map[string]interface{}{
			"book_id":      book.ID,
			"content_type": contentType,
			"format":       format.String(),
		})
	case detected != format:
		d.logger.Warn("Document format differs from metadata", map[string]interface{}{
			"book_id":  book.ID,
			"metadata": format.String(),
			"detected": detected.String(),
		})
		format = detected
	}

	path, err := d.store(book.ID, format, data)
	if err != nil {
		return nil, bookshelf.WithBookID(err, book.ID)
	}
	if d.index != nil {
		row := &database.CachedDocument{
			BookID: book.ID,
			Name:   book.Name,
			Format: format.String(),
			Path:   path,
			Size:   int64(len(data)),
		}
		if err := d.index.SaveDocument(ctx, row); err != nil {
			d.logger.Warn("Failed to index downloaded document", map[string]interface{}{
				"book_id": book.ID,
				"error":   err.Error(),
			})
		}
	}

	d.logger.Info("Downloaded book", map[string]interface{}{
		"book_id": book.ID,
		"format":  format.String(),
		"bytes":   len(data),
	})
	return &Fetched{Path: path, Format: format, Data: data}, nil
}

// Forget deletes the downloaded file of a book and its index row
func (d *Documents) Forget(ctx context.Context, bookID int) error {
	if d.index == nil {
		return nil
	}
	row, err := d.index.GetDocument(ctx, bookID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil
		}
		return err
	}
	if err := os.Remove(row.Path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete %s: %w", row.Path, err)
	}
	return d.index.DeleteDocument(ctx, bookID)
}

func (d *Documents) cached(ctx context.Context, bookID int) (*Fetched, bool) {
	if d.index == nil {
		return nil, false
	}
	row, err := d.index.GetDocument(ctx, bookID)
	if err != nil {
		if !errors.Is(err, database.ErrNotFound) {
			d.logger.Warn("Failed to look up downloaded document", map[string]interface{}{
				"book_id": bookID,
				"error":   err.Error(),
			})
		}
		return nil, false
	}
	format, err := models.ParseFormat(row.Format)
	if err != nil {
		return nil, false
	}
	data, err := os.ReadFile(row.Path)
	if err != nil || int64(len(data)) != row.Size {
		d.logger.Debug("Downloaded document is missing or changed, fetching again", map[string]interface{}{
			"book_id": bookID,
			"path":    row.Path,
		})
		return nil, false
	}
	return &Fetched{Path: row.Path, Format: format, Data: data, Cached: true}, true
}

// store writes through a temp file and renames it into place
func (d *Documents) store(bookID int, format models.Format, data []byte) (string, error) {
	if err := os.MkdirAll(d.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create documents directory: %w", err)
	}
	path := filepath.Join(d.dir, strconv.Itoa(bookID)+format.Extension())

	tmp, err := os.CreateTemp(d.dir, ".download-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("failed to write document: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to write document: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("failed to move document into place: %w", err)
	}
	return path, nil
}
