package bookshelf

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/drallgood/shelf-reader/internal/document"
	"github.com/drallgood/shelf-reader/internal/models"
)

// ErrUnsupportedUpload is returned by UploadBook for files that are neither
// PDF nor EPUB
var ErrUnsupportedUpload = errors.New("only PDF and EPUB files can be uploaded")

// ListBooks returns the whole catalog
func (c *Client) ListBooks(ctx context.Context) ([]models.Book, error) {
	return c.listBooks(ctx, "/books")
}

// SearchBooks returns the catalog books matching query
func (c *Client) SearchBooks(ctx context.Context, query string) ([]models.Book, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("search query is empty")
	}
	return c.listBooks(ctx, "/books/search?"+url.Values{"q": {query}}.Encode())
}

func (c *Client) listBooks(ctx context.Context, endpoint string) ([]models.Book, error) {
	var raw []models.Book
	if err := c.doJSON(ctx, http.MethodGet, endpoint, nil, &raw, true); err != nil {
		return nil, err
	}
	return c.validBooks(raw), nil
}

// validBooks normalizes formats and drops the books this client cannot open
func (c *Client) validBooks(raw []models.Book) []models.Book {
	books := make([]models.Book, 0, len(raw))
	for _, book := range raw {
		if format, err := models.ParseFormat(string(book.Format)); err == nil {
			book.Format = format
		}
		if err := c.validate.Struct(book); err != nil {
			c.logger.Warn("Dropping invalid book", map[string]interface{}{
				"book_id": book.ID,
				"error":   err.Error(),
			})
			continue
		}
		books = append(books, book)
	}
	return books
}

// GetBookDetails returns the descriptive metadata of a book
func (c *Client) GetBookDetails(ctx context.Context, bookID int) (*models.BookDetails, error) {
	var details models.BookDetails
	endpoint := fmt.Sprintf("/books/%d/details", bookID)
	if err := c.doJSON(ctx, http.MethodGet, endpoint, nil, &details, true); err != nil {
		return nil, WithBookID(err, bookID)
	}
	if details.Format != "" {
		if format, err := models.ParseFormat(string(details.Format)); err == nil {
			details.Format = format
		}
	}
	if err := c.validate.Struct(details); err != nil {
		return nil, WithBookID(fmt.Errorf("%w: details: %v", ErrMalformedResponse, err), bookID)
	}
	return &details, nil
}

// UploadBook sends a document to the catalog. The content is sniffed first
// and the filename extension is made to match it, since the backend decides
// the format by extension.
func (c *Client) UploadBook(ctx context.Context, upload models.UploadRequest) (*models.Book, error) {
	if err := c.validate.Struct(upload); err != nil {
		return nil, fmt.Errorf("invalid upload: %w", err)
	}
	format, err := document.DetectFormat(upload.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedUpload, err)
	}

	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	fields := []struct{ name, value string }{
		{"title", upload.Title},
		{"author", upload.Author},
		{"publisher", upload.Publisher},
		{"published_date", upload.PublishedDate},
		{"language", upload.Language},
	}
	for _, f := range fields {
		if f.value == "" {
			continue
		}
		if err := form.WriteField(f.name, f.value); err != nil {
			return nil, fmt.Errorf("failed to encode upload: %w", err)
		}
	}
	if len(upload.GenreIDs) > 0 {
		genres, err := json.Marshal(upload.GenreIDs)
		if err != nil {
			return nil, fmt.Errorf("failed to encode genres: %w", err)
		}
		if err := form.WriteField("genreIds", string(genres)); err != nil {
			return nil, fmt.Errorf("failed to encode upload: %w", err)
		}
	}
	part, err := form.CreateFormFile("ebookContent", uploadName(upload.Filename, format))
	if err != nil {
		return nil, fmt.Errorf("failed to encode upload: %w", err)
	}
	if _, err := part.Write(upload.Data); err != nil {
		return nil, fmt.Errorf("failed to encode upload: %w", err)
	}
	if err := form.Close(); err != nil {
		return nil, fmt.Errorf("failed to encode upload: %w", err)
	}

	resp, err := c.send(ctx, http.MethodPost, "/books", &body, form.FormDataContentType(), true)
	if err != nil {
		return nil, err
	}
	var book models.Book
	if err := decode(resp, http.MethodPost, "/books", &book); err != nil {
		return nil, err
	}
	if parsed, err := models.ParseFormat(string(book.Format)); err == nil {
		book.Format = parsed
	}
	if err := c.validate.Struct(book); err != nil {
		return nil, fmt.Errorf("%w: upload: %v", ErrMalformedResponse, err)
	}
	c.logger.Info("Uploaded book", map[string]interface{}{
		"book_id": book.ID,
		"format":  book.Format.String(),
		"bytes":   len(upload.Data),
	})
	return &book, nil
}

// MyUploads lists the books the user uploaded
func (c *Client) MyUploads(ctx context.Context) ([]models.Upload, error) {
	var raw []models.Upload
	if err := c.doJSON(ctx, http.MethodGet, "/books/my-uploads", nil, &raw, true); err != nil {
		return nil, err
	}
	uploads := make([]models.Upload, 0, len(raw))
	for _, u := range raw {
		if u.Format != "" {
			if format, err := models.ParseFormat(string(u.Format)); err == nil {
				u.Format = format
			}
		}
		if err := c.validate.Struct(u); err != nil {
			c.logger.Warn("Dropping invalid upload", map[string]interface{}{
				"book_id": u.ID,
				"error":   err.Error(),
			})
			continue
		}
		uploads = append(uploads, u)
	}
	return uploads, nil
}

// UpdateBook edits an uploaded book. Only the uploader may do this.
func (c *Client) UpdateBook(ctx context.Context, bookID int, update models.BookUpdate) error {
	if err := c.validate.Struct(update); err != nil {
		return WithBookID(fmt.Errorf("invalid book update: %w", err), bookID)
	}
	endpoint := "/books/" + strconv.Itoa(bookID)
	if err := c.doJSON(ctx, http.MethodPut, endpoint, update, nil, true); err != nil {
		return WithBookID(err, bookID)
	}
	c.forgetBook(bookID)
	return nil
}

// DeleteBook removes an uploaded book from the catalog. Only the uploader
// may do this.
func (c *Client) DeleteBook(ctx context.Context, bookID int) error {
	endpoint := "/books/" + strconv.Itoa(bookID)
	if err := c.doJSON(ctx, http.MethodDelete, endpoint, nil, nil, true); err != nil {
		return WithBookID(err, bookID)
	}
	c.forgetBook(bookID)
	return nil
}

func (c *Client) forgetBook(bookID int) {
	if c.books != nil {
		c.books.Delete(bookID)
	}
}

// uploadName gives filename the extension of format
func uploadName(filename string, format models.Format) string {
	base := filepath.Base(filename)
	ext := filepath.Ext(base)
	if strings.EqualFold(ext, format.Extension()) {
		return base
	}
	return strings.TrimSuffix(base, ext) + format.Extension()
}
