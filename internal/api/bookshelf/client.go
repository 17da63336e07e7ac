// Package bookshelf is a typed client for the bookshelf REST API.
package bookshelf

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/drallgood/shelf-reader/internal/cache"
	"github.com/drallgood/shelf-reader/internal/logger"
	"github.com/drallgood/shelf-reader/internal/models"
)

const (
	apiPath = "/api"

	defaultTimeout  = 30 * time.Second
	defaultCacheTTL = 10 * time.Minute

	// maxErrorBody bounds how much of a failed response is read for its message
	maxErrorBody = 4 << 10
)

// Client is a client for the bookshelf API
type Client struct {
	baseURL  string
	token    string
	client   *http.Client
	logger   *logger.Logger
	validate *validator.Validate
	bookTTL  time.Duration
	books    cache.Cache[int, models.Book]
	// clock feeds the book cache
	clock func() time.Time
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.client = hc
		}
	}
}

// WithTimeout sets the per-request timeout. Zero keeps the default.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.client.Timeout = d
		}
	}
}

// WithLogger sets the logger used by the client
func WithLogger(l *logger.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l.Component("bookshelf_client")
		}
	}
}

// WithBookCacheTTL sets how long book metadata is cached. Zero disables caching.
func WithBookCacheTTL(ttl time.Duration) Option {
	return func(c *Client) {
		c.bookTTL = ttl
	}
}

// NewClient creates a new bookshelf client. baseURL is the server root, the
// /api prefix is added by the client.
func NewClient(baseURL, token string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client: &http.Client{
			Timeout: defaultTimeout,
		},
		logger:   logger.Get().Component("bookshelf_client"),
		validate: validator.New(),
		bookTTL:  defaultCacheTTL,
		clock:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.bookTTL > 0 {
		now := func() time.Time { return c.clock() }
		c.books = cache.WithTTL(cache.NewMemoryCache[int, models.Book](c.logger, cache.WithClock(now)), c.bookTTL)
	}
	return c
}

// SetToken replaces the bearer token, typically after Login
func (c *Client) SetToken(token string) {
	c.token = token
}

// Login exchanges credentials for a bearer token. The token is also stored on
// the client for subsequent calls.
func (c *Client) Login(ctx context.Context, username, password string) (*models.LoginResponse, error) {
	body := models.LoginRequest{Username: username, Password: password}
	if err := c.validate.Struct(body); err != nil {
		return nil, fmt.Errorf("invalid credentials: %w", err)
	}

	var resp models.LoginResponse
	if err := c.doJSON(ctx, http.MethodPost, "/auth/login", body, &resp, false); err != nil {
		return nil, err
	}
	if err := c.validate.Struct(resp); err != nil {
		return nil, fmt.Errorf("%w: login: %v", ErrMalformedResponse, err)
	}
	c.token = resp.Token
	c.logger.Info("Logged in", map[string]interface{}{
		"username": resp.Username,
		"user_id":  resp.UserID,
	})
	return &resp, nil
}

// Register creates an account. It does not log in: call Login afterwards.
func (c *Client) Register(ctx context.Context, username, password string) (*models.RegisterResponse, error) {
	body := models.RegisterRequest{Username: username, Password: password}
	if err := c.validate.Struct(body); err != nil {
		return nil, fmt.Errorf("invalid credentials: %w", err)
	}

	var resp models.RegisterResponse
	if err := c.doJSON(ctx, http.MethodPost, "/auth/register", body, &resp, false); err != nil {
		return nil, err
	}
	if err := c.validate.Struct(resp); err != nil {
		return nil, fmt.Errorf("%w: register: %v", ErrMalformedResponse, err)
	}
	c.logger.Info("Registered account", map[string]interface{}{
		"username": resp.Username,
		"user_id":  resp.UserID,
	})
	return &resp, nil
}

// GetBook fetches book metadata, served from the cache when fresh
func (c *Client) GetBook(ctx context.Context, bookID int) (*models.Book, error) {
	if c.books != nil {
		if book, ok := c.books.Get(bookID); ok {
			return &book, nil
		}
	}

	var book models.Book
	if err := c.doJSON(ctx, http.MethodGet, "/books/"+strconv.Itoa(bookID), nil, &book, true); err != nil {
		return nil, WithBookID(err, bookID)
	}
	format, err := models.ParseFormat(string(book.Format))
	if err == nil {
		book.Format = format
	}
	if err := c.validate.Struct(book); err != nil {
		return nil, WithBookID(fmt.Errorf("%w: book: %v", ErrMalformedResponse, err), bookID)
	}
	if c.books != nil {
		c.books.Set(book.ID, book, c.bookTTL)
	}
	return &book, nil
}

// ReadBook streams the raw document bytes. The caller closes the reader.
func (c *Client) ReadBook(ctx context.Context, bookID int) (io.ReadCloser, string, error) {
	endpoint := "/books/read/" + strconv.Itoa(bookID)
	resp, err := c.do(ctx, http.MethodGet, endpoint, nil, true)
	if err != nil {
		return nil, "", WithBookID(err, bookID)
	}
	return resp.Body, resp.Header.Get("Content-Type"), nil
}

// GetLibrary returns the user's library. Entries that fail validation are
// dropped with a warning.
func (c *Client) GetLibrary(ctx context.Context) ([]models.LibraryEntry, error) {
	var raw []models.LibraryEntry
	if err := c.doJSON(ctx, http.MethodGet, "/library", nil, &raw, true); err != nil {
		return nil, err
	}

	entries := make([]models.LibraryEntry, 0, len(raw))
	for _, entry := range raw {
		if entry.Format != "" {
			if format, err := models.ParseFormat(string(entry.Format)); err == nil {
				entry.Format = format
			}
		}
		if err := c.validate.Struct(entry); err != nil {
			c.logger.Warn("Dropping invalid library entry", map[string]interface{}{
				"book_id": entry.BookID,
				"error":   err.Error(),
			})
			continue
		}
		entries = append(entries, entry)
	}

	c.logger.Debug("Fetched library", map[string]interface{}{
		"count":   len(entries),
		"dropped": len(raw) - len(entries),
	})
	return entries, nil
}

// AddToLibrary adds a book to the user's library. The backend treats it as
// add-if-absent.
func (c *Client) AddToLibrary(ctx context.Context, bookID int) error {
	err := c.doJSON(ctx, http.MethodPost, "/library/"+strconv.Itoa(bookID), nil, nil, true)
	return WithBookID(err, bookID)
}

// RemoveFromLibrary deletes the user's library entry for a book
func (c *Client) RemoveFromLibrary(ctx context.Context, bookID int) error {
	err := c.doJSON(ctx, http.MethodDelete, "/library/"+strconv.Itoa(bookID), nil, nil, true)
	return WithBookID(err, bookID)
}

// UpdateProgress persists a percentage string such as "42%"
func (c *Client) UpdateProgress(ctx context.Context, bookID int, progress string) error {
	body := models.ProgressUpdate{Progress: progress}
	if err := c.validate.Struct(body); err != nil {
		return WithBookID(fmt.Errorf("invalid progress: %w", err), bookID)
	}
	endpoint := fmt.Sprintf("/library/%d/progress", bookID)
	return WithBookID(c.doJSON(ctx, http.MethodPut, endpoint, body, nil, true), bookID)
}

// UpdateRating writes a 1-5 rating and returns the refreshed aggregate
func (c *Client) UpdateRating(ctx context.Context, bookID int, rating int) (*models.RatingResult, error) {
	body := models.RatingUpdate{Rating: rating}
	if err := c.validate.Struct(body); err != nil {
		return nil, WithBookID(fmt.Errorf("invalid rating: %w", err), bookID)
	}

	var result models.RatingResult
	endpoint := fmt.Sprintf("/library/%d/rating", bookID)
	if err := c.doJSON(ctx, http.MethodPut, endpoint, body, &result, true); err != nil {
		return nil, WithBookID(err, bookID)
	}
	if err := c.validate.Struct(result); err != nil {
		return nil, WithBookID(fmt.Errorf("%w: rating: %v", ErrMalformedResponse, err), bookID)
	}
	return &result, nil
}

// GetBookRating returns the aggregate rating of a book
func (c *Client) GetBookRating(ctx context.Context, bookID int) (*models.RatingSummary, error) {
	var summary models.RatingSummary
	endpoint := fmt.Sprintf("/books/%d/rating", bookID)
	if err := c.doJSON(ctx, http.MethodGet, endpoint, nil, &summary, true); err != nil {
		return nil, WithBookID(err, bookID)
	}
	if err := c.validate.Struct(summary); err != nil {
		return nil, WithBookID(fmt.Errorf("%w: rating: %v", ErrMalformedResponse, err), bookID)
	}
	return &summary, nil
}

// GetBookmarks lists the user's bookmarks for a book
func (c *Client) GetBookmarks(ctx context.Context, bookID int) ([]models.Bookmark, error) {
	var raw []models.Bookmark
	endpoint := "/bookmarks?" + url.Values{"bookId": {strconv.Itoa(bookID)}}.Encode()
	if err := c.doJSON(ctx, http.MethodGet, endpoint, nil, &raw, true); err != nil {
		return nil, WithBookID(err, bookID)
	}

	bookmarks := make([]models.Bookmark, 0, len(raw))
	for _, b := range raw {
		if err := c.validate.Struct(b); err != nil {
			c.logger.Warn("Dropping invalid bookmark", map[string]interface{}{
				"book_id": bookID,
				"error":   err.Error(),
			})
			continue
		}
		if b.BookID == 0 {
			b.BookID = bookID
		}
		bookmarks = append(bookmarks, b)
	}
	return bookmarks, nil
}

// CreateBookmark stores a bookmark. BookID and Location are required.
func (c *Client) CreateBookmark(ctx context.Context, bookmark models.Bookmark) error {
	if bookmark.BookID <= 0 {
		return fmt.Errorf("bookmark requires a book ID")
	}
	if err := c.validate.Struct(bookmark); err != nil {
		return WithBookID(fmt.Errorf("invalid bookmark: %w", err), bookmark.BookID)
	}
	body := models.Bookmark{
		Name:     bookmark.Name,
		Location: bookmark.Location,
		BookID:   bookmark.BookID,
	}
	return WithBookID(c.doJSON(ctx, http.MethodPost, "/bookmarks", body, nil, true), bookmark.BookID)
}

// do sends a JSON request and returns the response when the status is 2xx.
// Any other status is drained and returned as a *StatusError.
func (c *Client) do(ctx context.Context, method, endpoint string, body interface{}, auth bool) (*http.Response, error) {
	if body == nil {
		return c.send(ctx, method, endpoint, nil, "", auth)
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}
	return c.send(ctx, method, endpoint, bytes.NewReader(payload), "application/json", auth)
}

// send is do with a pre-encoded body of the given content type
func (c *Client) send(ctx context.Context, method, endpoint string, body io.Reader, contentType string, auth bool) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+apiPath+endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if auth && c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	log := c.logger.With(map[string]interface{}{
		"method":   method,
		"endpoint": endpoint,
	})

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		log.Debug("Request failed", map[string]interface{}{"error": err.Error()})
		return nil, fmt.Errorf("%w: %s %s: %w", ErrNetwork, method, endpoint, err)
	}
	log.Debug("Request completed", map[string]interface{}{
		"status":   resp.StatusCode,
		"duration": time.Since(start).String(),
	})

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		var errBody models.ErrorResponse
		_ = json.Unmarshal(raw, &errBody)
		return nil, &StatusError{
			Method:     method,
			Endpoint:   endpoint,
			StatusCode: resp.StatusCode,
			Message:    errBody.Error,
		}
	}
	return resp, nil
}

// doJSON sends a request and decodes a JSON response into out. A nil out
// discards the body.
func (c *Client) doJSON(ctx context.Context, method, endpoint string, body, out interface{}, auth bool) error {
	resp, err := c.do(ctx, method, endpoint, body, auth)
	if err != nil {
		return err
	}
	return decode(resp, method, endpoint, out)
}

// decode reads a JSON response into out and closes the body
func decode(resp *http.Response, method, endpoint string, out interface{}) error {
	defer resp.Body.Close()

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %w", ErrNetwork, method, endpoint, err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: %s %s: %v", ErrMalformedResponse, method, endpoint, err)
	}
	return nil
}
