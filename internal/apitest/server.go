// Package apitest runs an in-memory bookshelf backend for tests. It serves the
// same routes and JSON shapes as the real server under /api.
package apitest

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/drallgood/shelf-reader/internal/models"
)

// Credentials of the user every Server starts with
const (
	Username = "reader"
	Password = "secret"
	Token    = "test-token"
	UserID   = 1
)

// Call is one request the server received. Route is the matched pattern,
// e.g. "/api/library/:id/progress".
type Call struct {
	Method string
	Route  string
	Path   string
	Body   string
}

type storedBook struct {
	meta          models.Book
	data          []byte
	contentType   string
	publisher     string
	genres        string
	publishedDate string
}

type collection struct {
	id      int
	name    string
	userID  int
	created time.Time
	books   []int
}

type libraryEntry struct {
	progress string
	lastRead time.Time
}

type user struct {
	id       int
	password string
}

// Server is an in-memory bookshelf backend
type Server struct {
	*httptest.Server
	Echo *echo.Echo

	mu        sync.Mutex
	users     map[string]user
	tokens    map[string]int
	books     map[int]storedBook
	library   map[int]map[int]*libraryEntry
	ratings   map[int]map[int]int
	bookmarks map[int][]models.Bookmark
	// collections is keyed by collection ID
	collections    map[int]*collection
	nextCollection int
	failures       map[string][]int
	calls          []Call
}

// New starts a server that is closed when the test ends
func New(t testing.TB) *Server {
	t.Helper()
	s := &Server{
		users:     map[string]user{Username: {id: UserID, password: Password}},
		tokens:    map[string]int{Token: UserID},
		books:     map[int]storedBook{},
		library:   map[int]map[int]*libraryEntry{},
		ratings:   map[int]map[int]int{},
		bookmarks:   map[int][]models.Bookmark{},
		collections: map[int]*collection{},
		failures:    map[string][]int{},
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = errorHandler
	e.Use(s.record, s.inject)

	api := e.Group("/api")
	api.POST("/auth/login", s.login)
	api.POST("/auth/register", s.register)

	authed := api.Group("", s.authenticate)
	authed.GET("/books", s.listBooks)
	authed.POST("/books", s.uploadBook)
	authed.GET("/books/search", s.searchBooks)
	authed.GET("/books/my-uploads", s.myUploads)
	authed.GET("/books/:id", s.getBook)
	authed.PUT("/books/:id", s.updateBook)
	authed.DELETE("/books/:id", s.deleteBook)
	authed.GET("/books/:id/details", s.getDetails)
	authed.GET("/books/read/:id", s.readBook)
	authed.GET("/books/:id/rating", s.getRating)
	authed.GET("/collections", s.listCollections)
	authed.POST("/collections", s.createCollection)
	authed.DELETE("/collections/:id", s.deleteCollection)
	authed.GET("/collections/:id/books", s.collectionBooks)
	authed.POST("/collections/:id/books/:bookId", s.addToCollection)
	authed.DELETE("/collections/:id/books/:bookId", s.removeFromCollection)
	authed.GET("/library", s.getLibrary)
	authed.POST("/library/:id", s.addToLibrary)
	authed.DELETE("/library/:id", s.removeFromLibrary)
	authed.PUT("/library/:id/progress", s.updateProgress)
	authed.PUT("/library/:id/rating", s.updateRating)
	authed.GET("/bookmarks", s.getBookmarks)
	authed.POST("/bookmarks", s.createBookmark)

	s.Echo = e
	s.Server = httptest.NewServer(e)
	t.Cleanup(s.Close)
	return s
}

// AddUser registers another account and returns its token
func (s *Server) AddUser(username, password string) (int, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := len(s.users) + 1
	s.users[username] = user{id: id, password: password}
	token := fmt.Sprintf("token-%d", id)
	s.tokens[token] = id
	return id, token
}

// AddBook stores a book and its document bytes. A non-zero book.UserID makes
// that user the uploader.
func (s *Server) AddBook(book models.Book, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.books[book.ID] = storedBook{meta: book, data: data, contentType: contentTypeOf(book.Format)}
}

// Book returns the stored metadata of a book
func (s *Server) Book(bookID int) (models.Book, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	book, ok := s.books[bookID]
	return book.meta, ok
}

// BookData returns the stored document bytes of a book
func (s *Server) BookData(bookID int) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.books[bookID].data
}

// HasUser reports whether an account exists
func (s *Server) HasUser(username string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.users[username]
	return ok
}

// AddCollection creates a collection owned by userID and returns its ID
func (s *Server) AddCollection(userID int, name string, bookIDs ...int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addCollection(userID, name, bookIDs...).id
}

// CollectionBooks returns the book IDs of a collection and whether it exists
func (s *Server) CollectionBooks(collectionID int) ([]int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	col, ok := s.collections[collectionID]
	if !ok {
		return nil, false
	}
	return append([]int(nil), col.books...), true
}

func (s *Server) addCollection(userID int, name string, bookIDs ...int) *collection {
	s.nextCollection++
	col := &collection{
		id:      s.nextCollection,
		name:    name,
		userID:  userID,
		created: time.Now(),
		books:   append([]int(nil), bookIDs...),
	}
	s.collections[col.id] = col
	return col
}

func contentTypeOf(format models.Format) string {
	switch format {
	case models.FormatPDF:
		return "application/pdf"
	case models.FormatEPUB:
		return "application/epub+zip"
	default:
		return "application/octet-stream"
	}
}

// SetProgress puts a book in a user's library with a raw progress string
func (s *Server) SetProgress(userID, bookID int, progress string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entriesOf(userID)[bookID] = &libraryEntry{progress: progress, lastRead: time.Now()}
}

// SetRating records a rating without going through the API
func (s *Server) SetRating(userID, bookID, rating int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ratings[bookID] == nil {
		s.ratings[bookID] = map[int]int{}
	}
	s.ratings[bookID][userID] = rating
}

// Progress returns the stored progress string and whether the entry exists
func (s *Server) Progress(userID, bookID int) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.library[userID][bookID]
	if !ok {
		return "", false
	}
	return entry.progress, true
}

// InLibrary reports whether the user's library holds the book
func (s *Server) InLibrary(userID, bookID int) bool {
	_, ok := s.Progress(userID, bookID)
	return ok
}

// Bookmarks returns the stored bookmarks of a user
func (s *Server) Bookmarks(userID int) []models.Bookmark {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Bookmark(nil), s.bookmarks[userID]...)
}

// FailNext makes the next requests to method+route answer with the given
// statuses, one per request
func (s *Server) FailNext(method, route string, statuses ...int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := method + " " + route
	s.failures[key] = append(s.failures[key], statuses...)
}

// Calls returns every request received so far
func (s *Server) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.calls...)
}

// CallsTo returns the requests that matched method+route
func (s *Server) CallsTo(method, route string) []Call {
	var out []Call
	for _, c := range s.Calls() {
		if c.Method == method && c.Route == route {
			out = append(out, c)
		}
	}
	return out
}

// ResetCalls forgets recorded requests
func (s *Server) ResetCalls() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = nil
}

func (s *Server) entriesOf(userID int) map[int]*libraryEntry {
	entries, ok := s.library[userID]
	if !ok {
		entries = map[int]*libraryEntry{}
		s.library[userID] = entries
	}
	return entries
}

func (s *Server) summary(bookID int) models.RatingSummary {
	ratings := s.ratings[bookID]
	if len(ratings) == 0 {
		return models.RatingSummary{}
	}
	sum := 0
	for _, r := range ratings {
		sum += r
	}
	return models.RatingSummary{
		AverageRating: float64(sum) / float64(len(ratings)),
		TotalRatings:  len(ratings),
	}
}

func (s *Server) record(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		var body []byte
		if c.Request().Body != nil {
			body, _ = io.ReadAll(c.Request().Body)
			c.Request().Body = io.NopCloser(bytes.NewReader(body))
		}
		s.mu.Lock()
		s.calls = append(s.calls, Call{
			Method: c.Request().Method,
			Route:  c.Path(),
			Path:   c.Request().URL.Path,
			Body:   string(body),
		})
		s.mu.Unlock()
		return next(c)
	}
}

func (s *Server) inject(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		key := c.Request().Method + " " + c.Path()
		s.mu.Lock()
		pending := s.failures[key]
		var status int
		if len(pending) > 0 {
			status, s.failures[key] = pending[0], pending[1:]
		}
		s.mu.Unlock()
		if status != 0 {
			return c.JSON(status, models.ErrorResponse{Error: "injected failure"})
		}
		return next(c)
	}
}

func (s *Server) authenticate(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		token, ok := strings.CutPrefix(c.Request().Header.Get(echo.HeaderAuthorization), "Bearer ")
		s.mu.Lock()
		userID, known := s.tokens[token]
		s.mu.Unlock()
		if !ok || !known {
			return echo.NewHTTPError(http.StatusUnauthorized, "Unauthorized user")
		}
		c.Set("userID", userID)
		return next(c)
	}
}

func errorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	status := http.StatusInternalServerError
	msg := err.Error()
	if he, ok := err.(*echo.HTTPError); ok {
		status = he.Code
		msg = fmt.Sprint(he.Message)
	}
	_ = c.JSON(status, models.ErrorResponse{Error: msg})
}

func parseID(raw string) (int, error) {
	id, err := strconv.Atoi(raw)
	if err != nil || id <= 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "Invalid book ID")
	}
	return id, nil
}
