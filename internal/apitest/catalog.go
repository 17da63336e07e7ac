package apitest

import (
	"encoding/json"
	"io"
	"net/http"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/drallgood/shelf-reader/internal/models"
)

type registerJSON struct {
	Token    *string `json:"token"`
	UserID   int     `json:"userId"`
	Username string  `json:"username"`
}

type collectionJSON struct {
	ID          int    `json:"collectionId"`
	Name        string `json:"collectionName"`
	CreatedDate string `json:"createdDate"`
	UserID      int    `json:"userId"`
	BookCount   int    `json:"bookCount"`
}

func (s *Server) register(c echo.Context) error {
	var req models.RegisterRequest
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.Username) == "" || req.Password == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "Username and password are required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[req.Username]; ok {
		return echo.NewHTTPError(http.StatusBadRequest, "Registration failed: Username already exists!")
	}
	id := len(s.users) + 1
	s.users[req.Username] = user{id: id, password: req.Password}
	s.tokens["token-"+req.Username] = id
	return c.JSON(http.StatusOK, registerJSON{UserID: id, Username: req.Username})
}

// sortedBooks returns the catalog ordered by ID, filtered by keep
func (s *Server) sortedBooks(keep func(storedBook) bool) []storedBook {
	out := make([]storedBook, 0, len(s.books))
	for _, b := range s.books {
		if keep(b) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].meta.ID < out[j].meta.ID })
	return out
}

func metas(books []storedBook) []models.Book {
	out := make([]models.Book, 0, len(books))
	for _, b := range books {
		out = append(out, b.meta)
	}
	return out
}

func (s *Server) listBooks(c echo.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return c.JSON(http.StatusOK, metas(s.sortedBooks(func(storedBook) bool { return true })))
}

func (s *Server) searchBooks(c echo.Context) error {
	q := strings.ToLower(strings.TrimSpace(c.QueryParam("q")))
	if q == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "Query is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	found := s.sortedBooks(func(b storedBook) bool {
		return strings.Contains(strings.ToLower(b.meta.Name), q) ||
			strings.Contains(strings.ToLower(b.meta.Authors), q)
	})
	return c.JSON(http.StatusOK, metas(found))
}

func (s *Server) getDetails(c echo.Context) error {
	id, err := parseID(c.Param("id"))
	if err != nil {
		return err
	}
	s.mu.Lock()
	book, ok := s.books[id]
	s.mu.Unlock()
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "Book not found")
	}
	return c.JSON(http.StatusOK, models.BookDetails{
		ID:            book.meta.ID,
		Name:          book.meta.Name,
		Authors:       book.meta.Authors,
		Genres:        book.genres,
		Publisher:     book.publisher,
		PublishedDate: book.publishedDate,
		Language:      book.meta.Language,
		Format:        book.meta.Format,
	})
}

func (s *Server) uploadBook(c echo.Context) error {
	title := strings.TrimSpace(c.FormValue("title"))
	if title == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "Book title is missing or invalid")
	}
	header, err := c.FormFile("ebookContent")
	if err != nil || header.Size == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "Ebook file is missing or invalid")
	}
	var format models.Format
	switch strings.ToLower(filepath.Ext(header.Filename)) {
	case ".pdf":
		format = models.FormatPDF
	case ".epub":
		format = models.FormatEPUB
	default:
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid file type. Allowed types are: [pdf, epub]")
	}
	if raw := c.FormValue("genreIds"); raw != "" {
		var ids []int
		if err := json.Unmarshal([]byte(raw), &ids); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "Invalid genreIds")
		}
	}
	file, err := header.Open()
	if err != nil {
		return err
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		return err
	}

	language := c.FormValue("language")
	if language == "" {
		language = "Unknown"
	}
	userID := userOf(c)
	s.mu.Lock()
	defer s.mu.Unlock()
	id := 1
	for existing := range s.books {
		if existing >= id {
			id = existing + 1
		}
	}
	meta := models.Book{
		ID:       id,
		Name:     title,
		Language: language,
		Format:   format,
		Authors:  strings.TrimSpace(c.FormValue("author")),
		UserID:   userID,
	}
	s.books[id] = storedBook{
		meta:          meta,
		data:          data,
		contentType:   contentTypeOf(format),
		publisher:     strings.TrimSpace(c.FormValue("publisher")),
		publishedDate: c.FormValue("published_date"),
	}
	return c.JSON(http.StatusCreated, meta)
}

func (s *Server) myUploads(c echo.Context) error {
	userID := userOf(c)
	s.mu.Lock()
	defer s.mu.Unlock()
	mine := s.sortedBooks(func(b storedBook) bool { return b.meta.UserID == userID })
	out := make([]models.Upload, 0, len(mine))
	for _, b := range mine {
		out = append(out, models.Upload{
			ID:            b.meta.ID,
			Title:         b.meta.Name,
			Authors:       b.meta.Authors,
			Publisher:     b.publisher,
			Genres:        b.genres,
			PublishedDate: b.publishedDate,
			Language:      b.meta.Language,
			Format:        b.meta.Format,
		})
	}
	return c.JSON(http.StatusOK, out)
}

// ownedBook loads a book the caller uploaded. The lock must be held.
func (s *Server) ownedBook(c echo.Context, action string) (int, storedBook, error) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		return 0, storedBook{}, err
	}
	book, ok := s.books[id]
	if !ok {
		return 0, storedBook{}, echo.NewHTTPError(http.StatusNotFound, "Book not found")
	}
	if book.meta.UserID != userOf(c) {
		return 0, storedBook{}, echo.NewHTTPError(http.StatusForbidden, "Forbidden: You do not have permission to "+action+" this book")
	}
	return id, book, nil
}

func (s *Server) updateBook(c echo.Context) error {
	var req models.BookUpdate
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.Name) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request data")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	id, book, err := s.ownedBook(c, "update")
	if err != nil {
		return err
	}
	book.meta.Name = req.Name
	book.meta.Language = req.Language
	if req.Format != "" {
		book.meta.Format = req.Format
	}
	s.books[id] = book
	return c.JSON(http.StatusOK, messageJSON{Message: "Book updated successfully"})
}

func (s *Server) deleteBook(c echo.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, _, err := s.ownedBook(c, "delete")
	if err != nil {
		return err
	}
	delete(s.books, id)
	for _, entries := range s.library {
		delete(entries, id)
	}
	for _, col := range s.collections {
		col.books = without(col.books, id)
	}
	return c.JSON(http.StatusOK, messageJSON{Message: "Book deleted successfully"})
}

func (s *Server) listCollections(c echo.Context) error {
	userID := userOf(c)
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []collectionJSON{}
	for _, col := range s.collections {
		if col.userID != userID {
			continue
		}
		out = append(out, collectionJSON{
			ID:          col.id,
			Name:        col.name,
			CreatedDate: col.created.Format(time.RFC3339),
			UserID:      col.userID,
			BookCount:   len(col.books),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return c.JSON(http.StatusOK, out)
}

func (s *Server) createCollection(c echo.Context) error {
	var req models.CollectionRequest
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.Name) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "Collection name is required")
	}
	userID := userOf(c)
	s.mu.Lock()
	defer s.mu.Unlock()
	col := s.addCollection(userID, strings.TrimSpace(req.Name))
	return c.JSON(http.StatusCreated, collectionJSON{
		ID:          col.id,
		Name:        col.name,
		CreatedDate: col.created.Format(time.RFC3339),
		UserID:      col.userID,
	})
}

// ownedCollection loads a collection of the caller. The lock must be held.
func (s *Server) ownedCollection(c echo.Context) (*collection, error) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "Invalid collection ID")
	}
	col, ok := s.collections[id]
	if !ok || col.userID != userOf(c) {
		return nil, echo.NewHTTPError(http.StatusNotFound, "Collection not found")
	}
	return col, nil
}

func (s *Server) deleteCollection(c echo.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	col, err := s.ownedCollection(c)
	if err != nil {
		return err
	}
	delete(s.collections, col.id)
	return c.JSON(http.StatusOK, messageJSON{Message: "Collection deleted successfully"})
}

func (s *Server) collectionBooks(c echo.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	col, err := s.ownedCollection(c)
	if err != nil {
		return err
	}
	out := make([]models.Book, 0, len(col.books))
	for _, id := range col.books {
		if b, ok := s.books[id]; ok {
			out = append(out, b.meta)
		}
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) addToCollection(c echo.Context) error {
	bookID, err := parseID(c.Param("bookId"))
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	col, err := s.ownedCollection(c)
	if err != nil {
		return err
	}
	if _, ok := s.books[bookID]; !ok {
		return echo.NewHTTPError(http.StatusNotFound, "Book not found")
	}
	col.books = append(without(col.books, bookID), bookID)
	return c.JSON(http.StatusOK, messageJSON{Message: "Book added to collection successfully"})
}

func (s *Server) removeFromCollection(c echo.Context) error {
	bookID, err := parseID(c.Param("bookId"))
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	col, err := s.ownedCollection(c)
	if err != nil {
		return err
	}
	col.books = without(col.books, bookID)
	return c.JSON(http.StatusOK, messageJSON{Message: "Book removed from collection successfully"})
}

func without(ids []int, id int) []int {
	out := ids[:0]
	for _, existing := range ids {
		if existing != id {
			out = append(out, existing)
		}
	}
	return out
}
