package apitest

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/drallgood/shelf-reader/internal/models"
)

type libraryEntryJSON struct {
	BookID       int           `json:"bookId"`
	Name         string        `json:"name"`
	Language     string        `json:"language,omitempty"`
	Format       models.Format `json:"format"`
	Authors      string        `json:"authors,omitempty"`
	Progress     string        `json:"progress"`
	UserRating   *int          `json:"userRating"`
	LastReadDate string        `json:"lastReadDate,omitempty"`
}

type ratingJSON struct {
	Message       string  `json:"message"`
	UserRating    int     `json:"userRating"`
	AverageRating float64 `json:"averageRating"`
	TotalRatings  int     `json:"totalRatings"`
}

type messageJSON struct {
	Message string `json:"message"`
}

func userOf(c echo.Context) int {
	id, _ := c.Get("userID").(int)
	return id
}

func (s *Server) login(c echo.Context) error {
	var req models.LoginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[req.Username]
	if !ok || u.password != req.Password {
		return echo.NewHTTPError(http.StatusUnauthorized, "Invalid username or password")
	}
	token := Token
	for t, id := range s.tokens {
		if id == u.id {
			token = t
			break
		}
	}
	return c.JSON(http.StatusOK, models.LoginResponse{
		Token:    token,
		Type:     "Bearer",
		UserID:   u.id,
		Username: req.Username,
	})
}

func (s *Server) getBook(c echo.Context) error {
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
	return c.JSON(http.StatusOK, book.meta)
}

func (s *Server) readBook(c echo.Context) error {
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
	return c.Blob(http.StatusOK, book.contentType, book.data)
}

func (s *Server) getRating(c echo.Context) error {
	id, err := parseID(c.Param("id"))
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.books[id]; !ok {
		return echo.NewHTTPError(http.StatusNotFound, "Book not found")
	}
	return c.JSON(http.StatusOK, s.summary(id))
}

func (s *Server) getLibrary(c echo.Context) error {
	userID := userOf(c)
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]libraryEntryJSON, 0, len(s.library[userID]))
	for bookID, entry := range s.library[userID] {
		book := s.books[bookID].meta
		item := libraryEntryJSON{
			BookID:       bookID,
			Name:         book.Name,
			Language:     book.Language,
			Format:       book.Format,
			Authors:      book.Authors,
			Progress:     entry.progress,
			LastReadDate: entry.lastRead.Format(time.RFC3339),
		}
		if r, ok := s.ratings[bookID][userID]; ok {
			rating := r
			item.UserRating = &rating
		}
		out = append(out, item)
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) addToLibrary(c echo.Context) error {
	id, err := parseID(c.Param("id"))
	if err != nil {
		return err
	}
	userID := userOf(c)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.books[id]; !ok {
		return echo.NewHTTPError(http.StatusNotFound, "Book not found")
	}
	entries := s.entriesOf(userID)
	if _, ok := entries[id]; !ok {
		entries[id] = &libraryEntry{progress: "0", lastRead: time.Now()}
	}
	return c.JSON(http.StatusOK, messageJSON{Message: "Book added to library"})
}

func (s *Server) removeFromLibrary(c echo.Context) error {
	id, err := parseID(c.Param("id"))
	if err != nil {
		return err
	}
	userID := userOf(c)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.library[userID][id]; !ok {
		return echo.NewHTTPError(http.StatusNotFound, "Book not in library")
	}
	delete(s.library[userID], id)
	delete(s.ratings[id], userID)
	return c.JSON(http.StatusOK, messageJSON{Message: "Book removed from library"})
}

func (s *Server) updateProgress(c echo.Context) error {
	id, err := parseID(c.Param("id"))
	if err != nil {
		return err
	}
	var req models.ProgressUpdate
	if err := c.Bind(&req); err != nil || req.Progress == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "Progress is required")
	}
	userID := userOf(c)
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.library[userID][id]
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "Book not in library")
	}
	entry.progress = req.Progress
	entry.lastRead = time.Now()
	return c.JSON(http.StatusOK, messageJSON{Message: "Progress updated"})
}

func (s *Server) updateRating(c echo.Context) error {
	id, err := parseID(c.Param("id"))
	if err != nil {
		return err
	}
	var req models.RatingUpdate
	if err := c.Bind(&req); err != nil || req.Rating < 1 || req.Rating > 5 {
		return echo.NewHTTPError(http.StatusBadRequest, "Rating must be between 1 and 5")
	}
	userID := userOf(c)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.library[userID][id]; !ok {
		return echo.NewHTTPError(http.StatusNotFound, "Book not in library")
	}
	if s.ratings[id] == nil {
		s.ratings[id] = map[int]int{}
	}
	s.ratings[id][userID] = req.Rating
	summary := s.summary(id)
	return c.JSON(http.StatusOK, ratingJSON{
		Message:       "Rating updated",
		UserRating:    req.Rating,
		AverageRating: summary.AverageRating,
		TotalRatings:  summary.TotalRatings,
	})
}

func (s *Server) getBookmarks(c echo.Context) error {
	id, err := parseID(c.QueryParam("bookId"))
	if err != nil {
		return err
	}
	userID := userOf(c)
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.Bookmark{}
	for _, b := range s.bookmarks[userID] {
		if b.BookID == id {
			out = append(out, b)
		}
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) createBookmark(c echo.Context) error {
	var req models.Bookmark
	if err := c.Bind(&req); err != nil || req.BookID <= 0 || req.Location == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "bookId and location are required")
	}
	userID := userOf(c)
	s.mu.Lock()
	defer s.mu.Unlock()
	req.CreatedDate = time.Now().Format(time.RFC3339)
	s.bookmarks[userID] = append(s.bookmarks[userID], req)
	return c.JSON(http.StatusOK, messageJSON{Message: "Bookmark added successfully"})
}
