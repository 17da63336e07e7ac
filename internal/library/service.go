// Package library wraps the bookshelf client with the user library rules the
// reader depends on: add-if-absent before writes and fail-open progress reads.
package library

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/drallgood/shelf-reader/internal/api/bookshelf"
	"github.com/drallgood/shelf-reader/internal/logger"
	"github.com/drallgood/shelf-reader/internal/models"
	"github.com/drallgood/shelf-reader/internal/progress"
)

var (
	// ErrNotInLibrary is returned by Entry when the user's library lacks the book
	ErrNotInLibrary = errors.New("book is not in the library")
	// ErrInvalidRating is returned for ratings outside 1..5
	ErrInvalidRating = errors.New("rating must be between 1 and 5")
)

// Rating is what the reader shows next to a book
type Rating struct {
	// User is the user's own rating, 0 when unrated
	User    int
	Summary models.RatingSummary
}

// Service implements the library operations of the reader
type Service struct {
	client bookshelf.ClientInterface
	logger *logger.Logger
}

// NewService creates a library service
func NewService(client bookshelf.ClientInterface, log *logger.Logger) *Service {
	if log == nil {
		log = logger.Get()
	}
	return &Service{
		client: client,
		logger: log.Component("library"),
	}
}

// Entry returns the user's library entry for a book
func (s *Service) Entry(ctx context.Context, bookID int) (*models.LibraryEntry, error) {
	entries, err := s.client.GetLibrary(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch library: %w", err)
	}
	for i := range entries {
		if entries[i].BookID == bookID {
			return &entries[i], nil
		}
	}
	return nil, bookshelf.WithBookID(ErrNotInLibrary, bookID)
}

// EnsureInLibrary adds the book to the library when it is absent. When the
// library cannot be listed, membership is unknown and the add is skipped so
// the caller's write still goes ahead.
func (s *Service) EnsureInLibrary(ctx context.Context, bookID int) error {
	_, err := s.Entry(ctx, bookID)
	switch {
	case err == nil:
		return nil
	case !errors.Is(err, ErrNotInLibrary):
		s.logger.Warn("Could not check library membership", map[string]interface{}{
			"book_id": bookID,
			"error":   err.Error(),
		})
		return nil
	}

	if err := s.client.AddToLibrary(ctx, bookID); err != nil {
		return fmt.Errorf("failed to add book to library: %w", err)
	}
	s.logger.Info("Added book to library", map[string]interface{}{
		"book_id": bookID,
	})
	return nil
}

// SavedPercent returns the persisted progress of a book. It fails open: any
// fetch error, missing entry or malformed value yields 0.
func (s *Service) SavedPercent(ctx context.Context, bookID int) progress.Percent {
	entry, err := s.Entry(ctx, bookID)
	if err != nil {
		if !errors.Is(err, ErrNotInLibrary) {
			s.logger.Warn("Failed to load saved progress, starting from the beginning", map[string]interface{}{
				"book_id": bookID,
				"error":   err.Error(),
			})
		}
		return 0
	}

	p, err := progress.Parse(entry.Progress)
	if err != nil {
		if entry.Progress != "" {
			s.logger.Warn("Ignoring malformed saved progress", map[string]interface{}{
				"book_id":  bookID,
				"progress": entry.Progress,
			})
		}
		return 0
	}
	return p
}

// SaveProgress makes sure the book is in the library, then writes the percentage
func (s *Service) SaveProgress(ctx context.Context, bookID int, p progress.Percent) error {
	if err := s.EnsureInLibrary(ctx, bookID); err != nil {
		return err
	}
	if err := s.client.UpdateProgress(ctx, bookID, p.String()); err != nil {
		return fmt.Errorf("failed to save progress: %w", err)
	}
	return nil
}

// Rate records a 1-5 rating, adding the book to the library first, and
// returns the aggregate from the write call
func (s *Service) Rate(ctx context.Context, bookID, rating int) (*models.RatingResult, error) {
	if rating < 1 || rating > 5 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidRating, rating)
	}
	if err := s.EnsureInLibrary(ctx, bookID); err != nil {
		return nil, err
	}
	result, err := s.client.UpdateRating(ctx, bookID, rating)
	if err != nil {
		return nil, fmt.Errorf("failed to submit rating: %w", err)
	}
	if result.UserRating == 0 {
		result.UserRating = rating
	}
	s.logger.Info("Rating submitted", map[string]interface{}{
		"book_id":        bookID,
		"rating":         rating,
		"average_rating": result.AverageRating,
		"total_ratings":  result.TotalRatings,
	})
	return result, nil
}

// Rating loads the user's rating and the aggregate concurrently. A missing
// library entry means the user has not rated the book.
func (s *Service) Rating(ctx context.Context, bookID int) (*Rating, error) {
	var rating Rating
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		entry, err := s.Entry(gctx, bookID)
		if err != nil {
			if errors.Is(err, ErrNotInLibrary) {
				return nil
			}
			return err
		}
		rating.User = entry.UserRating
		return nil
	})
	g.Go(func() error {
		summary, err := s.client.GetBookRating(gctx, bookID)
		if err != nil {
			return fmt.Errorf("failed to load rating: %w", err)
		}
		rating.Summary = *summary
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &rating, nil
}

// Remove deletes the book from the user's library
func (s *Service) Remove(ctx context.Context, bookID int) error {
	if err := s.client.RemoveFromLibrary(ctx, bookID); err != nil {
		return fmt.Errorf("failed to remove book: %w", err)
	}
	return nil
}

// Bookmarks lists the user's bookmarks of a book
func (s *Service) Bookmarks(ctx context.Context, bookID int) ([]models.Bookmark, error) {
	bookmarks, err := s.client.GetBookmarks(ctx, bookID)
	if err != nil {
		return nil, fmt.Errorf("failed to load bookmarks: %w", err)
	}
	return bookmarks, nil
}

// AddBookmark stores a named bookmark at a location string
func (s *Service) AddBookmark(ctx context.Context, bookID int, name, location string) error {
	err := s.client.CreateBookmark(ctx, models.Bookmark{
		Name:     name,
		Location: location,
		BookID:   bookID,
	})
	if err != nil {
		return fmt.Errorf("failed to add bookmark: %w", err)
	}
	return nil
}
