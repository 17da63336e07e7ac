package bookshelf

import (
	"context"
	"io"

	"github.com/drallgood/shelf-reader/internal/models"
)

// ClientInterface defines the bookshelf API surface used by the library services.
// This allows for mocking in tests.
type ClientInterface interface {
	Login(ctx context.Context, username, password string) (*models.LoginResponse, error)
	GetBook(ctx context.Context, bookID int) (*models.Book, error)
	ReadBook(ctx context.Context, bookID int) (io.ReadCloser, string, error)
	GetLibrary(ctx context.Context) ([]models.LibraryEntry, error)
	AddToLibrary(ctx context.Context, bookID int) error
	RemoveFromLibrary(ctx context.Context, bookID int) error
	UpdateProgress(ctx context.Context, bookID int, progress string) error
	UpdateRating(ctx context.Context, bookID int, rating int) (*models.RatingResult, error)
	GetBookRating(ctx context.Context, bookID int) (*models.RatingSummary, error)
	GetBookmarks(ctx context.Context, bookID int) ([]models.Bookmark, error)
	CreateBookmark(ctx context.Context, bookmark models.Bookmark) error
}

// Ensure that the Client implements ClientInterface
var _ ClientInterface = (*Client)(nil)
