package library

import (
	"context"
	"io"

	"github.com/stretchr/testify/mock"

	"github.com/drallgood/shelf-reader/internal/api/bookshelf"
	"github.com/drallgood/shelf-reader/internal/models"
)

type mockClient struct {
	mock.Mock
}

var _ bookshelf.ClientInterface = (*mockClient)(nil)

func (m *mockClient) Login(ctx context.Context, username, password string) (*models.LoginResponse, error) {
	args := m.Called(ctx, username, password)
	resp, _ := args.Get(0).(*models.LoginResponse)
	return resp, args.Error(1)
}

func (m *mockClient) GetBook(ctx context.Context, bookID int) (*models.Book, error) {
	args := m.Called(ctx, bookID)
	book, _ := args.Get(0).(*models.Book)
	return book, args.Error(1)
}

func (m *mockClient) ReadBook(ctx context.Context, bookID int) (io.ReadCloser, string, error) {
	args := m.Called(ctx, bookID)
	body, _ := args.Get(0).(io.ReadCloser)
	return body, args.String(1), args.Error(2)
}

func (m *mockClient) GetLibrary(ctx context.Context) ([]models.LibraryEntry, error) {
	args := m.Called(ctx)
	entries, _ := args.Get(0).([]models.LibraryEntry)
	return entries, args.Error(1)
}

func (m *mockClient) AddToLibrary(ctx context.Context, bookID int) error {
	return m.Called(ctx, bookID).Error(0)
}

func (m *mockClient) RemoveFromLibrary(ctx context.Context, bookID int) error {
	return m.Called(ctx, bookID).Error(0)
}

func (m *mockClient) UpdateProgress(ctx context.Context, bookID int, progress string) error {
	return m.Called(ctx, bookID, progress).Error(0)
}

func (m *mockClient) UpdateRating(ctx context.Context, bookID int, rating int) (*models.RatingResult, error) {
	args := m.Called(ctx, bookID, rating)
	result, _ := args.Get(0).(*models.RatingResult)
	return result, args.Error(1)
}

func (m *mockClient) GetBookRating(ctx context.Context, bookID int) (*models.RatingSummary, error) {
	args := m.Called(ctx, bookID)
	summary, _ := args.Get(0).(*models.RatingSummary)
	return summary, args.Error(1)
}

func (m *mockClient) GetBookmarks(ctx context.Context, bookID int) ([]models.Bookmark, error) {
	args := m.Called(ctx, bookID)
	bookmarks, _ := args.Get(0).([]models.Bookmark)
	return bookmarks, args.Error(1)
}

func (m *mockClient) CreateBookmark(ctx context.Context, bookmark models.Bookmark) error {
	return m.Called(ctx, bookmark).Error(0)
}
