package bookshelf

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drallgood/shelf-reader/internal/logger"
	"github.com/drallgood/shelf-reader/internal/models"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(server.URL, "test-token", WithLogger(logger.Nop())), server
}

func TestNewClient(t *testing.T) {
	client := NewClient("http://example.com/", "test-token")
	assert.NotNil(t, client)
	assert.Equal(t, "http://example.com", client.baseURL)
	assert.Equal(t, "test-token", client.token)
	assert.Equal(t, defaultTimeout, client.client.Timeout)

	client = NewClient("http://example.com", "", WithTimeout(5*time.Second))
	assert.Equal(t, 5*time.Second, client.client.Timeout)
}

func TestLogin(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/auth/login", r.URL.Path)
		assert.Empty(t, r.Header.Get("Authorization"))

		var req models.LoginRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if req.Password != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"Invalid username or password"}`))
			return
		}
		_ = json.NewEncoder(w).Encode(models.LoginResponse{Token: "new-token", Type: "Bearer", UserID: 7, Username: req.Username})
	})

	resp, err := client.Login(context.Background(), "alice", "secret")
	require.NoError(t, err)
	assert.Equal(t, "new-token", resp.Token)
	assert.Equal(t, 7, resp.UserID)
	assert.Equal(t, "new-token", client.token)

	_, err = client.Login(context.Background(), "alice", "wrong")
	require.Error(t, err)
	assert.True(t, IsAuthFailure(err))
	assert.Contains(t, err.Error(), "Invalid username or password")

	_, err = client.Login(context.Background(), "", "")
	assert.Error(t, err)
}

func TestGetBook(t *testing.T) {
	tests := []struct {
		name        string
		handler     http.HandlerFunc
		expected    *models.Book
		expectError error
		notFound    bool
	}{
		{
			name: "successful response",
			handler: func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/api/books/12", r.URL.Path)
				assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
				_, _ = w.Write([]byte(`{"bookId":12,"name":"Dune","format":"epub","authors":"Frank Herbert"}`))
			},
			expected: &models.Book{ID: 12, Name: "Dune", Format: models.FormatEPUB, Authors: "Frank Herbert"},
		},
		{
			name: "not found",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusNotFound)
			},
			notFound: true,
		},
		{
			name: "unknown format",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"bookId":12,"name":"Dune","format":"MOBI"}`))
			},
			expectError: ErrMalformedResponse,
		},
		{
			name: "invalid json",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"bookId":`))
			},
			expectError: ErrMalformedResponse,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, _ := newTestClient(t, tt.handler)
			book, err := client.GetBook(context.Background(), 12)

			switch {
			case tt.notFound:
				require.Error(t, err)
				assert.True(t, IsNotFound(err))
			case tt.expectError != nil:
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.expectError)
			default:
				require.NoError(t, err)
				assert.Equal(t, tt.expected, book)
			}
			if err != nil {
				id, ok := GetBookID(err)
				assert.True(t, ok)
				assert.Equal(t, 12, id)
			}
		})
	}
}

func TestGetBookIsCached(t *testing.T) {
	calls := 0
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		_, _ = w.Write([]byte(`{"bookId":3,"name":"Manual","format":"PDF"}`))
	})

	for i := 0; i < 3; i++ {
		book, err := client.GetBook(context.Background(), 3)
		require.NoError(t, err)
		assert.Equal(t, models.FormatPDF, book.Format)
	}
	assert.Equal(t, 1, calls)

	client.clock = func() time.Time { return time.Now().Add(time.Hour) }
	_, err := client.GetBook(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestGetBookCacheDisabled(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		_, _ = w.Write([]byte(`{"bookId":3,"name":"Manual","format":"PDF"}`))
	}))
	t.Cleanup(server.Close)
	client := NewClient(server.URL, "test-token", WithLogger(logger.Nop()), WithBookCacheTTL(0))

	for i := 0; i < 2; i++ {
		_, err := client.GetBook(context.Background(), 3)
		require.NoError(t, err)
	}
	assert.Equal(t, 2, calls)
}

func TestReadBook(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/books/read/5", r.URL.Path)
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write([]byte("%PDF-1.4 body"))
	})

	body, contentType, err := client.ReadBook(context.Background(), 5)
	require.NoError(t, err)
	defer body.Close()
	data, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", contentType)
	assert.Equal(t, "%PDF-1.4 body", string(data))
}

func TestGetLibrary(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/library", r.URL.Path)
		_, _ = w.Write([]byte(`[
			{"bookId":1,"name":"A","format":"PDF","progress":"42%","userRating":null},
			{"bookId":2,"name":"B","format":"EPUB","progress":"0%","userRating":4},
			{"bookId":0,"name":"broken"},
			{"bookId":3,"name":"C","userRating":9}
		]`))
	})

	entries, err := client.GetLibrary(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "42%", entries[0].Progress)
	assert.Equal(t, 0, entries[0].UserRating)
	assert.Equal(t, models.FormatEPUB, entries[1].Format)
	assert.Equal(t, 4, entries[1].UserRating)
}

func TestLibraryWrites(t *testing.T) {
	type call struct {
		method string
		path   string
		body   string
	}
	var calls []call
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		calls = append(calls, call{r.Method, r.URL.Path, string(raw)})
		if r.URL.Path == "/api/library/9/rating" {
			_, _ = w.Write([]byte(`{"message":"ok","userRating":4,"averageRating":4.5,"totalRatings":2}`))
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	ctx := context.Background()

	require.NoError(t, client.AddToLibrary(ctx, 9))
	require.NoError(t, client.UpdateProgress(ctx, 9, "37%"))
	result, err := client.UpdateRating(ctx, 9, 4)
	require.NoError(t, err)
	require.NoError(t, client.RemoveFromLibrary(ctx, 9))

	assert.Equal(t, 4, result.UserRating)
	assert.Equal(t, 4.5, result.AverageRating)
	assert.Equal(t, 2, result.TotalRatings)

	require.Len(t, calls, 4)
	assert.Equal(t, call{http.MethodPost, "/api/library/9", ""}, calls[0])
	assert.Equal(t, http.MethodPut, calls[1].method)
	assert.JSONEq(t, `{"progress":"37%"}`, calls[1].body)
	assert.JSONEq(t, `{"rating":4}`, calls[2].body)
	assert.Equal(t, call{http.MethodDelete, "/api/library/9", ""}, calls[3])
}

func TestUpdateRatingRejectsOutOfRange(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	})
	for _, rating := range []int{0, 6, -1} {
		_, err := client.UpdateRating(context.Background(), 1, rating)
		assert.Error(t, err, "rating %d", rating)
	}
	assert.Error(t, client.UpdateProgress(context.Background(), 1, ""))
}

func TestGetBookRating(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/books/4/rating", r.URL.Path)
		_, _ = w.Write([]byte(`{"averageRating":3.25,"totalRatings":4}`))
	})
	summary, err := client.GetBookRating(context.Background(), 4)
	require.NoError(t, err)
	assert.Equal(t, &models.RatingSummary{AverageRating: 3.25, TotalRatings: 4}, summary)
}

func TestBookmarks(t *testing.T) {
	var posted models.Bookmark
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/bookmarks", r.URL.Path)
		switch r.Method {
		case http.MethodGet:
			assert.Equal(t, "8", r.URL.Query().Get("bookId"))
			_, _ = w.Write([]byte(`[{"bookmarkName":"ch1","location":"Page 3"},{"bookmarkName":"bad","location":""}]`))
		case http.MethodPost:
			require.NoError(t, json.NewDecoder(r.Body).Decode(&posted))
			_, _ = w.Write([]byte(`{"message":"Bookmark added successfully"}`))
		}
	})
	ctx := context.Background()

	bookmarks, err := client.GetBookmarks(ctx, 8)
	require.NoError(t, err)
	require.Len(t, bookmarks, 1)
	assert.Equal(t, models.Bookmark{Name: "ch1", Location: "Page 3", BookID: 8}, bookmarks[0])

	require.NoError(t, client.CreateBookmark(ctx, models.Bookmark{Name: "here", Location: "Page 10", BookID: 8}))
	assert.Equal(t, models.Bookmark{Name: "here", Location: "Page 10", BookID: 8}, posted)

	assert.Error(t, client.CreateBookmark(ctx, models.Bookmark{Name: "x", Location: "Page 1"}))
	assert.Error(t, client.CreateBookmark(ctx, models.Bookmark{Name: "x", BookID: 8}))
}

func TestNetworkFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	client := NewClient(server.URL, "test-token", WithLogger(logger.Nop()))
	server.Close()

	_, err := client.GetLibrary(context.Background())
	require.Error(t, err)
	assert.True(t, IsNetwork(err))
	assert.ErrorIs(t, err, ErrNetwork)
	assert.Zero(t, StatusCode(err))
}

func TestErrorHelpers(t *testing.T) {
	forbidden := &StatusError{Method: "GET", Endpoint: "/library", StatusCode: http.StatusForbidden}
	assert.True(t, IsAuthFailure(forbidden))
	assert.False(t, IsNotFound(forbidden))
	assert.Equal(t, "GET /library: unexpected status code 403", forbidden.Error())

	wrapped := WithBookID(forbidden, 5)
	assert.True(t, IsAuthFailure(wrapped))
	assert.Equal(t, wrapped, WithBookID(wrapped, 5))
	assert.Nil(t, WithBookID(nil, 5))

	id, ok := GetBookID(wrapped)
	assert.True(t, ok)
	assert.Equal(t, 5, id)

	_, ok = GetBookID(errors.New("plain"))
	assert.False(t, ok)
}
