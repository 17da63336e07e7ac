// Package models holds the wire schemas of the bookshelf REST API.
// Every response is validated against these types at the client boundary.
package models

import (
	"fmt"
	"strings"
)

// Format is the document model of a book
type Format string

const (
	FormatPDF  Format = "PDF"
	FormatEPUB Format = "EPUB"
)

// ParseFormat normalizes a backend format string
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToUpper(strings.TrimSpace(s))) {
	case FormatPDF:
		return FormatPDF, nil
	case FormatEPUB:
		return FormatEPUB, nil
	default:
		return "", fmt.Errorf("unsupported format: %q", s)
	}
}

// Continuous reports whether navigation in this format produces a stream of
// relocation events (reflowable EPUB) rather than discrete page turns.
func (f Format) Continuous() bool {
	return f == FormatEPUB
}

// Extension is the file extension used for downloaded documents
func (f Format) Extension() string {
	switch f {
	case FormatPDF:
		return ".pdf"
	case FormatEPUB:
		return ".epub"
	default:
		return ".bin"
	}
}

func (f Format) String() string {
	return string(f)
}

// Book is the response of GET /books/{id} and one element of the catalog
// listings. UserID is the uploader.
type Book struct {
	ID       int    `json:"bookId" validate:"required,gt=0"`
	Name     string `json:"name"`
	Language string `json:"language,omitempty"`
	Format   Format `json:"format" validate:"required,oneof=PDF EPUB"`
	Authors  string `json:"authors,omitempty"`
	UserID   int    `json:"userId,omitempty"`
}

// LibraryEntry is one element of GET /library
type LibraryEntry struct {
	BookID       int    `json:"bookId" validate:"required,gt=0"`
	Name         string `json:"name,omitempty"`
	Format       Format `json:"format,omitempty" validate:"omitempty,oneof=PDF EPUB"`
	Authors      string `json:"authors,omitempty"`
	Progress     string `json:"progress,omitempty"`
	UserRating   int    `json:"userRating,omitempty" validate:"min=0,max=5"`
	LastReadDate string `json:"lastReadDate,omitempty"`
}

// ProgressUpdate is the body of PUT /library/{id}/progress
type ProgressUpdate struct {
	Progress string `json:"progress" validate:"required"`
}

// RatingUpdate is the body of PUT /library/{id}/rating
type RatingUpdate struct {
	Rating int `json:"rating" validate:"min=1,max=5"`
}

// RatingSummary is the aggregate returned by GET /books/{id}/rating
type RatingSummary struct {
	AverageRating float64 `json:"averageRating" validate:"min=0,max=5"`
	TotalRatings  int     `json:"totalRatings" validate:"min=0"`
}

// RatingResult is the response of PUT /library/{id}/rating
type RatingResult struct {
	RatingSummary
	UserRating int `json:"userRating,omitempty" validate:"min=0,max=5"`
}

// Bookmark is one element of GET /bookmarks and the body of POST /bookmarks.
// Location is "Page N" for PDF and an opaque positional reference for EPUB.
type Bookmark struct {
	Name        string `json:"bookmarkName"`
	Location    string `json:"location" validate:"required"`
	BookID      int    `json:"bookId,omitempty"`
	CreatedDate string `json:"createdDate,omitempty"`
}

// LoginRequest is the body of POST /auth/login
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse is the response of POST /auth/login
type LoginResponse struct {
	Token    string `json:"token" validate:"required"`
	Type     string `json:"type,omitempty"`
	UserID   int    `json:"userId,omitempty"`
	Username string `json:"username,omitempty"`
}

// ErrorResponse is the error body the backend sends with non-2xx statuses
type ErrorResponse struct {
	Error string `json:"error"`
}
