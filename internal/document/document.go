// Package document models the two document types the reader can open.
// A PDF has a fixed page count. An EPUB is reflowable, so its positions are
// generated locations spaced every N characters of text.
package document

import (
	"errors"
	"fmt"

	"github.com/gabriel-vasile/mimetype"

	"github.com/drallgood/shelf-reader/internal/models"
)

const (
	mimePDF  = "application/pdf"
	mimeEPUB = "application/epub+zip"
)

var (
	// ErrUnsupportedFormat is returned when the bytes are neither PDF nor EPUB
	ErrUnsupportedFormat = errors.New("unsupported document format")
	// ErrBadLocator is returned by Resolve for strings it cannot map to a position
	ErrBadLocator = errors.New("unrecognized locator")
)

// Document is an open book. Positions are 1-based and Total is 0 while the
// position space is still unknown.
type Document interface {
	Format() models.Format
	Total() int
	// Describe renders a position for humans, e.g. "Page 3 of 200"
	Describe(pos int) string
	// Locator renders a position as a bookmark location string
	Locator(pos int) string
	// Resolve maps a bookmark location string back to a position
	Resolve(locator string) (int, error)
}

// DetectFormat sniffs the document bytes
func DetectFormat(data []byte) (models.Format, error) {
	mtype := mimetype.Detect(data)
	switch {
	case mtype.Is(mimePDF):
		return models.FormatPDF, nil
	case mtype.Is(mimeEPUB):
		return models.FormatEPUB, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, mtype.String())
	}
}

// Open builds the document model for the given format. An EPUB is returned
// without locations; call GenerateLocations before using its positions.
func Open(format models.Format, data []byte, locationChars int) (Document, error) {
	switch format {
	case models.FormatPDF:
		return OpenPDF(data)
	case models.FormatEPUB:
		return OpenEPUB(data, locationChars)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
}
