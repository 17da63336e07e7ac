package document

import (
	"bytes"
	"fmt"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/drallgood/shelf-reader/internal/models"
	"github.com/drallgood/shelf-reader/internal/progress"
)

func init() {
	// pdfcpu would otherwise create a config dir under the user's home
	api.DisableConfigDir()
}

// PDF is a fixed-layout document whose positions are page numbers
type PDF struct {
	pages int
}

// OpenPDF reads the page count of a PDF
func OpenPDF(data []byte) (*PDF, error) {
	conf := model.NewDefaultConfiguration()
	pages, err := api.PageCount(bytes.NewReader(data), conf)
	if err != nil {
		return nil, fmt.Errorf("failed to read pdf: %w", err)
	}
	if pages <= 0 {
		return nil, fmt.Errorf("pdf has no pages")
	}
	return &PDF{pages: pages}, nil
}

// NewPDF returns a PDF model with a known page count
func NewPDF(pages int) *PDF {
	return &PDF{pages: pages}
}

func (p *PDF) Format() models.Format { return models.FormatPDF }

func (p *PDF) Total() int { return p.pages }

func (p *PDF) Describe(pos int) string {
	return fmt.Sprintf("Page %d of %d", progress.Clamp(pos, p.pages), p.pages)
}

func (p *PDF) Locator(pos int) string {
	return pageLocator(progress.Clamp(pos, p.pages))
}

// Resolve accepts "Page N" or a bare number. The result is clamped to the page range.
func (p *PDF) Resolve(locator string) (int, error) {
	n, ok := parseNumbered(locator, "page")
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrBadLocator, locator)
	}
	return progress.Clamp(n, p.pages), nil
}
