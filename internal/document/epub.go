package document

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/url"
	"path"
	"sort"
	"strings"
	"sync"
	"unicode/utf8"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/drallgood/shelf-reader/internal/models"
	"github.com/drallgood/shelf-reader/internal/progress"
)

// DefaultLocationChars is the location spacing used when none is configured
const DefaultLocationChars = 1024

// Section is one spine item with its extracted text
type Section struct {
	Href  string
	Title string
	Text  string
}

// Location is one generated position: a character offset inside a section
type Location struct {
	Section int
	Offset  int
}

// EPUB is a reflowable document. Its positions are generated locations, so
// Total reports 0 until GenerateLocations has run.
type EPUB struct {
	Title    string
	Sections []Section

	chars int

	mu        sync.RWMutex
	locations []Location
}

type container struct {
	Rootfiles []struct {
		FullPath  string `xml:"full-path,attr"`
		MediaType string `xml:"media-type,attr"`
	} `xml:"rootfiles>rootfile"`
}

type opfPackage struct {
	Metadata struct {
		Title []string `xml:"title"`
	} `xml:"metadata"`
	Manifest struct {
		Item []struct {
			ID        string `xml:"id,attr"`
			Href      string `xml:"href,attr"`
			MediaType string `xml:"media-type,attr"`
		} `xml:"item"`
	} `xml:"manifest"`
	Spine struct {
		Itemref []struct {
			Idref  string `xml:"idref,attr"`
			Linear string `xml:"linear,attr"`
		} `xml:"itemref"`
	} `xml:"spine"`
}

// OpenEPUB parses the container, package document and spine of an EPUB and
// extracts the text of every spine item. Locations are not generated yet.
func OpenEPUB(data []byte, locationChars int) (*EPUB, error) {
	if locationChars <= 0 {
		locationChars = DefaultLocationChars
	}
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to open epub: %w", err)
	}
	files := make(map[string]*zip.File, len(zr.File))
	for _, f := range zr.File {
		files[f.Name] = f
	}

	opfPath, err := findPackagePath(files, zr.File)
	if err != nil {
		return nil, err
	}
	raw, err := readZipFile(files[opfPath])
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", opfPath, err)
	}
	var pkg opfPackage
	if err := xml.Unmarshal(raw, &pkg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", opfPath, err)
	}

	// Manifest hrefs are relative to the package document
	basePath := path.Dir(opfPath)
	hrefs := make(map[string]string, len(pkg.Manifest.Item))
	for _, item := range pkg.Manifest.Item {
		href := item.Href
		if unescaped, err := url.PathUnescape(href); err == nil {
			href = unescaped
		}
		if basePath != "." {
			href = path.Join(basePath, href)
		}
		hrefs[item.ID] = href
	}

	doc := &EPUB{chars: locationChars}
	if len(pkg.Metadata.Title) > 0 {
		doc.Title = strings.TrimSpace(pkg.Metadata.Title[0])
	}
	for _, ref := range pkg.Spine.Itemref {
		href, ok := hrefs[ref.Idref]
		if !ok {
			continue
		}
		f, ok := files[href]
		if !ok {
			continue
		}
		content, err := readZipFile(f)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", href, err)
		}
		title, text := extractText(content)
		doc.Sections = append(doc.Sections, Section{Href: href, Title: title, Text: text})
	}
	if len(doc.Sections) == 0 {
		return nil, fmt.Errorf("epub spine is empty")
	}
	return doc, nil
}

func findPackagePath(files map[string]*zip.File, ordered []*zip.File) (string, error) {
	if f, ok := files["META-INF/container.xml"]; ok {
		raw, err := readZipFile(f)
		if err != nil {
			return "", fmt.Errorf("failed to read container.xml: %w", err)
		}
		var c container
		if err := xml.Unmarshal(raw, &c); err != nil {
			return "", fmt.Errorf("failed to parse container.xml: %w", err)
		}
		for _, rf := range c.Rootfiles {
			if _, ok := files[rf.FullPath]; ok {
				return rf.FullPath, nil
			}
		}
	}
	// Some files in the wild ship without a usable container.xml
	for _, f := range ordered {
		if path.Ext(f.Name) == ".opf" {
			return f.Name, nil
		}
	}
	return "", fmt.Errorf("no package document found in epub")
}

func readZipFile(f *zip.File) ([]byte, error) {
	if f == nil {
		return nil, fmt.Errorf("missing file")
	}
	r, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

// extractText returns the document title and its visible body text with
// whitespace collapsed. Block elements are separated by a single space.
func extractText(content []byte) (string, string) {
	z := html.NewTokenizer(bytes.NewReader(content))
	var (
		title   string
		heading strings.Builder
		body    strings.Builder
		skip    int
		inTitle bool
		inHead  bool
	)

	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			if title == "" {
				title = collapse(heading.String())
			}
			return title, collapse(body.String())
		case html.StartTagToken, html.EndTagToken:
			name, _ := z.TagName()
			a := atom.Lookup(name)
			start := tt == html.StartTagToken
			switch a {
			case atom.Script, atom.Style:
				if start {
					skip++
				} else if skip > 0 {
					skip--
				}
			case atom.Title:
				inTitle = start
			case atom.H1, atom.H2, atom.H3:
				inHead = start && heading.Len() == 0
			}
			if isBlock(a) {
				body.WriteByte(' ')
			}
		case html.SelfClosingTagToken:
			name, _ := z.TagName()
			if isBlock(atom.Lookup(name)) {
				body.WriteByte(' ')
			}
		case html.TextToken:
			if skip > 0 {
				continue
			}
			text := z.Text()
			if inTitle {
				if title == "" {
					title = collapse(string(text))
				}
				continue
			}
			if inHead {
				heading.Write(text)
			}
			body.Write(text)
		}
	}
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func isBlock(a atom.Atom) bool {
	switch a {
	case atom.P, atom.Div, atom.Br, atom.Li, atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6,
		atom.Blockquote, atom.Section, atom.Article, atom.Tr, atom.Td, atom.Th, atom.Pre, atom.Hr:
		return true
	}
	return false
}

// GenerateLocations splits the text into locations every locationChars
// characters. Every non-empty section starts a new location. It returns the
// new total, which stays at least 1 for an EPUB without any text.
func (e *EPUB) GenerateLocations(ctx context.Context) (int, error) {
	var locations []Location
	for i, section := range e.Sections {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		n := utf8.RuneCountInString(section.Text)
		for offset := 0; offset < n; offset += e.chars {
			locations = append(locations, Location{Section: i, Offset: offset})
		}
	}
	if len(locations) == 0 {
		locations = append(locations, Location{})
	}

	e.mu.Lock()
	e.locations = locations
	e.mu.Unlock()
	return len(locations), nil
}

func (e *EPUB) Format() models.Format { return models.FormatEPUB }

// Total is the number of generated locations, 0 before generation
func (e *EPUB) Total() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.locations)
}

// LocationAt returns the location for a 1-based position
func (e *EPUB) LocationAt(pos int) (Location, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if len(e.locations) == 0 {
		return Location{}, false
	}
	return e.locations[progress.Clamp(pos, len(e.locations))-1], true
}

func (e *EPUB) Describe(pos int) string {
	total := e.Total()
	if total == 0 {
		return "Locations not generated"
	}
	pos = progress.Clamp(pos, total)
	desc := fmt.Sprintf("Location %d of %d", pos, total)
	if loc, ok := e.LocationAt(pos); ok {
		if title := e.Sections[loc.Section].Title; title != "" {
			desc += " (" + title + ")"
		}
	}
	return desc
}

// Excerpt returns up to n characters of text starting at a position
func (e *EPUB) Excerpt(pos, n int) string {
	loc, ok := e.LocationAt(pos)
	if !ok {
		return ""
	}
	runes := []rune(e.Sections[loc.Section].Text)
	end := loc.Offset + n
	if end > len(runes) {
		end = len(runes)
	}
	if loc.Offset >= end {
		return ""
	}
	return string(runes[loc.Offset:end])
}

// Locator renders a position as a CFI. Before generation it falls back to
// "Location N".
func (e *EPUB) Locator(pos int) string {
	loc, ok := e.LocationAt(pos)
	if !ok {
		return locationLocator(pos)
	}
	return cfiLocator(loc.Section, loc.Offset)
}

// Resolve accepts a CFI as produced by Locator, "Location N" or a bare number
func (e *EPUB) Resolve(locator string) (int, error) {
	e.mu.RLock()
	locations := e.locations
	e.mu.RUnlock()
	if len(locations) == 0 {
		return 0, fmt.Errorf("%w: locations not generated", ErrBadLocator)
	}

	if section, offset, ok := parseCFI(locator); ok {
		// last location at or before (section, offset)
		i := sort.Search(len(locations), func(i int) bool {
			l := locations[i]
			return l.Section > section || (l.Section == section && l.Offset > offset)
		})
		if i == 0 {
			return 1, nil
		}
		return i, nil
	}
	if n, ok := parseNumbered(locator, "location"); ok {
		return progress.Clamp(n, len(locations)), nil
	}
	return 0, fmt.Errorf("%w: %q", ErrBadLocator, locator)
}
