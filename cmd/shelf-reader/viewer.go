package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/drallgood/shelf-reader/internal/document"
	"github.com/drallgood/shelf-reader/internal/library"
	"github.com/drallgood/shelf-reader/internal/models"
	"github.com/drallgood/shelf-reader/internal/reader"
)

const excerptChars = 280

var errOutOfRange = errors.New("position out of range")

// terminalViewer prints the current position of a document. Every successful
// Seek is reported to the session as navigation.
type terminalViewer struct {
	doc document.Document
	out io.Writer

	mu      sync.Mutex
	current int
	session *reader.Session
}

func newTerminalViewer(doc document.Document, out io.Writer) *terminalViewer {
	return &terminalViewer{doc: doc, out: out}
}

// attach connects the session that receives navigation events
func (v *terminalViewer) attach(s *reader.Session) {
	v.mu.Lock()
	v.session = s
	v.mu.Unlock()
}

// Seek implements reader.Viewer
func (v *terminalViewer) Seek(pos int) error {
	total := v.doc.Total()
	if pos < 1 || pos > total {
		return fmt.Errorf("%w: %d of %d", errOutOfRange, pos, total)
	}

	v.mu.Lock()
	v.current = pos
	session := v.session
	v.mu.Unlock()

	v.render(pos)
	if session != nil {
		session.OnNavigate(pos)
	}
	return nil
}

// Current returns the position of the last successful Seek, 0 before any
func (v *terminalViewer) Current() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.current
}

func (v *terminalViewer) render(pos int) {
	fmt.Fprintln(v.out, v.doc.Describe(pos))
	if epub, ok := v.doc.(*document.EPUB); ok {
		if excerpt := epub.Excerpt(pos, excerptChars); excerpt != "" {
			fmt.Fprintf(v.out, "  %s\n", excerpt)
		}
	}
}

// readingLoop executes viewer commands read line by line until q, EOF or
// cancellation
type readingLoop struct {
	book      models.Book
	viewer    *terminalViewer
	library   *library.Service
	out       io.Writer
	bookmarks []models.Bookmark
}

const helpText = `Commands:
  n            next page or location
  p            previous page or location
  g <pos>      go to a position, "Page N", "Location N" or a CFI
  b <name>     bookmark the current position
  bm           list bookmarks
  j <n>        jump to bookmark n of the last list
  r <1-5>      rate the book
  q            quit`

func (l *readingLoop) run(ctx context.Context, in io.Reader) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		fmt.Fprint(l.out, "> ")
		select {
		case <-ctx.Done():
			fmt.Fprintln(l.out)
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			quit, err := l.execute(ctx, strings.TrimSpace(line))
			if err != nil {
				fmt.Fprintf(l.out, "Error: %v\n", err)
			}
			if quit {
				return nil
			}
		}
	}
}

func (l *readingLoop) execute(ctx context.Context, line string) (bool, error) {
	cmd, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	switch cmd {
	case "":
		return false, nil
	case "q", "quit":
		return true, nil
	case "n":
		return false, l.step(1)
	case "p":
		return false, l.step(-1)
	case "g":
		if arg == "" {
			return false, errors.New("usage: g <pos>")
		}
		pos, err := l.viewer.doc.Resolve(arg)
		if err != nil {
			return false, err
		}
		return false, l.viewer.Seek(pos)
	case "b":
		if arg == "" {
			return false, errors.New("usage: b <name>")
		}
		location := l.viewer.doc.Locator(l.viewer.Current())
		if err := l.library.AddBookmark(ctx, l.book.ID, arg, location); err != nil {
			return false, err
		}
		fmt.Fprintf(l.out, "Bookmark %q saved at %s\n", arg, location)
		l.bookmarks = nil
		return false, nil
	case "bm":
		return false, l.listBookmarks(ctx)
	case "j":
		return false, l.jump(ctx, arg)
	case "r":
		rating, err := strconv.Atoi(arg)
		if err != nil {
			return false, fmt.Errorf("%w: %q", library.ErrInvalidRating, arg)
		}
		result, err := l.library.Rate(ctx, l.book.ID, rating)
		if err != nil {
			return false, err
		}
		fmt.Fprintln(l.out, describeRating(result.UserRating, result.RatingSummary))
		return false, nil
	case "h", "help", "?":
		fmt.Fprintln(l.out, helpText)
		return false, nil
	default:
		return false, fmt.Errorf("unknown command %q, type h for help", cmd)
	}
}

func (l *readingLoop) step(delta int) error {
	next := l.viewer.Current() + delta
	total := l.viewer.doc.Total()
	if next < 1 || next > total {
		fmt.Fprintln(l.out, l.viewer.doc.Describe(l.viewer.Current()))
		return nil
	}
	return l.viewer.Seek(next)
}

func (l *readingLoop) listBookmarks(ctx context.Context) error {
	bookmarks, err := l.library.Bookmarks(ctx, l.book.ID)
	if err != nil {
		return err
	}
	l.bookmarks = bookmarks
	if len(bookmarks) == 0 {
		fmt.Fprintln(l.out, "No bookmarks")
		return nil
	}
	for i, b := range bookmarks {
		fmt.Fprintf(l.out, "%3d  %s  %s\n", i+1, b.Name, b.Location)
	}
	return nil
}

func (l *readingLoop) jump(ctx context.Context, arg string) error {
	n, err := strconv.Atoi(arg)
	if err != nil {
		return errors.New("usage: j <n>")
	}
	if l.bookmarks == nil {
		bookmarks, err := l.library.Bookmarks(ctx, l.book.ID)
		if err != nil {
			return err
		}
		l.bookmarks = bookmarks
	}
	if n < 1 || n > len(l.bookmarks) {
		return fmt.Errorf("no bookmark %d", n)
	}
	pos, err := l.viewer.doc.Resolve(l.bookmarks[n-1].Location)
	if err != nil {
		return err
	}
	return l.viewer.Seek(pos)
}
