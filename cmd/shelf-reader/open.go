package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"github.com/drallgood/shelf-reader/internal/config"
	"github.com/drallgood/shelf-reader/internal/document"
	"github.com/drallgood/shelf-reader/internal/library"
	"github.com/drallgood/shelf-reader/internal/models"
	"github.com/drallgood/shelf-reader/internal/reader"
)

const flushTimeout = 10 * time.Second

func openAction(c *cli.Context) error {
	bookID, err := bookIDArg(c, 0)
	if err != nil {
		return err
	}
	e, err := setup(c, true)
	if err != nil {
		return err
	}
	defer e.Close()

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()
	out := c.App.Writer

	var (
		book   *models.Book
		rating *library.Rating
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		b, err := e.client.GetBook(gctx, bookID)
		if err != nil {
			return fmt.Errorf("failed to load book: %w", err)
		}
		book = b
		return nil
	})
	g.Go(func() error {
		r, err := e.library.Rating(gctx, bookID)
		if err != nil {
			e.log.Warn("Failed to load rating", map[string]interface{}{
				"book_id": bookID,
				"error":   err.Error(),
			})
			return nil
		}
		rating = r
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}

	fetched, err := e.documents.Fetch(ctx, *book)
	if err != nil {
		return err
	}
	doc, err := document.Open(fetched.Format, fetched.Data, e.cfg.Reader.EPUBLocationChars)
	if err != nil {
		return fmt.Errorf("failed to open document: %w", err)
	}

	fmt.Fprintf(out, "%s", book.Name)
	if book.Authors != "" {
		fmt.Fprintf(out, " by %s", book.Authors)
	}
	fmt.Fprintln(out)
	if rating != nil {
		fmt.Fprintln(out, describeRating(rating.User, rating.Summary))
	}

	viewer := newTerminalViewer(doc, out)
	session := reader.NewSession(book.ID, fetched.Format, e.library, viewer, reader.Options{
		Debounce:         e.cfg.Reader.Debounce,
		SettleDelay:      settleDelay(e.cfg),
		AutosaveInterval: autosaveInterval(e.cfg),
		Journal:          reader.RepositoryJournal{Repo: e.repo},
		Logger:           e.log,
		// timer saves must survive the interrupt that ends the loop
		Context: context.WithoutCancel(ctx),
	})
	viewer.attach(session)
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), flushTimeout)
		defer cancel()
		if err := session.FlushOnUnload(flushCtx); err != nil {
			fmt.Fprintf(out, "Could not save your position: %v\n", err)
		}
	}()

	total, err := resolveTotal(ctx, doc, out)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}
	if err := session.Resolve(total); err != nil {
		return err
	}
	if _, err := session.Restore(ctx); err != nil {
		return err
	}
	if acknowledgesRestore(e.cfg) {
		// the terminal has printed the restored position by the time Seek returns
		session.Settled()
	}

	loop := &readingLoop{book: *book, viewer: viewer, library: e.library, out: out}
	return loop.run(ctx, c.App.Reader)
}

// resolveTotal returns the position count, generating EPUB locations in the
// background so an interrupt can abandon them
func resolveTotal(ctx context.Context, doc document.Document, out io.Writer) (int, error) {
	epub, ok := doc.(*document.EPUB)
	if !ok {
		return doc.Total(), nil
	}

	fmt.Fprintln(out, "Generating locations...")
	type result struct {
		total int
		err   error
	}
	done := make(chan result, 1)
	go func() {
		n, err := epub.GenerateLocations(ctx)
		done <- result{n, err}
	}()
	select {
	case r := <-done:
		if r.err != nil {
			return 0, fmt.Errorf("failed to generate locations: %w", r.err)
		}
		return r.total, nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// settleDelay maps the configured delay to session options, where 0 means
// the default and a negative value disables the delay
func settleDelay(cfg *config.Config) time.Duration {
	if cfg.Reader.SettleDelay == 0 {
		return -1
	}
	return cfg.Reader.SettleDelay
}

// acknowledgesRestore reports whether the terminal viewer ends the restore
// itself. A configured settle delay is always waited out.
func acknowledgesRestore(cfg *config.Config) bool {
	return cfg.Reader.SettleDelay == 0
}

// autosaveInterval maps the configured interval to session options, where a
// configured 0 turns the autosave off
func autosaveInterval(cfg *config.Config) time.Duration {
	if cfg.Reader.AutosaveInterval == 0 {
		return -1
	}
	return cfg.Reader.AutosaveInterval
}
