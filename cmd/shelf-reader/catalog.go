package main

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/drallgood/shelf-reader/internal/api/bookshelf"
	"github.com/drallgood/shelf-reader/internal/models"
)

func registerAction(c *cli.Context) error {
	e, err := setup(c, false)
	if err != nil {
		return err
	}
	defer e.Close()

	resp, err := e.client.Register(c.Context, c.String("username"), c.String("password"))
	if err != nil {
		return fmt.Errorf("registration failed: %w", err)
	}
	fmt.Fprintf(c.App.Writer, "Registered %s (user %d). Run login to sign in\n", resp.Username, resp.UserID)
	return nil
}

func booksAction(c *cli.Context) error {
	e, err := setup(c, true)
	if err != nil {
		return err
	}
	defer e.Close()

	books, err := e.client.ListBooks(c.Context)
	if err != nil {
		return fmt.Errorf("failed to fetch catalog: %w", err)
	}
	printBooks(c, books, "The catalog is empty")
	return nil
}

func searchAction(c *cli.Context) error {
	query := strings.Join(c.Args().Slice(), " ")
	if strings.TrimSpace(query) == "" {
		return fmt.Errorf("missing <query> argument")
	}
	e, err := setup(c, true)
	if err != nil {
		return err
	}
	defer e.Close()

	books, err := e.client.SearchBooks(c.Context, query)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}
	printBooks(c, books, fmt.Sprintf("No books match %q", query))
	return nil
}

func infoAction(c *cli.Context) error {
	bookID, err := bookIDArg(c, 0)
	if err != nil {
		return err
	}
	e, err := setup(c, true)
	if err != nil {
		return err
	}
	defer e.Close()

	details, err := e.client.GetBookDetails(c.Context, bookID)
	if err != nil {
		return fmt.Errorf("failed to load book: %w", err)
	}
	out := c.App.Writer
	fmt.Fprintln(out, details.Name)
	fields := []struct{ label, value string }{
		{"Authors", details.Authors},
		{"Genres", details.Genres},
		{"Publisher", details.Publisher},
		{"Published", details.PublishedDate},
		{"Language", details.Language},
		{"Format", details.Format.String()},
	}
	for _, f := range fields {
		value := f.value
		if value == "" {
			value = "Unknown"
		}
		fmt.Fprintf(out, "  %-10s %s\n", f.label+":", value)
	}

	rating, err := e.library.Rating(c.Context, bookID)
	if err != nil {
		e.log.Warn("Failed to load rating", map[string]interface{}{
			"book_id": bookID,
			"error":   err.Error(),
		})
		return nil
	}
	fmt.Fprintln(out, describeRating(rating.User, rating.Summary))
	return nil
}

func uploadAction(c *cli.Context) error {
	path := c.Args().First()
	if path == "" {
		return fmt.Errorf("missing <file> argument")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	title := c.String("title")
	if title == "" {
		title = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}

	e, err := setup(c, true)
	if err != nil {
		return err
	}
	defer e.Close()

	book, err := e.client.UploadBook(c.Context, models.UploadRequest{
		Title:         title,
		Author:        c.String("author"),
		Publisher:     c.String("publisher"),
		PublishedDate: c.String("published-date"),
		Language:      c.String("language"),
		GenreIDs:      c.IntSlice("genre"),
		Filename:      filepath.Base(path),
		Data:          data,
	})
	if err != nil {
		return fmt.Errorf("upload failed: %w", err)
	}
	fmt.Fprintf(c.App.Writer, "Uploaded %q as book %d (%s)\n", book.Name, book.ID, book.Format)
	return nil
}

func uploadsAction(c *cli.Context) error {
	e, err := setup(c, true)
	if err != nil {
		return err
	}
	defer e.Close()

	uploads, err := e.client.MyUploads(c.Context)
	if err != nil {
		return fmt.Errorf("failed to fetch uploads: %w", err)
	}
	if len(uploads) == 0 {
		fmt.Fprintln(c.App.Writer, "You have not uploaded any books")
		return nil
	}
	rows := make([][]string, 0, len(uploads))
	for _, u := range uploads {
		rows = append(rows, []string{
			strconv.Itoa(u.ID),
			u.Title,
			u.Authors,
			u.Publisher,
			u.Language,
			u.Format.String(),
		})
	}
	fmt.Fprintln(c.App.Writer, renderTable(
		[]string{"ID", "Title", "Authors", "Publisher", "Language", "Format"},
		rows,
		[]columnAlignment{alignRight},
	))
	return nil
}

func uploadsEditAction(c *cli.Context) error {
	bookID, err := bookIDArg(c, 0)
	if err != nil {
		return err
	}
	if !c.IsSet("title") && !c.IsSet("language") {
		return fmt.Errorf("nothing to change, pass --title or --language")
	}
	e, err := setup(c, true)
	if err != nil {
		return err
	}
	defer e.Close()

	// the backend replaces every field, so unchanged ones are sent as they are
	current, err := e.client.GetBook(c.Context, bookID)
	if err != nil {
		return fmt.Errorf("failed to load book: %w", err)
	}
	update := models.BookUpdate{
		Name:     current.Name,
		Language: current.Language,
		Format:   current.Format,
	}
	if c.IsSet("title") {
		update.Name = c.String("title")
	}
	if c.IsSet("language") {
		update.Language = c.String("language")
	}
	if err := e.client.UpdateBook(c.Context, bookID, update); err != nil {
		return describeOwnership(err, "edit", bookID)
	}
	fmt.Fprintf(c.App.Writer, "Updated book %d\n", bookID)
	return nil
}

func uploadsDeleteAction(c *cli.Context) error {
	bookID, err := bookIDArg(c, 0)
	if err != nil {
		return err
	}
	e, err := setup(c, true)
	if err != nil {
		return err
	}
	defer e.Close()

	if err := e.client.DeleteBook(c.Context, bookID); err != nil {
		return describeOwnership(err, "delete", bookID)
	}
	if err := e.documents.Forget(c.Context, bookID); err != nil {
		e.log.Warn("Failed to delete downloaded copy", map[string]interface{}{
			"book_id": bookID,
			"error":   err.Error(),
		})
	}
	fmt.Fprintf(c.App.Writer, "Deleted book %d from the catalog\n", bookID)
	return nil
}

// describeOwnership explains the 403 the backend sends to non-uploaders
func describeOwnership(err error, action string, bookID int) error {
	if bookshelf.StatusCode(err) == http.StatusForbidden {
		return fmt.Errorf("only the uploader can %s book %d: %w", action, bookID, err)
	}
	return err
}

func printBooks(c *cli.Context, books []models.Book, empty string) {
	if len(books) == 0 {
		fmt.Fprintln(c.App.Writer, empty)
		return
	}
	rows := make([][]string, 0, len(books))
	for _, b := range books {
		rows = append(rows, []string{strconv.Itoa(b.ID), b.Name, b.Authors, b.Language, b.Format.String()})
	}
	fmt.Fprintln(c.App.Writer, renderTable(
		[]string{"ID", "Title", "Authors", "Language", "Format"},
		rows,
		[]columnAlignment{alignRight},
	))
}
