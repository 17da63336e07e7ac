// Package main provides shelf-reader, a terminal client for a bookshelf
// backend that remembers where you stopped reading.
package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/drallgood/shelf-reader/internal/logger"
)

// init initializes the logger with default values
func init() {
	logger.Setup(logger.Config{
		Level:      "info",
		Format:     logger.FormatConsole,
		TimeFormat: time.RFC3339,
	})
}

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	app := newApp(os.Stdin, os.Stdout, os.Stderr)
	if err := app.Run(os.Args); err != nil {
		logger.Get().Error("Error running application", map[string]interface{}{
			"error": err.Error(),
		})
		os.Exit(1)
	}
}

func newApp(in io.Reader, out, errOut io.Writer) *cli.App {
	return &cli.App{
		Name:      "shelf-reader",
		Usage:     "Read books from a bookshelf server and keep your place",
		Version:   fmt.Sprintf("%s (%s) %s", version, commit, date),
		Reader:    in,
		Writer:    out,
		ErrWriter: errOut,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Load configuration from `FILE`",
				Value:   "config.yaml",
			},
			&cli.StringFlag{
				Name:  "url",
				Usage: "Bookshelf server base URL, e.g. http://localhost:8080",
			},
			&cli.StringFlag{
				Name:  "token",
				Usage: "Bearer token, overrides the token saved by login",
			},
			&cli.StringFlag{
				Name:  "data-dir",
				Usage: "Directory for the local database and downloaded books",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Log level (debug, info, warn, error)",
			},
			&cli.StringFlag{
				Name:  "log-format",
				Usage: "Log format (json, console)",
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "login",
				Usage: "Sign in and remember the token",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "username", Aliases: []string{"u"}, Required: true},
					&cli.StringFlag{Name: "password", Aliases: []string{"p"}, Required: true},
				},
				Action: loginAction,
			},
			{
				Name:  "register",
				Usage: "Create an account on the server",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "username", Aliases: []string{"u"}, Required: true},
					&cli.StringFlag{Name: "password", Aliases: []string{"p"}, Required: true},
				},
				Action: registerAction,
			},
			{
				Name:   "books",
				Usage:  "List every book in the catalog",
				Action: booksAction,
			},
			{
				Name:      "search",
				Usage:     "Search the catalog by title or author",
				ArgsUsage: "<query>",
				Action:    searchAction,
			},
			{
				Name:      "info",
				Usage:     "Show the details and rating of a book",
				ArgsUsage: "<bookId>",
				Action:    infoAction,
			},
			{
				Name:      "upload",
				Usage:     "Upload a PDF or EPUB to the catalog",
				ArgsUsage: "<file>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "title", Aliases: []string{"t"}, Usage: "Book title, defaults to the file name"},
					&cli.StringFlag{Name: "author", Aliases: []string{"a"}},
					&cli.StringFlag{Name: "publisher"},
					&cli.StringFlag{Name: "published-date", Usage: "Publication date, e.g. 2021-04-01"},
					&cli.StringFlag{Name: "language", Aliases: []string{"l"}},
					&cli.IntSliceFlag{Name: "genre", Usage: "Genre ID, repeatable"},
				},
				Action: uploadAction,
			},
			{
				Name:   "uploads",
				Usage:  "Manage the books you uploaded",
				Action: uploadsAction,
				Subcommands: []*cli.Command{
					{
						Name:   "list",
						Usage:  "List the books you uploaded",
						Action: uploadsAction,
					},
					{
						Name:      "edit",
						Usage:     "Change the title or language of an upload",
						ArgsUsage: "<bookId>",
						Flags: []cli.Flag{
							&cli.StringFlag{Name: "title", Aliases: []string{"t"}},
							&cli.StringFlag{Name: "language", Aliases: []string{"l"}},
						},
						Action: uploadsEditAction,
					},
					{
						Name:      "delete",
						Usage:     "Delete an upload from the catalog",
						ArgsUsage: "<bookId>",
						Action:    uploadsDeleteAction,
					},
				},
			},
			{
				Name:   "collections",
				Usage:  "Organize books into collections",
				Action: collectionsListAction,
				Subcommands: []*cli.Command{
					{
						Name:   "list",
						Usage:  "List your collections",
						Action: collectionsListAction,
					},
					{
						Name:      "create",
						Usage:     "Create a collection",
						ArgsUsage: "<name>",
						Action:    collectionsCreateAction,
					},
					{
						Name:      "delete",
						Usage:     "Delete a collection",
						ArgsUsage: "<collectionId>",
						Action:    collectionsDeleteAction,
					},
					{
						Name:      "show",
						Usage:     "List the books of a collection",
						ArgsUsage: "<collectionId>",
						Action:    collectionsShowAction,
					},
					{
						Name:      "add",
						Usage:     "Add a book to a collection",
						ArgsUsage: "<collectionId> <bookId>",
						Action:    collectionsAddAction,
					},
					{
						Name:      "remove",
						Usage:     "Remove a book from a collection",
						ArgsUsage: "<collectionId> <bookId>",
						Action:    collectionsRemoveAction,
					},
				},
			},
			{
				Name:   "library",
				Usage:  "List the books in your library",
				Action: libraryAction,
			},
			{
				Name:      "open",
				Usage:     "Read a book, resuming where you left off",
				ArgsUsage: "<bookId>",
				Action:    openAction,
			},
			{
				Name:      "rate",
				Usage:     "Rate a book from 1 to 5",
				ArgsUsage: "<bookId> <rating>",
				Action:    rateAction,
			},
			{
				Name:      "bookmarks",
				Usage:     "List the bookmarks of a book",
				ArgsUsage: "<bookId>",
				Action:    bookmarksAction,
			},
			{
				Name:      "bookmark",
				Usage:     "Add a bookmark",
				ArgsUsage: "<bookId> <name> <location>",
				Action:    bookmarkAction,
			},
			{
				Name:      "remove",
				Usage:     "Remove a book from your library and delete the download",
				ArgsUsage: "<bookId>",
				Action:    removeAction,
			},
			{
				Name:      "history",
				Usage:     "Show the local log of progress saves",
				ArgsUsage: "<bookId>",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "limit", Aliases: []string{"n"}, Value: 20},
				},
				Action: historyAction,
			},
		},
	}
}
