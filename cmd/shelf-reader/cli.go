package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/drallgood/shelf-reader/internal/api/bookshelf"
	"github.com/drallgood/shelf-reader/internal/config"
	"github.com/drallgood/shelf-reader/internal/crypto"
	"github.com/drallgood/shelf-reader/internal/database"
	"github.com/drallgood/shelf-reader/internal/library"
	"github.com/drallgood/shelf-reader/internal/logger"
)

// errNotLoggedIn is returned by commands that need a token when none is known
var errNotLoggedIn = errors.New("no token available, run login or pass --token")

// env is everything a command needs, built from config and flags
type env struct {
	cfg       *config.Config
	log       *logger.Logger
	db        *database.Database
	repo      *database.Repository
	client    *bookshelf.Client
	library   *library.Service
	documents *library.Documents
}

// loadConfig reads the config file and environment, then applies global flags
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if c.IsSet("url") {
		cfg.Bookshelf.URL = strings.TrimSuffix(c.String("url"), "/")
	}
	if c.IsSet("token") {
		cfg.Bookshelf.Token = c.String("token")
	}
	if c.IsSet("data-dir") {
		cfg.Paths.DataDir = c.String("data-dir")
	}
	if c.IsSet("log-level") {
		cfg.Logging.Level = c.String("log-level")
	}
	if c.IsSet("log-format") {
		cfg.Logging.Format = c.String("log-format")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setup builds the env of a command. With needToken set, a missing token is
// an error.
func setup(c *cli.Context, needToken bool) (*env, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, err
	}

	logger.ForceSetup(logger.Config{
		Level:  cfg.Logging.Level,
		Format: logger.ParseLogFormat(cfg.Logging.Format),
		Output: c.App.ErrWriter,
	})
	log := logger.Get()

	db, err := database.NewDatabase(cfg.DatabasePath(), log)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sealer, err := crypto.NewSealer(cfg.Paths.DataDir, log)
	if err != nil {
		log.Warn("Token storage unavailable", map[string]interface{}{
			"error": err.Error(),
		})
	}
	repo := database.NewRepository(db, sealer, log)

	token := cfg.Bookshelf.Token
	if token == "" {
		stored, err := repo.GetToken(c.Context, cfg.Bookshelf.URL)
		switch {
		case err == nil:
			token = stored
		case !errors.Is(err, database.ErrNotFound):
			log.Warn("Failed to load saved token", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}
	if needToken && token == "" {
		_ = db.Close()
		return nil, errNotLoggedIn
	}

	client := bookshelf.NewClient(cfg.Bookshelf.URL, token,
		bookshelf.WithTimeout(cfg.Bookshelf.Timeout),
		bookshelf.WithLogger(log),
	)
	return &env{
		cfg:       cfg,
		log:       log,
		db:        db,
		repo:      repo,
		client:    client,
		library:   library.NewService(client, log),
		documents: library.NewDocuments(client, repo, cfg.DocumentsDir(), log),
	}, nil
}

func (e *env) Close() {
	if err := e.db.Close(); err != nil {
		e.log.Warn("Failed to close database", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

// bookIDArg parses the positional argument at i as a book ID
func bookIDArg(c *cli.Context, i int) (int, error) {
	return idArg(c, i, "bookId", "book")
}

// idArg parses the positional argument at i as a positive ID
func idArg(c *cli.Context, i int, arg, noun string) (int, error) {
	raw := c.Args().Get(i)
	if raw == "" {
		return 0, fmt.Errorf("missing <%s> argument", arg)
	}
	id, err := strconv.Atoi(raw)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s ID %q", noun, raw)
	}
	return id, nil
}

func loginAction(c *cli.Context) error {
	e, err := setup(c, false)
	if err != nil {
		return err
	}
	defer e.Close()

	username := c.String("username")
	resp, err := e.client.Login(c.Context, username, c.String("password"))
	if err != nil {
		if bookshelf.IsAuthFailure(err) {
			return fmt.Errorf("login rejected: %w", err)
		}
		return err
	}
	if resp.Username != "" {
		username = resp.Username
	}
	if err := e.repo.SaveToken(c.Context, e.cfg.Bookshelf.URL, username, resp.UserID, resp.Token); err != nil {
		return fmt.Errorf("logged in but could not save the token: %w", err)
	}
	fmt.Fprintf(c.App.Writer, "Logged in as %s\n", username)
	return nil
}

func libraryAction(c *cli.Context) error {
	e, err := setup(c, true)
	if err != nil {
		return err
	}
	defer e.Close()

	entries, err := e.client.GetLibrary(c.Context)
	if err != nil {
		return fmt.Errorf("failed to fetch library: %w", err)
	}
	if len(entries) == 0 {
		fmt.Fprintln(c.App.Writer, "Your library is empty")
		return nil
	}

	rows := make([][]string, 0, len(entries))
	for _, entry := range entries {
		rows = append(rows, []string{
			strconv.Itoa(entry.BookID),
			entry.Name,
			entry.Authors,
			entry.Format.String(),
			entry.Progress,
			ratingCell(entry.UserRating),
			entry.LastReadDate,
		})
	}
	fmt.Fprintln(c.App.Writer, renderTable(
		[]string{"ID", "Title", "Authors", "Format", "Progress", "Rating", "Last read"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignRight, alignLeft, alignLeft},
	))
	return nil
}

func rateAction(c *cli.Context) error {
	bookID, err := bookIDArg(c, 0)
	if err != nil {
		return err
	}
	rating, err := strconv.Atoi(c.Args().Get(1))
	if err != nil {
		return fmt.Errorf("%w: %q", library.ErrInvalidRating, c.Args().Get(1))
	}
	e, err := setup(c, true)
	if err != nil {
		return err
	}
	defer e.Close()

	result, err := e.library.Rate(c.Context, bookID, rating)
	if err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, describeRating(result.UserRating, result.RatingSummary))
	return nil
}

func bookmarksAction(c *cli.Context) error {
	bookID, err := bookIDArg(c, 0)
	if err != nil {
		return err
	}
	e, err := setup(c, true)
	if err != nil {
		return err
	}
	defer e.Close()

	bookmarks, err := e.library.Bookmarks(c.Context, bookID)
	if err != nil {
		return err
	}
	if len(bookmarks) == 0 {
		fmt.Fprintln(c.App.Writer, "No bookmarks")
		return nil
	}
	rows := make([][]string, 0, len(bookmarks))
	for i, b := range bookmarks {
		rows = append(rows, []string{strconv.Itoa(i + 1), b.Name, b.Location, b.CreatedDate})
	}
	fmt.Fprintln(c.App.Writer, renderTable(
		[]string{"#", "Name", "Location", "Created"},
		rows,
		[]columnAlignment{alignRight},
	))
	return nil
}

func bookmarkAction(c *cli.Context) error {
	bookID, err := bookIDArg(c, 0)
	if err != nil {
		return err
	}
	name, location := c.Args().Get(1), c.Args().Get(2)
	if location == "" {
		return fmt.Errorf("usage: bookmark <bookId> <name> <location>")
	}
	e, err := setup(c, true)
	if err != nil {
		return err
	}
	defer e.Close()

	if err := e.library.AddBookmark(c.Context, bookID, name, location); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "Bookmark %q added at %s\n", name, location)
	return nil
}

func removeAction(c *cli.Context) error {
	bookID, err := bookIDArg(c, 0)
	if err != nil {
		return err
	}
	e, err := setup(c, true)
	if err != nil {
		return err
	}
	defer e.Close()

	if err := e.library.Remove(c.Context, bookID); err != nil {
		return err
	}
	if err := e.documents.Forget(c.Context, bookID); err != nil {
		e.log.Warn("Failed to delete downloaded copy", map[string]interface{}{
			"book_id": bookID,
			"error":   err.Error(),
		})
	}
	fmt.Fprintf(c.App.Writer, "Removed book %d from your library\n", bookID)
	return nil
}

func historyAction(c *cli.Context) error {
	bookID, err := bookIDArg(c, 0)
	if err != nil {
		return err
	}
	e, err := setup(c, false)
	if err != nil {
		return err
	}
	defer e.Close()

	records, err := e.repo.History(c.Context, bookID, c.Int("limit"))
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Fprintln(c.App.Writer, "No saves recorded")
		return nil
	}
	rows := make([][]string, 0, len(records))
	for _, r := range records {
		session := r.SessionID
		if len(session) > 8 {
			session = session[:8]
		}
		rows = append(rows, []string{
			r.CreatedAt.Local().Format("2006-01-02 15:04:05"),
			session,
			fmt.Sprintf("%d/%d", r.Position, r.Total),
			fmt.Sprintf("%d%%", r.Percent),
			r.Status,
			r.Error,
		})
	}
	fmt.Fprintln(c.App.Writer, renderTable(
		[]string{"Time", "Session", "Position", "Progress", "Status", "Error"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight},
	))
	return nil
}
