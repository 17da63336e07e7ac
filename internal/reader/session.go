// Package reader tracks reading progress for one open book. A Session
// restores the saved position, then turns viewer navigation into debounced
// progress saves, and flushes a final save when the book is closed. A
// periodic autosave retries progress that a failed save left behind.
package reader

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/drallgood/shelf-reader/internal/logger"
	"github.com/drallgood/shelf-reader/internal/models"
	"github.com/drallgood/shelf-reader/internal/progress"
)

// Defaults used when Options leaves a duration at zero
const (
	DefaultDebounce         = time.Second
	DefaultSettleDelay      = time.Second
	DefaultAutosaveInterval = 30 * time.Second
)

var (
	// ErrTotalUnknown is returned by Restore before Resolve has set a total
	ErrTotalUnknown = errors.New("total positions not known yet")
	// ErrInvalidTotal is returned by Resolve for totals below 1
	ErrInvalidTotal = errors.New("total positions must be positive")
	// ErrUnloaded is returned by operations on a closed session
	ErrUnloaded = errors.New("session is unloaded")
	// ErrAlreadyRestored is returned by a second Restore
	ErrAlreadyRestored = errors.New("session already restored")
)

// State is the lifecycle phase of a Session
type State int

const (
	// StateInit means the total position count is not known or restore has not started
	StateInit State = iota
	// StateRestoring means the viewer is being moved to the saved position.
	// Navigation is tracked but never saved.
	StateRestoring
	// StateActive means navigation schedules saves
	StateActive
	// StateUnloaded is terminal
	StateUnloaded
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateRestoring:
		return "restoring"
	case StateActive:
		return "active"
	case StateUnloaded:
		return "unloaded"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// ProgressStore reads and writes persisted progress. *library.Service
// implements it.
type ProgressStore interface {
	// SavedPercent fails open: errors read as 0
	SavedPercent(ctx context.Context, bookID int) progress.Percent
	SaveProgress(ctx context.Context, bookID int, p progress.Percent) error
}

// Viewer displays the document. Seek may report the resulting relocation back
// through Session.OnNavigate, from any goroutine.
type Viewer interface {
	Seek(pos int) error
}

// Options tune a Session. Zero values pick the defaults.
type Options struct {
	// Debounce is the quiet period before saving for continuous formats
	Debounce time.Duration
	// SettleDelay is how long after the restore seek navigation stays unsaved
	// unless Settled is called first. Negative means no delay.
	SettleDelay time.Duration
	// AutosaveInterval is the period of the background save that runs while
	// the session is active and has unsaved progress. Negative disables it.
	AutosaveInterval time.Duration
	Scheduler        Scheduler
	Journal     Journal
	Logger      *logger.Logger
	// Context is used for saves fired by timers. Defaults to context.Background.
	Context context.Context
}

// Session is the progress tracker of one open book
type Session struct {
	id      string
	bookID  int
	format  models.Format
	store   ProgressStore
	viewer  Viewer
	opts    Options
	logger  *logger.Logger
	baseCtx context.Context

	mu       sync.Mutex
	state    State
	position int
	total    int
	pending  Timer
	// generation invalidates a pending save that lost a race with Stop
	generation uint64
	settle     Timer
	autosave   Timer
	// dirty is set when the position changed since the last successful save
	dirty bool
}

// NewSession creates a session in StateInit
func NewSession(bookID int, format models.Format, store ProgressStore, viewer Viewer, opts Options) *Session {
	if opts.Debounce == 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.SettleDelay == 0 {
		opts.SettleDelay = DefaultSettleDelay
	}
	if opts.AutosaveInterval == 0 {
		opts.AutosaveInterval = DefaultAutosaveInterval
	}
	if opts.Scheduler == nil {
		opts.Scheduler = RealScheduler{}
	}
	baseCtx := opts.Context
	if baseCtx == nil {
		baseCtx = context.Background()
	}
	log := opts.Logger
	if log == nil {
		log = logger.Get()
	}

	id := uuid.NewString()
	return &Session{
		id:      id,
		bookID:  bookID,
		format:  format,
		store:   store,
		viewer:  viewer,
		opts:    opts,
		baseCtx: baseCtx,
		logger: log.Component("reader").With(map[string]interface{}{
			"session_id": id,
			"book_id":    bookID,
			"format":     format.String(),
		}),
	}
}

// ID returns the session ID used in logs and the journal
func (s *Session) ID() string { return s.id }

// BookID returns the book this session tracks
func (s *Session) BookID() int { return s.bookID }

// Format returns the document format
func (s *Session) Format() models.Format { return s.format }

// State returns the current lifecycle phase
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Position returns the current position and total. The position is 0 until
// restore or navigation sets it.
func (s *Session) Position() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.position, s.total
}

// Percent returns the progress the session would save now
func (s *Session) Percent() progress.Percent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return progress.FromPosition(s.position, s.total)
}

// Resolve records the total number of positions: the page count of a PDF or
// the generated location count of an EPUB
func (s *Session) Resolve(total int) error {
	if total <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidTotal, total)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateUnloaded {
		return ErrUnloaded
	}
	s.total = total
	if s.position > 0 {
		s.position = progress.Clamp(s.position, total)
	}
	s.logger.Debug("Total positions resolved", map[string]interface{}{
		"total": total,
	})
	return nil
}

// LoadSavedProgress converts the persisted percentage into a position. It
// returns 0 (start from the beginning) when nothing usable is saved or the
// total is not known yet.
func (s *Session) LoadSavedProgress(ctx context.Context) int {
	s.mu.Lock()
	total := s.total
	s.mu.Unlock()
	if total <= 0 {
		return 0
	}
	p := s.store.SavedPercent(ctx, s.bookID)
	return progress.ToPosition(p, total)
}

// Restore moves the viewer to the saved position. Navigation stays unsaved
// until the settle delay elapses or Settled is called. It returns the
// position the viewer was sent to.
func (s *Session) Restore(ctx context.Context) (int, error) {
	s.mu.Lock()
	switch {
	case s.state == StateUnloaded:
		s.mu.Unlock()
		return 0, ErrUnloaded
	case s.state != StateInit:
		s.mu.Unlock()
		return 0, ErrAlreadyRestored
	case s.total <= 0:
		s.mu.Unlock()
		return 0, ErrTotalUnknown
	}
	s.state = StateRestoring
	s.mu.Unlock()

	saved := s.LoadSavedProgress(ctx)
	target := saved
	if target == 0 {
		target = 1
	}

	// The viewer may call OnNavigate from Seek, so no lock is held here
	if err := s.viewer.Seek(target); err != nil {
		s.logger.Warn("Failed to seek to saved position", map[string]interface{}{
			"target": target,
			"error":  err.Error(),
		})
		target = 1
	}

	s.mu.Lock()
	if s.state != StateRestoring {
		s.mu.Unlock()
		return target, nil
	}
	s.position = target
	s.logger.Info("Restored reading position", map[string]interface{}{
		"position": target,
		"total":    s.total,
		"saved":    saved > 0,
	})
	if s.opts.SettleDelay < 0 {
		s.activateLocked("no settle delay")
	} else {
		s.settle = s.opts.Scheduler.AfterFunc(s.opts.SettleDelay, func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			s.activateLocked("settle delay elapsed")
		})
	}
	s.mu.Unlock()
	return target, nil
}

// Settled is the viewer's acknowledgement that the restore seek is complete.
// Tracking starts immediately instead of waiting for the settle delay.
func (s *Session) Settled() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activateLocked("viewer settled")
}

func (s *Session) activateLocked(reason string) {
	if s.state != StateRestoring {
		return
	}
	if s.settle != nil {
		s.settle.Stop()
		s.settle = nil
	}
	s.state = StateActive
	s.scheduleAutosaveLocked()
	s.logger.Debug("Tracking enabled", map[string]interface{}{
		"reason":   reason,
		"position": s.position,
	})
}

func (s *Session) scheduleAutosaveLocked() {
	if s.opts.AutosaveInterval < 0 {
		return
	}
	s.autosave = s.opts.Scheduler.AfterFunc(s.opts.AutosaveInterval, s.fireAutosave)
}

// fireAutosave saves progress a debounced save left unsaved, then re-arms
func (s *Session) fireAutosave() {
	s.mu.Lock()
	if s.state != StateActive {
		s.mu.Unlock()
		return
	}
	due := s.dirty && s.total > 0
	s.scheduleAutosaveLocked()
	s.mu.Unlock()

	if due {
		s.logger.Debug("Autosave retrying unsaved progress")
		_ = s.SaveProgress(s.baseCtx)
	}
}

// OnNavigate records a position reported by the viewer. Only an active
// session schedules a save, replacing any save still pending.
func (s *Session) OnNavigate(pos int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateUnloaded {
		return
	}
	if s.total > 0 {
		pos = progress.Clamp(pos, s.total)
	}
	if pos == s.position {
		return
	}
	s.position = pos
	if s.state != StateActive {
		return
	}
	s.dirty = true

	if s.pending != nil {
		s.pending.Stop()
	}
	s.generation++
	gen := s.generation
	delay := s.opts.Debounce
	if !s.format.Continuous() {
		delay = 0
	}
	s.pending = s.opts.Scheduler.AfterFunc(delay, func() {
		s.firePending(gen)
	})
}

func (s *Session) firePending(gen uint64) {
	s.mu.Lock()
	if gen != s.generation || s.state != StateActive {
		s.mu.Unlock()
		return
	}
	s.pending = nil
	s.mu.Unlock()

	// errors are logged by SaveProgress; the autosave or the next navigation retries
	_ = s.SaveProgress(s.baseCtx)
}

// SaveProgress writes the current percentage. It does nothing while the
// total is unknown. Failures are logged and returned.
func (s *Session) SaveProgress(ctx context.Context) error {
	s.mu.Lock()
	pos, total := s.position, s.total
	s.mu.Unlock()
	if total <= 0 {
		return nil
	}

	p := progress.FromPosition(pos, total)
	err := s.store.SaveProgress(ctx, s.bookID, p)
	fields := map[string]interface{}{
		"position": pos,
		"total":    total,
		"percent":  p.String(),
	}
	if err != nil {
		fields["error"] = err.Error()
		s.logger.Warn("Failed to save progress", fields)
	} else {
		s.mu.Lock()
		if s.position == pos {
			s.dirty = false
		}
		s.mu.Unlock()
		s.logger.Debug("Progress saved", fields)
	}

	if s.opts.Journal != nil {
		attempt := SaveAttempt{
			BookID:    s.bookID,
			SessionID: s.id,
			Position:  pos,
			Total:     total,
			Percent:   p,
			Err:       err,
		}
		if jerr := s.opts.Journal.Record(ctx, attempt); jerr != nil {
			s.logger.Warn("Failed to record save attempt", map[string]interface{}{
				"error": jerr.Error(),
			})
		}
	}
	return err
}

// FlushOnUnload ends the session with a final best-effort save. Only the
// first call does anything. A session that never started restoring has
// nothing of its own to save, so it leaves the stored progress alone.
func (s *Session) FlushOnUnload(ctx context.Context) error {
	s.mu.Lock()
	if s.state == StateUnloaded {
		s.mu.Unlock()
		return nil
	}
	prev := s.state
	s.state = StateUnloaded
	s.generation++
	if s.pending != nil {
		s.pending.Stop()
		s.pending = nil
	}
	if s.settle != nil {
		s.settle.Stop()
		s.settle = nil
	}
	if s.autosave != nil {
		s.autosave.Stop()
		s.autosave = nil
	}
	s.mu.Unlock()

	s.logger.Debug("Session unloading", map[string]interface{}{
		"previous_state": prev.String(),
	})
	if prev == StateInit {
		return nil
	}
	return s.SaveProgress(ctx)
}
