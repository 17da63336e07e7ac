package database

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/drallgood/shelf-reader/internal/crypto"
	"github.com/drallgood/shelf-reader/internal/logger"
)

// ErrNotFound is returned when a lookup matches no row
var ErrNotFound = errors.New("record not found")

// Repository provides database operations for the reader
type Repository struct {
	db     *Database
	sealer *crypto.Sealer
	logger *logger.Logger
}

// NewRepository creates a new repository instance. The sealer may be nil when
// tokens are never stored.
func NewRepository(db *Database, sealer *crypto.Sealer, log *logger.Logger) *Repository {
	if log == nil {
		log = logger.Get()
	}
	return &Repository{
		db:     db,
		sealer: sealer,
		logger: log.Component("repository"),
	}
}

// RecordProgress appends a save attempt to the history
func (r *Repository) RecordProgress(ctx context.Context, rec *ProgressRecord) error {
	if err := r.db.GetDB().WithContext(ctx).Create(rec).Error; err != nil {
		return fmt.Errorf("failed to record progress: %w", err)
	}
	return nil
}

// History returns the save attempts for a book, newest first. A limit of 0
// returns everything.
func (r *Repository) History(ctx context.Context, bookID, limit int) ([]ProgressRecord, error) {
	q := r.db.GetDB().WithContext(ctx).
		Where("book_id = ?", bookID).
		Order("created_at DESC").
		Order("id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var records []ProgressRecord
	if err := q.Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}
	return records, nil
}

// LastSaved returns the newest successful save of a book
func (r *Repository) LastSaved(ctx context.Context, bookID int) (*ProgressRecord, error) {
	var rec ProgressRecord
	err := r.db.GetDB().WithContext(ctx).
		Where("book_id = ? AND status = ?", bookID, StatusSaved).
		Order("created_at DESC").
		Order("id DESC").
		First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load last save: %w", err)
	}
	return &rec, nil
}

// SaveDocument creates or replaces the index row of a downloaded document
func (r *Repository) SaveDocument(ctx context.Context, doc *CachedDocument) error {
	err := r.db.GetDB().WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(doc).Error
	if err != nil {
		return fmt.Errorf("failed to save document: %w", err)
	}
	return nil
}

// GetDocument returns the index row of a downloaded document
func (r *Repository) GetDocument(ctx context.Context, bookID int) (*CachedDocument, error) {
	var doc CachedDocument
	if err := r.db.GetDB().WithContext(ctx).First(&doc, "book_id = ?", bookID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load document: %w", err)
	}
	return &doc, nil
}

// DeleteDocument removes the index row of a document. Missing rows are not an error.
func (r *Repository) DeleteDocument(ctx context.Context, bookID int) error {
	if err := r.db.GetDB().WithContext(ctx).Delete(&CachedDocument{}, "book_id = ?", bookID).Error; err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	return nil
}

// SaveToken seals and stores the bearer token for a backend URL
func (r *Repository) SaveToken(ctx context.Context, baseURL, username string, userID int, token string) error {
	if r.sealer == nil {
		return fmt.Errorf("token storage is not configured")
	}
	sealed, err := r.sealer.Seal(token)
	if err != nil {
		r.logger.Error("Failed to seal token", map[string]interface{}{
			"base_url": baseURL,
			"error":    err.Error(),
		})
		return fmt.Errorf("failed to seal token: %w", err)
	}

	row := AuthToken{
		BaseURL:     baseURL,
		Username:    username,
		UserID:      userID,
		SealedToken: sealed,
	}
	err = r.db.GetDB().WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&row).Error
	if err != nil {
		return fmt.Errorf("failed to save token: %w", err)
	}

	r.logger.Info("Stored login token", map[string]interface{}{
		"base_url": baseURL,
		"username": username,
	})
	return nil
}

// GetToken returns the stored bearer token for a backend URL
func (r *Repository) GetToken(ctx context.Context, baseURL string) (string, error) {
	if r.sealer == nil {
		return "", ErrNotFound
	}
	var row AuthToken
	if err := r.db.GetDB().WithContext(ctx).First(&row, "base_url = ?", baseURL).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("failed to load token: %w", err)
	}
	token, err := r.sealer.Open(row.SealedToken)
	if err != nil {
		return "", fmt.Errorf("failed to open stored token: %w", err)
	}
	return token, nil
}

// DeleteToken forgets the stored token for a backend URL
func (r *Repository) DeleteToken(ctx context.Context, baseURL string) error {
	if err := r.db.GetDB().WithContext(ctx).Delete(&AuthToken{}, "base_url = ?", baseURL).Error; err != nil {
		return fmt.Errorf("failed to delete token: %w", err)
	}
	return nil
}
