package database

import (
	"time"
)

// Save attempt outcomes recorded in ProgressRecord.Status
const (
	StatusSaved  = "saved"
	StatusFailed = "failed"
)

// ProgressRecord is one progress save attempt. It is history only, nothing
// replays failed rows.
type ProgressRecord struct {
	ID        uint   `gorm:"primaryKey"`
	BookID    int    `gorm:"index;not null"`
	SessionID string `gorm:"index"`
	Position  int
	Total     int
	Percent   int
	Status    string `gorm:"not null"`
	Error     string
	CreatedAt time.Time `gorm:"index"`
}

// CachedDocument indexes a downloaded document file
type CachedDocument struct {
	BookID    int    `gorm:"primaryKey;autoIncrement:false"`
	Name      string
	Format    string `gorm:"not null"`
	Path      string `gorm:"not null"`
	Size      int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// AuthToken is the bearer token stored by login for one backend URL. The
// token is sealed before it reaches this table.
type AuthToken struct {
	BaseURL     string `gorm:"primaryKey"`
	Username    string
	UserID      int
	SealedToken string `gorm:"not null"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
