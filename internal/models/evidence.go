package models

import (
	"time"
)

// Evidence is an uploaded file demonstrating fulfilment of an obligation.
// The bytes live in storage; this row is the metadata.
type Evidence struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	ObligationID uint      `gorm:"not null;index" json:"obligation_id"`
	Filename     string    `gorm:"size:255;not null" json:"filename"`
	FilePath     string    `gorm:"size:1024;not null" json:"file_path"`
	ContentType  string    `gorm:"size:255" json:"content_type"`
	SizeBytes    int64     `json:"size_bytes"`
	Checksum     string    `gorm:"size:64" json:"checksum"`
	Note         *string   `gorm:"type:text" json:"note"`
	UploadedAt   time.Time `gorm:"not null;index" json:"uploaded_at"`
}

// TableName specifies the table name for Evidence
func (Evidence) TableName() string {
	return "evidence"
}
