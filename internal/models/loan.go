package models

import (
	"time"
)

// Loan is a credit facility whose documents give rise to obligations
type Loan struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Title     string    `gorm:"size:255;not null" json:"title"`
	RawText   *string   `gorm:"type:text" json:"-"`
	CreatedAt time.Time `gorm:"not null;index" json:"created_at"`

	// Associations
	Obligations []Obligation `gorm:"foreignKey:LoanID;constraint:OnDelete:CASCADE" json:"-"`
}

// TableName specifies the table name for Loan
func (Loan) TableName() string {
	return "loans"
}

// HasText reports whether source text has been imported
func (l *Loan) HasText() bool {
	return l.RawText != nil && *l.RawText != ""
}

// LoanSummary counts obligations by computed status
type LoanSummary struct {
	Total     int `json:"total"`
	DueSoon   int `json:"due_soon"`
	Overdue   int `json:"overdue"`
	OnTrack   int `json:"on_track"`
	Completed int `json:"completed"`
}

// Add tallies one obligation status
func (s *LoanSummary) Add(status ObligationStatus) {
	s.Total++
	switch status {
	case StatusDueSoon:
		s.DueSoon++
	case StatusOverdue:
		s.Overdue++
	case StatusOnTrack:
		s.OnTrack++
	case StatusCompleted:
		s.Completed++
	}
}

// LoanDetailResponse is the JSON response for a single loan
type LoanDetailResponse struct {
	ID        uint        `json:"id"`
	Title     string      `json:"title"`
	CreatedAt time.Time   `json:"created_at"`
	HasText   bool        `json:"has_text"`
	Summary   LoanSummary `json:"summary"`
}

// ToDetailResponse converts Loan to LoanDetailResponse
func (l *Loan) ToDetailResponse(summary LoanSummary) LoanDetailResponse {
	return LoanDetailResponse{
		ID:        l.ID,
		Title:     l.Title,
		CreatedAt: l.CreatedAt,
		HasText:   l.HasText(),
		Summary:   summary,
	}
}
