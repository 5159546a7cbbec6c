package models

import (
	"time"
)

// ObligationType classifies what kind of duty an obligation is
type ObligationType string

const (
	ObligationTypeReporting   ObligationType = "REPORTING"
	ObligationTypeCovenant    ObligationType = "COVENANT"
	ObligationTypeNotice      ObligationType = "NOTICE"
	ObligationTypeInformation ObligationType = "INFORMATION"
	ObligationTypeEvent       ObligationType = "EVENT"
)

// Valid reports whether t is a known obligation type
func (t ObligationType) Valid() bool {
	switch t {
	case ObligationTypeReporting, ObligationTypeCovenant, ObligationTypeNotice,
		ObligationTypeInformation, ObligationTypeEvent:
		return true
	}
	return false
}

// Frequency is how often an obligation recurs
type Frequency string

const (
	FrequencyOnce       Frequency = "ONCE"
	FrequencyDaily      Frequency = "DAILY"
	FrequencyWeekly     Frequency = "WEEKLY"
	FrequencyMonthly    Frequency = "MONTHLY"
	FrequencyQuarterly  Frequency = "QUARTERLY"
	FrequencySemiAnnual Frequency = "SEMI_ANNUAL"
	FrequencyAnnual     Frequency = "ANNUAL"
	FrequencyAdHoc      Frequency = "AD_HOC"
)

// Valid reports whether f is a known frequency
func (f Frequency) Valid() bool {
	switch f {
	case FrequencyOnce, FrequencyDaily, FrequencyWeekly, FrequencyMonthly,
		FrequencyQuarterly, FrequencySemiAnnual, FrequencyAnnual, FrequencyAdHoc:
		return true
	}
	return false
}

// ObligationStatus is the due-state of an obligation
type ObligationStatus string

const (
	StatusOnTrack   ObligationStatus = "ON_TRACK"
	StatusDueSoon   ObligationStatus = "DUE_SOON"
	StatusOverdue   ObligationStatus = "OVERDUE"
	StatusCompleted ObligationStatus = "COMPLETED"
)

// AllStatuses lists every status in display order
var AllStatuses = []ObligationStatus{StatusOnTrack, StatusDueSoon, StatusOverdue, StatusCompleted}

// Valid reports whether s is a known status
func (s ObligationStatus) Valid() bool {
	switch s {
	case StatusOnTrack, StatusDueSoon, StatusOverdue, StatusCompleted:
		return true
	}
	return false
}

// Obligation is a tracked duty or covenant tied to a loan
type Obligation struct {
	ID               uint             `gorm:"primaryKey" json:"id"`
	LoanID           uint             `gorm:"not null;index" json:"loan_id"`
	Name             string           `gorm:"size:255;not null" json:"name"`
	ObligationType   ObligationType   `gorm:"size:50;not null" json:"obligation_type"`
	Description      string           `gorm:"type:text;not null" json:"description"`
	PartyResponsible string           `gorm:"size:100;not null" json:"party_responsible"`
	Frequency        Frequency        `gorm:"size:50;not null" json:"frequency"`
	DueDate          *Date            `json:"due_date"`
	DueRule          *string          `gorm:"size:255" json:"due_rule"`
	NextDueAt        *time.Time       `json:"next_due_at"`
	Status           ObligationStatus `gorm:"size:50;not null;index" json:"status"`
	Confidence       *float64         `json:"confidence"`
	SourceExcerpt    *string          `gorm:"type:text" json:"source_excerpt"`
	SourcePage       *int             `json:"source_page"`
	CreatedAt        time.Time        `gorm:"not null;index" json:"created_at"`
	UpdatedAt        time.Time        `gorm:"not null;autoUpdateTime:false" json:"updated_at"`

	// Associations
	Evidence []Evidence `gorm:"foreignKey:ObligationID;constraint:OnDelete:CASCADE" json:"-"`
}

// TableName specifies the table name for Obligation
func (Obligation) TableName() string {
	return "obligations"
}

// DueAt resolves the deadline: next_due_at wins, then the end of due_date.
// Nil means the obligation is undated.
func (o *Obligation) DueAt() *time.Time {
	if o.NextDueAt != nil {
		t := o.NextDueAt.UTC()
		return &t
	}
	if o.DueDate != nil {
		t := o.DueDate.EndOfDay()
		return &t
	}
	return nil
}

// IsAllDay reports whether the deadline is a bare calendar date
func (o *Obligation) IsAllDay() bool {
	return o.DueDate != nil && o.NextDueAt == nil
}

// IsCompleted returns true if the obligation was explicitly completed
func (o *Obligation) IsCompleted() bool {
	return o.Status == StatusCompleted
}
