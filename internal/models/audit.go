package models

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"
)

// AuditEntity names the kind of record an audit event refers to
type AuditEntity string

const (
	AuditEntityLoan       AuditEntity = "loan"
	AuditEntityObligation AuditEntity = "obligation"
	AuditEntityEvidence   AuditEntity = "evidence"
)

// AuditAction is what happened to the entity
type AuditAction string

const (
	AuditActionCreated          AuditAction = "CREATED"
	AuditActionUpdated          AuditAction = "UPDATED"
	AuditActionCompleted        AuditAction = "COMPLETED"
	AuditActionEvidenceUploaded AuditAction = "EVIDENCE_UPLOADED"
	AuditActionDeleted          AuditAction = "DELETED"
)

// AuditEvent is an append-only record of a state-changing action.
// LoanID and ObligationID are copied out of the details so the trail can be filtered in SQL.
type AuditEvent struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	EntityType   AuditEntity    `gorm:"size:50;not null;index" json:"entity_type"`
	EntityID     uint           `gorm:"not null;index" json:"entity_id"`
	Action       AuditAction    `gorm:"size:50;not null;index" json:"action"`
	Details      datatypes.JSON `gorm:"not null" json:"details"`
	LoanID       *uint          `gorm:"index" json:"loan_id,omitempty"`
	ObligationID *uint          `gorm:"index" json:"obligation_id,omitempty"`
	At           time.Time      `gorm:"not null;index" json:"at"`
}

// TableName specifies the table name for AuditEvent
func (AuditEvent) TableName() string {
	return "audit_events"
}

// AuditEventResponse keeps details_json for clients that expect the encoded string
type AuditEventResponse struct {
	AuditEvent
	DetailsJSON string `json:"details_json"`
}

// ToResponse converts AuditEvent to AuditEventResponse
func (e *AuditEvent) ToResponse() AuditEventResponse {
	return AuditEventResponse{AuditEvent: *e, DetailsJSON: string(e.Details)}
}

// AuditDetails is the closed set of audit payloads. Each payload knows which
// entity it describes and which action it records.
type AuditDetails interface {
	auditTarget() (AuditEntity, uint)
	auditAction() AuditAction
	auditScope() (loanID, obligationID *uint)
}

// NewAuditEvent encodes a payload into an event stamped at the given time
func NewAuditEvent(details AuditDetails, at time.Time) (*AuditEvent, error) {
	raw, err := json.Marshal(details)
	if err != nil {
		return nil, fmt.Errorf("encode audit details: %w", err)
	}
	entity, id := details.auditTarget()
	loanID, obligationID := details.auditScope()
	return &AuditEvent{
		EntityType:   entity,
		EntityID:     id,
		Action:       details.auditAction(),
		Details:      datatypes.JSON(raw),
		LoanID:       loanID,
		ObligationID: obligationID,
		At:           at.UTC(),
	}, nil
}

// FieldChange is one entry of an update diff
type FieldChange struct {
	From any `json:"from"`
	To   any `json:"to"`
}

// LoanCreated is recorded when a loan is created
type LoanCreated struct {
	LoanID uint   `json:"-"`
	Title  string `json:"title"`
}

func (d LoanCreated) auditTarget() (AuditEntity, uint) { return AuditEntityLoan, d.LoanID }
func (d LoanCreated) auditAction() AuditAction         { return AuditActionCreated }
func (d LoanCreated) auditScope() (*uint, *uint)       { return ptr(d.LoanID), nil }

// LoanTextImported is recorded when source text is attached to a loan
type LoanTextImported struct {
	LoanID        uint `json:"-"`
	RawTextLength int  `json:"raw_text_length"`
}

func (d LoanTextImported) auditTarget() (AuditEntity, uint) { return AuditEntityLoan, d.LoanID }
func (d LoanTextImported) auditAction() AuditAction         { return AuditActionUpdated }
func (d LoanTextImported) auditScope() (*uint, *uint)       { return ptr(d.LoanID), nil }

// LoanDeleted is recorded after a loan and everything under it is removed
type LoanDeleted struct {
	LoanID          uint   `json:"-"`
	Title           string `json:"title"`
	ObligationCount int    `json:"obligation_count"`
}

func (d LoanDeleted) auditTarget() (AuditEntity, uint) { return AuditEntityLoan, d.LoanID }
func (d LoanDeleted) auditAction() AuditAction         { return AuditActionDeleted }
func (d LoanDeleted) auditScope() (*uint, *uint)       { return ptr(d.LoanID), nil }

// ObligationCreated is recorded when an obligation is created
type ObligationCreated struct {
	ObligationID uint      `json:"-"`
	LoanID       uint      `json:"loan_id"`
	Name         string    `json:"name"`
	Frequency    Frequency `json:"frequency"`
}

func (d ObligationCreated) auditTarget() (AuditEntity, uint) {
	return AuditEntityObligation, d.ObligationID
}
func (d ObligationCreated) auditAction() AuditAction { return AuditActionCreated }
func (d ObligationCreated) auditScope() (*uint, *uint) {
	return ptr(d.LoanID), ptr(d.ObligationID)
}

// ObligationUpdated carries the diff of the fields that actually changed
type ObligationUpdated struct {
	ObligationID uint                   `json:"-"`
	LoanID       uint                   `json:"loan_id"`
	Changes      map[string]FieldChange `json:"changes"`
}

func (d ObligationUpdated) auditTarget() (AuditEntity, uint) {
	return AuditEntityObligation, d.ObligationID
}
func (d ObligationUpdated) auditAction() AuditAction { return AuditActionUpdated }
func (d ObligationUpdated) auditScope() (*uint, *uint) {
	return ptr(d.LoanID), ptr(d.ObligationID)
}

// ObligationReopened is recorded when a completed obligation is reopened
type ObligationReopened struct {
	ObligationID uint `json:"-"`
	LoanID       uint `json:"loan_id"`
	Reopened     bool `json:"reopened"`
}

func (d ObligationReopened) auditTarget() (AuditEntity, uint) {
	return AuditEntityObligation, d.ObligationID
}
func (d ObligationReopened) auditAction() AuditAction { return AuditActionUpdated }
func (d ObligationReopened) auditScope() (*uint, *uint) {
	return ptr(d.LoanID), ptr(d.ObligationID)
}

// ObligationCompleted is recorded when an obligation is marked complete
type ObligationCompleted struct {
	ObligationID uint `json:"-"`
	LoanID       uint `json:"loan_id"`
}

func (d ObligationCompleted) auditTarget() (AuditEntity, uint) {
	return AuditEntityObligation, d.ObligationID
}
func (d ObligationCompleted) auditAction() AuditAction { return AuditActionCompleted }
func (d ObligationCompleted) auditScope() (*uint, *uint) {
	return ptr(d.LoanID), ptr(d.ObligationID)
}

// ObligationDeleted keeps the loan id so the trail survives the row
type ObligationDeleted struct {
	ObligationID  uint `json:"-"`
	LoanID        uint `json:"loan_id"`
	EvidenceCount int  `json:"evidence_count"`
}

func (d ObligationDeleted) auditTarget() (AuditEntity, uint) {
	return AuditEntityObligation, d.ObligationID
}
func (d ObligationDeleted) auditAction() AuditAction { return AuditActionDeleted }
func (d ObligationDeleted) auditScope() (*uint, *uint) {
	return ptr(d.LoanID), ptr(d.ObligationID)
}

// EvidenceUploaded is recorded when a file is attached to an obligation
type EvidenceUploaded struct {
	EvidenceID   uint   `json:"-"`
	LoanID       uint   `json:"loan_id"`
	ObligationID uint   `json:"obligation_id"`
	Filename     string `json:"filename"`
}

func (d EvidenceUploaded) auditTarget() (AuditEntity, uint) {
	return AuditEntityEvidence, d.EvidenceID
}
func (d EvidenceUploaded) auditAction() AuditAction { return AuditActionEvidenceUploaded }
func (d EvidenceUploaded) auditScope() (*uint, *uint) {
	return ptr(d.LoanID), ptr(d.ObligationID)
}

func ptr(v uint) *uint {
	return &v
}
