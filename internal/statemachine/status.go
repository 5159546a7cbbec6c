package statemachine

import (
	"time"

	"github.com/sjperalta/covenantops-api/internal/models"
)

// DueSoonWindow is how far ahead a deadline starts reading as DUE_SOON
const DueSoonWindow = 14 * 24 * time.Hour

// ComputeStatus derives the status of an obligation from its deadline.
// COMPLETED is sticky and undated obligations never escalate.
func ComputeStatus(current models.ObligationStatus, dueAt *time.Time, now time.Time) models.ObligationStatus {
	if current == models.StatusCompleted {
		return models.StatusCompleted
	}
	if dueAt == nil {
		return models.StatusOnTrack
	}
	if dueAt.Before(now) {
		return models.StatusOverdue
	}
	if !dueAt.After(now.Add(DueSoonWindow)) {
		return models.StatusDueSoon
	}
	return models.StatusOnTrack
}

// Refresh recomputes the status of o in place and returns it
func Refresh(o *models.Obligation, now time.Time) models.ObligationStatus {
	o.Status = ComputeStatus(o.Status, o.DueAt(), now)
	return o.Status
}

// RefreshAll recomputes every obligation in the slice
func RefreshAll(obligations []models.Obligation, now time.Time) {
	for i := range obligations {
		Refresh(&obligations[i], now)
	}
}
