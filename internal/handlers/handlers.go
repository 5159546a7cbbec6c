package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/sjperalta/covenantops-api/internal/config"
	"github.com/sjperalta/covenantops-api/internal/jobs"
	"github.com/sjperalta/covenantops-api/internal/services"
)

// Handlers holds all handler instances
type Handlers struct {
	Health     *HealthHandler
	Loan       *LoanHandler
	Obligation *ObligationHandler
	Evidence   *EvidenceHandler
	Export     *ExportHandler
	Audit      *AuditHandler
	Reminder   *ReminderHandler
}

// NewHandlers creates all handler instances
func NewHandlers(svcs *services.Services, worker *jobs.Worker, cfg *config.Config) *Handlers {
	return &Handlers{
		Health:     NewHealthHandler(worker),
		Loan:       NewLoanHandler(svcs.Loan),
		Obligation: NewObligationHandler(svcs.Obligation, svcs.Evidence, worker),
		Evidence:   NewEvidenceHandler(svcs.Evidence, cfg.MaxUploadBytes),
		Export:     NewExportHandler(svcs.Export),
		Audit:      NewAuditHandler(svcs.Audit),
		Reminder:   NewReminderHandler(svcs.Reminder),
	}
}

// Register mounts the API on group. protect runs in front of every route
// except the health check.
func (h *Handlers) Register(api *gin.RouterGroup, protect ...gin.HandlerFunc) {
	api.GET("/health", h.Health.Index)

	protected := api.Group("", protect...)
	{
		loans := protected.Group("/loans")
		{
			loans.POST("", h.Loan.Create)
			loans.GET("", h.Loan.Index)
			loans.GET("/:id", h.Loan.Show)
			loans.DELETE("/:id", h.Loan.Delete)
			loans.POST("/:id/import-text", h.Loan.ImportText)
			loans.POST("/:id/extract", h.Loan.Extract)

			loans.GET("/:id/obligations", h.Obligation.Index)
			loans.POST("/:id/obligations", h.Obligation.Create)

			loans.GET("/:id/export.ics", h.Export.Calendar)
			loans.GET("/:id/compliance-packet", h.Export.CompliancePacket)
			loans.GET("/:id/export.pdf", h.Export.SchedulePDF)
			loans.GET("/:id/export.xlsx", h.Export.RegisterXLSX)

			loans.POST("/:id/reminders", h.Reminder.Send)
		}

		obligations := protected.Group("/obligations")
		{
			obligations.GET("/:id", h.Obligation.Show)
			obligations.PUT("/:id", h.Obligation.Update)
			obligations.DELETE("/:id", h.Obligation.Delete)
			obligations.POST("/:id/complete", h.Obligation.Complete)
			obligations.POST("/:id/reopen", h.Obligation.Reopen)

			obligations.POST("/:id/evidence", h.Evidence.Upload)
			obligations.GET("/:id/evidence", h.Evidence.Index)
		}

		protected.GET("/evidence/:id/download", h.Evidence.Download)
		protected.GET("/audit", h.Audit.Index)
	}
}
