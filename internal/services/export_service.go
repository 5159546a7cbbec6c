package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sjperalta/covenantops-api/internal/export"
	"github.com/sjperalta/covenantops-api/internal/models"
	"github.com/sjperalta/covenantops-api/internal/repository"
)

// ErrPDFDisabled is returned when HTML-to-PDF conversion is not configured
var ErrPDFDisabled = errors.New("pdf conversion is disabled")

// Document is a rendered export ready to be sent as an attachment
type Document struct {
	Filename    string
	ContentType string
	Body        []byte
}

// ExportService builds calendar and report exports from a fresh snapshot
type ExportService struct {
	repos       *repository.Repositories
	loans       *LoanService
	obligations *ObligationService
	pdfEnabled  bool
	now         func() time.Time
}

func NewExportService(repos *repository.Repositories, loans *LoanService, obligations *ObligationService, pdfEnabled bool, now func() time.Time) *ExportService {
	return &ExportService{repos: repos, loans: loans, obligations: obligations, pdfEnabled: pdfEnabled, now: now}
}

type snapshot struct {
	loan        *models.Loan
	obligations []models.Obligation
	evidence    map[uint][]models.Evidence
}

func (s *ExportService) snapshot(ctx context.Context, loanID uint, withEvidence bool) (*snapshot, error) {
	loan, err := s.loans.Get(ctx, loanID)
	if err != nil {
		return nil, err
	}
	obligations, err := s.obligations.listFresh(ctx, s.repos, loanID)
	if err != nil {
		return nil, err
	}

	snap := &snapshot{loan: loan, obligations: obligations}
	if withEvidence {
		ids := make([]uint, len(obligations))
		for i, o := range obligations {
			ids[i] = o.ID
		}
		snap.evidence, err = s.repos.Evidence.FindByObligations(ctx, ids)
		if err != nil {
			return nil, err
		}
	}
	return snap, nil
}

func (snap *snapshot) evidenceCounts() map[uint]int {
	counts := make(map[uint]int, len(snap.evidence))
	for id, files := range snap.evidence {
		counts[id] = len(files)
	}
	return counts
}

// Calendar exports the loan's dated obligations as iCalendar
func (s *ExportService) Calendar(ctx context.Context, loanID uint) (*Document, error) {
	snap, err := s.snapshot(ctx, loanID, false)
	if err != nil {
		return nil, err
	}
	return &Document{
		Filename:    export.CalendarFilename(loanID),
		ContentType: "text/calendar; charset=utf-8",
		Body:        []byte(export.BuildCalendar(snap.loan, snap.obligations, s.now())),
	}, nil
}

// PacketHTML renders the compliance packet. Evidence links point at apiBase.
func (s *ExportService) PacketHTML(ctx context.Context, loanID uint, apiBase string) ([]byte, error) {
	packet, err := s.packet(ctx, loanID, apiBase)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := export.RenderPacket(&buf, packet); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// PacketPDF renders the compliance packet through wkhtmltopdf
func (s *ExportService) PacketPDF(ctx context.Context, loanID uint, apiBase string) (*Document, error) {
	if !s.pdfEnabled {
		return nil, ErrPDFDisabled
	}
	packet, err := s.packet(ctx, loanID, apiBase)
	if err != nil {
		return nil, err
	}
	body, err := export.PacketPDF(packet)
	if err != nil {
		return nil, err
	}
	return &Document{
		Filename:    fmt.Sprintf("loan-%d-compliance-packet.pdf", loanID),
		ContentType: "application/pdf",
		Body:        body,
	}, nil
}

func (s *ExportService) packet(ctx context.Context, loanID uint, apiBase string) (export.Packet, error) {
	snap, err := s.snapshot(ctx, loanID, true)
	if err != nil {
		return export.Packet{}, err
	}
	return export.NewPacket(snap.loan, snap.obligations, snap.evidence, apiBase, s.now()), nil
}

// SchedulePDF draws the obligation schedule without external tools
func (s *ExportService) SchedulePDF(ctx context.Context, loanID uint) (*Document, error) {
	snap, err := s.snapshot(ctx, loanID, true)
	if err != nil {
		return nil, err
	}
	body, err := export.SchedulePDF(snap.loan, snap.obligations, snap.evidenceCounts(), s.now())
	if err != nil {
		return nil, err
	}
	return &Document{
		Filename:    export.ScheduleFilename(loanID),
		ContentType: "application/pdf",
		Body:        body,
	}, nil
}

// RegisterXLSX exports the obligation register workbook
func (s *ExportService) RegisterXLSX(ctx context.Context, loanID uint) (*Document, error) {
	snap, err := s.snapshot(ctx, loanID, true)
	if err != nil {
		return nil, err
	}
	body, err := export.RegisterXLSX(snap.loan, snap.obligations, snap.evidenceCounts(), s.now())
	if err != nil {
		return nil, err
	}
	return &Document{
		Filename:    export.RegisterFilename(loanID),
		ContentType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		Body:        body,
	}, nil
}
