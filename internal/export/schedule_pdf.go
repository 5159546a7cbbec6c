package export

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/sjperalta/covenantops-api/internal/models"
)

// ScheduleFilename is the attachment name for a loan's schedule PDF
func ScheduleFilename(loanID uint) string {
	return fmt.Sprintf("loan-%d-schedule.pdf", loanID)
}

var scheduleColumns = []struct {
	title string
	width float64
}{
	{"Obligation", 90},
	{"Type", 30},
	{"Frequency", 30},
	{"Due", 45},
	{"Status", 30},
	{"Evidence", 22},
}

// SchedulePDF draws a one-table obligation schedule. It needs no external binary.
func SchedulePDF(loan *models.Loan, obligations []models.Obligation, evidenceCounts map[uint]int, now time.Time) ([]byte, error) {
	pdf := gofpdf.New("L", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle("Obligation Schedule - "+loan.Title, true)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 16)
	pdf.Cell(0, 10, tr("Obligation Schedule"))
	pdf.Ln(9)

	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, tr("Loan: "+loan.Title))
	pdf.Ln(5)
	pdf.Cell(0, 6, "Generated: "+now.UTC().Format("2006-01-02 15:04 UTC"))
	pdf.Ln(10)

	pdf.SetFont("Arial", "B", 10)
	pdf.SetFillColor(224, 224, 224)
	for _, col := range scheduleColumns {
		pdf.CellFormat(col.width, 8, col.title, "1", 0, "L", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Arial", "", 9)
	if len(obligations) == 0 {
		pdf.CellFormat(0, 8, "No obligations recorded for this loan.", "1", 1, "L", false, 0, "")
	}
	for _, o := range obligations {
		values := []string{
			tr(truncate(o.Name, 55)),
			Label(o.ObligationType),
			Label(o.Frequency),
			DueLabel(o),
			Label(o.Status),
			fmt.Sprintf("%d", evidenceCounts[o.ID]),
		}
		for i, col := range scheduleColumns {
			pdf.CellFormat(col.width, 7, values[i], "1", 0, "L", false, 0, "")
		}
		pdf.Ln(-1)
	}

	buf := new(bytes.Buffer)
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("failed to write schedule pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
