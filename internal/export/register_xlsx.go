package export

import (
	"fmt"
	"time"

	"github.com/sjperalta/covenantops-api/internal/models"
	"github.com/xuri/excelize/v2"
)

const registerSheet = "Obligations"

// RegisterFilename is the attachment name for a loan's register workbook
func RegisterFilename(loanID uint) string {
	return fmt.Sprintf("loan-%d-register.xlsx", loanID)
}

var registerHeader = []any{
	"ID", "Obligation", "Type", "Frequency", "Party", "Due date", "Next due (UTC)",
	"Due rule", "Status", "Confidence", "Evidence files",
}

// RegisterXLSX writes one row per obligation
func RegisterXLSX(loan *models.Loan, obligations []models.Obligation, evidenceCounts map[uint]int, now time.Time) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", registerSheet); err != nil {
		return nil, err
	}

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E0E0E0"}, Pattern: 1},
	})
	titleStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 14},
	})

	_ = f.SetCellValue(registerSheet, "A1", loan.Title+" Obligations")
	_ = f.SetCellStyle(registerSheet, "A1", "A1", titleStyle)
	_ = f.SetCellValue(registerSheet, "A2", "Generated "+now.UTC().Format("2006-01-02 15:04 UTC"))

	if err := f.SetSheetRow(registerSheet, "A4", &registerHeader); err != nil {
		return nil, err
	}
	lastCol, _ := excelize.ColumnNumberToName(len(registerHeader))
	_ = f.SetCellStyle(registerSheet, "A4", lastCol+"4", headerStyle)

	for i, o := range obligations {
		row := []any{
			o.ID,
			o.Name,
			string(o.ObligationType),
			string(o.Frequency),
			o.PartyResponsible,
			optional(o.DueDate, func(d models.Date) any { return d.String() }),
			optional(o.NextDueAt, func(t time.Time) any { return t.UTC().Format("2006-01-02 15:04") }),
			optional(o.DueRule, func(s string) any { return s }),
			string(o.Status),
			optional(o.Confidence, func(c float64) any { return c }),
			evidenceCounts[o.ID],
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+5)
		if err := f.SetSheetRow(registerSheet, cell, &row); err != nil {
			return nil, err
		}
	}

	_ = f.SetColWidth(registerSheet, "B", "B", 45)
	_ = f.SetColWidth(registerSheet, "H", "H", 40)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write register: %w", err)
	}
	return buf.Bytes(), nil
}

func optional[T any](p *T, format func(T) any) any {
	if p == nil {
		return ""
	}
	return format(*p)
}
