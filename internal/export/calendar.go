package export

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sjperalta/covenantops-api/internal/models"
)

const (
	calendarProdID  = "-//CovenantOps//EN"
	calendarUIDHost = "covenantops.local"
	icsDateLayout   = "20060102"
	icsTimeLayout   = "20060102T150405Z"
	icsLineLimit    = 75
)

// CalendarFilename is the attachment name for a loan's calendar
func CalendarFilename(loanID uint) string {
	return fmt.Sprintf("loan-%d-obligations.ics", loanID)
}

// EventUID is the stable identifier of an obligation's calendar event
func EventUID(obligationID uint) string {
	return fmt.Sprintf("obligation-%d@%s", obligationID, calendarUIDHost)
}

// BuildCalendar renders an iCalendar document with one event per dated
// obligation. Undated obligations are skipped.
func BuildCalendar(loan *models.Loan, obligations []models.Obligation, now time.Time) string {
	var b strings.Builder
	stamp := now.UTC().Format(icsTimeLayout)

	writeLine(&b, "BEGIN:VCALENDAR")
	writeLine(&b, "VERSION:2.0")
	writeLine(&b, "PRODID:"+calendarProdID)
	writeLine(&b, "CALSCALE:GREGORIAN")
	writeLine(&b, "X-WR-CALNAME:"+EscapeText(loan.Title)+" Obligations")

	for i := range obligations {
		o := &obligations[i]
		dueAt := o.DueAt()
		if dueAt == nil {
			continue
		}

		rule := "N/A"
		if o.DueRule != nil && *o.DueRule != "" {
			rule = *o.DueRule
		}
		description := fmt.Sprintf("Type: %s | Status: %s | Rule: %s", o.ObligationType, o.Status, rule)

		writeLine(&b, "BEGIN:VEVENT")
		writeLine(&b, "UID:"+EventUID(o.ID))
		writeLine(&b, "DTSTAMP:"+stamp)
		if o.IsAllDay() {
			writeLine(&b, "DTSTART;VALUE=DATE:"+o.DueDate.Format(icsDateLayout))
		} else {
			writeLine(&b, "DTSTART:"+dueAt.UTC().Format(icsTimeLayout))
		}
		writeLine(&b, "SUMMARY:"+EscapeText(o.Name))
		writeLine(&b, "DESCRIPTION:"+EscapeText(description))
		writeLine(&b, "END:VEVENT")
	}

	writeLine(&b, "END:VCALENDAR")
	return b.String()
}

var icsEscaper = strings.NewReplacer(
	`\`, `\\`,
	"\r\n", `\n`,
	"\n", `\n`,
	",", `\,`,
	";", `\;`,
)

// EscapeText escapes an iCalendar TEXT value
func EscapeText(s string) string {
	return icsEscaper.Replace(s)
}

func writeLine(b *strings.Builder, line string) {
	b.WriteString(foldLine(line))
	b.WriteString("\r\n")
}

// foldLine splits content lines longer than 75 octets. Continuation lines
// start with a single space and runes are never split.
func foldLine(line string) string {
	if len(line) <= icsLineLimit {
		return line
	}

	var b strings.Builder
	limit := icsLineLimit
	for len(line) > limit {
		cut := limit
		for cut > 0 && !utf8.RuneStart(line[cut]) {
			cut--
		}
		b.WriteString(line[:cut])
		b.WriteString("\r\n ")
		line = line[cut:]
		limit = icsLineLimit - 1
	}
	b.WriteString(line)
	return b.String()
}
