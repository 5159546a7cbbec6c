package export

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/SebastiaanKlippert/go-wkhtmltopdf"
	"github.com/sjperalta/covenantops-api/internal/models"
)

//go:embed templates/*.html
var templates embed.FS

var packetTemplate = template.Must(
	template.New("packet.html").Funcs(template.FuncMap{
		"label":     func(v any) string { return Label(fmt.Sprint(v)) },
		"due":       DueLabel,
		"timestamp": func(t time.Time) string { return t.UTC().Format("2006-01-02 15:04 UTC") },
	}).ParseFS(templates, "templates/packet.html"),
)

// PacketItem is one obligation with its evidence
type PacketItem struct {
	Obligation models.Obligation
	Evidence   []models.Evidence
}

// Packet is everything the compliance packet shows
type Packet struct {
	Loan        *models.Loan
	Items       []PacketItem
	Summary     models.LoanSummary
	APIBase     string
	GeneratedAt string
	Interactive bool
}

// NewPacket assembles a packet from obligations and their grouped evidence
func NewPacket(loan *models.Loan, obligations []models.Obligation, evidence map[uint][]models.Evidence, apiBase string, now time.Time) Packet {
	p := Packet{
		Loan:        loan,
		Items:       make([]PacketItem, 0, len(obligations)),
		APIBase:     apiBase,
		GeneratedAt: now.UTC().Format("2006-01-02 15:04 UTC"),
		Interactive: true,
	}
	for _, o := range obligations {
		p.Items = append(p.Items, PacketItem{Obligation: o, Evidence: evidence[o.ID]})
		p.Summary.Add(o.Status)
	}
	return p
}

// RenderPacket writes the packet as HTML. All loan, obligation and evidence
// text is escaped by html/template.
func RenderPacket(w io.Writer, p Packet) error {
	if err := packetTemplate.Execute(w, p); err != nil {
		return fmt.Errorf("failed to render compliance packet: %w", err)
	}
	return nil
}

// DueLabel formats the deadline shown for an obligation
func DueLabel(o models.Obligation) string {
	switch {
	case o.NextDueAt != nil:
		return o.NextDueAt.UTC().Format("2006-01-02 15:04 UTC")
	case o.DueDate != nil:
		return o.DueDate.String()
	default:
		return "Not scheduled"
	}
}

// PacketPDF renders the packet and converts it with wkhtmltopdf, which must
// be installed on the host.
func PacketPDF(p Packet) ([]byte, error) {
	p.Interactive = false

	var html bytes.Buffer
	if err := RenderPacket(&html, p); err != nil {
		return nil, err
	}

	pdfg, err := wkhtmltopdf.NewPDFGenerator()
	if err != nil {
		return nil, fmt.Errorf("failed to create pdf generator: %w", err)
	}

	pdfg.Dpi.Set(300)
	pdfg.Orientation.Set(wkhtmltopdf.OrientationLandscape)
	pdfg.PageSize.Set(wkhtmltopdf.PageSizeA4)
	pdfg.Title.Set("Compliance Packet - " + p.Loan.Title)

	page := wkhtmltopdf.NewPageReader(bytes.NewReader(html.Bytes()))
	pdfg.AddPage(page)

	if err := pdfg.Create(); err != nil {
		return nil, fmt.Errorf("failed to create pdf: %w", err)
	}
	return pdfg.Bytes(), nil
}
