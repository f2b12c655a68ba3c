// Package render lays out participation certificates as PDF documents.
//
// Placement is computed from the page size and the template's content box only. Each
// line is drawn on a single line: one that is too wide shrinks toward its minimum size
// and fails with a RenderError if it still does not fit. Output is byte-for-byte
// deterministic for the same record and template.
package render

import (
	"bytes"
	"fmt"

	"github.com/go-pdf/fpdf"
	"golang.org/x/text/encoding/charmap"

	"github.com/jnst/certificate-issuance/internal/model"
)

// ContentTypePDF is the media type of rendered certificates.
const ContentTypePDF = "application/pdf"

const shrinkStep = 0.5

// Renderer renders certificates from one template.
type Renderer struct {
	tmpl   CertificateTemplate
	digest string
}

// New validates tmpl against the page and returns a Renderer for it.
func New(tmpl CertificateTemplate) (*Renderer, error) {
	if err := tmpl.Validate(); err != nil {
		return nil, err
	}

	pdf := tmpl.newPDF()
	if pdf.Err() {
		return nil, fmt.Errorf("invalid template page: %w", pdf.Error())
	}

	pdf.SetFont(tmpl.FontFamily, "", 12)
	if pdf.Err() {
		return nil, fmt.Errorf("invalid template font: %w", pdf.Error())
	}

	pageW, pageH := pdf.GetPageSize()
	if tmpl.Box.Width > pageW || tmpl.Box.Height+2*abs(tmpl.Box.OffsetY) > pageH {
		return nil, fmt.Errorf("invalid template: content box %gx%g does not fit page %gx%g",
			tmpl.Box.Width, tmpl.Box.Height, pageW, pageH)
	}

	return &Renderer{tmpl: tmpl, digest: tmpl.Digest()}, nil
}

// Template returns the template the renderer was built with.
func (r *Renderer) Template() CertificateTemplate {
	return r.tmpl
}

type placedLine struct {
	text   string
	size   float64
	height float64
	gap    float64
}

// Render produces the certificate for rec.
func (r *Renderer) Render(rec model.ParticipantRecord) (model.CertificateDocument, error) {
	pdf := r.tmpl.newPDF()
	pdf.SetCreationDate(rec.EventDate)
	pdf.SetModificationDate(rec.EventDate)
	pdf.SetTitle(r.tmpl.Title, true)
	pdf.SetSubject(rec.EventName, true)
	pdf.SetAuthor(r.tmpl.Organizer, true)
	pdf.AddPage()

	lines, err := r.layout(pdf, rec)
	if err != nil {
		return model.CertificateDocument{}, err
	}

	pageW, pageH := pdf.GetPageSize()
	x := (pageW - r.tmpl.Box.Width) / 2
	y := (pageH-r.tmpl.Box.Height)/2 + r.tmpl.Box.OffsetY

	c := r.tmpl.TextColor
	pdf.SetTextColor(c[0], c[1], c[2])

	for _, l := range lines {
		y += l.gap
		pdf.SetFont(r.tmpl.FontFamily, "", l.size)
		pdf.SetXY(x, y)
		pdf.CellFormat(r.tmpl.Box.Width, l.height, l.text, "", 0, "C", false, 0, "")
		y += l.height
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return model.CertificateDocument{}, &model.RenderError{Reason: "pdf output failed", Err: err}
	}

	id := model.NewDocumentID(rec, r.digest)

	return model.NewCertificateDocument(id, ContentTypePDF, r.tmpl.AttachmentName, rec, buf.Bytes()), nil
}

func (r *Renderer) layout(pdf *fpdf.Fpdf, rec model.ParticipantRecord) ([]placedLine, error) {
	repl := r.tmpl.replacer(rec)
	encoder := charmap.Windows1252.NewEncoder()

	placed := make([]placedLine, 0, len(r.tmpl.Lines))
	total := 0.0

	for _, line := range r.tmpl.Lines {
		text, err := encoder.String(repl.Replace(line.Text))
		if err != nil {
			return nil, &model.RenderError{Line: line.Name, Reason: "text contains characters the certificate font cannot show", Err: err}
		}

		size, ok := r.fit(pdf, text, line)
		if !ok {
			return nil, &model.RenderError{
				Line:   line.Name,
				Reason: fmt.Sprintf("text wider than %gpt at minimum size %gpt", r.tmpl.Box.Width, line.minSize()),
			}
		}

		height := size * r.tmpl.LineSpacing
		gap := line.SpaceBefore * height
		total += gap + height

		placed = append(placed, placedLine{text: text, size: size, height: height, gap: gap})
	}

	if total > r.tmpl.Box.Height {
		return nil, &model.RenderError{
			Reason: fmt.Sprintf("content height %.1fpt exceeds box height %gpt", total, r.tmpl.Box.Height),
		}
	}

	return placed, nil
}

// fit returns the largest size in half-point steps between the line's minimum and
// nominal size at which text fits the box width.
func (r *Renderer) fit(pdf *fpdf.Fpdf, text string, line Line) (float64, bool) {
	steps := int((line.Size-line.minSize())/shrinkStep + 1e-9)
	for i := 0; i <= steps; i++ {
		size := line.Size - float64(i)*shrinkStep
		pdf.SetFont(r.tmpl.FontFamily, "", size)

		if pdf.GetStringWidth(text) <= r.tmpl.Box.Width {
			return size, true
		}
	}

	return 0, false
}

func (t CertificateTemplate) newPDF() *fpdf.Fpdf {
	pdf := fpdf.New(t.Orientation, "pt", t.PageSize, "")
	pdf.SetCompression(true)
	pdf.SetCatalogSort(true)
	pdf.SetMargins(0, 0, 0)
	pdf.SetAutoPageBreak(false, 0)

	return pdf
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}

	return v
}
