// Package pdfsvc lays out report cards as PDF documents.
package pdfsvc

import (
	"bytes"
	"context"
	"fmt"

	"github.com/go-pdf/fpdf"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/excellacademy/academia/core"
	"github.com/excellacademy/academia/core/reportcard"
)

const (
	font       = "Helvetica"
	lineHeight = 8.0
)

var columns = []struct {
	title string
	width float64
	align string
}{
	{"Subject", 70, "L"},
	{"Score", 25, "R"},
	{"Maximum", 25, "R"},
	{"%", 20, "R"},
	{"Remarks", 50, "L"},
}

// Renderer renders report cards with fpdf. Output only depends on the Document.
type Renderer struct {
	logger core.Logger
}

var _ reportcard.Renderer = (*Renderer)(nil)

func NewRenderer(logger core.Logger) *Renderer {
	return &Renderer{logger: logger}
}

func (r *Renderer) Render(ctx context.Context, doc reportcard.Document) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, core.NewExternalServiceError("renderer", err)
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	rec := doc.Record

	pdf.SetCreationDate(doc.GeneratedOn)
	pdf.SetTitle(fmt.Sprintf("Report card - %s - %s %s", doc.StudentName, rec.Term, rec.AcademicYear), true)
	pdf.SetAuthor(doc.SchoolName, true)
	pdf.AddPage()

	pdf.SetFont(font, "B", 16)
	pdf.CellFormat(0, 10, tr(doc.SchoolName), "", 1, "C", false, 0, "")
	pdf.SetFont(font, "", 12)
	pdf.CellFormat(0, lineHeight, tr(fmt.Sprintf("Report card - %s, %s", rec.Term, rec.AcademicYear)), "", 1, "C", false, 0, "")
	pdf.Ln(4)

	pdf.SetFont(font, "", 11)
	for _, kv := range [][2]string{
		{"Student", doc.StudentName},
		{"Class", doc.ClassName},
		{"Generated on", doc.GeneratedOn.Format("02 Jan 2006")},
	} {
		pdf.CellFormat(40, lineHeight, kv[0]+":", "", 0, "L", false, 0, "")
		pdf.CellFormat(0, lineHeight, tr(kv[1]), "", 1, "L", false, 0, "")
	}
	pdf.Ln(4)

	pdf.SetFont(font, "B", 11)
	pdf.SetFillColor(230, 230, 230)
	for _, c := range columns {
		pdf.CellFormat(c.width, lineHeight, c.title, "1", 0, c.align, true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont(font, "", 11)
	for _, line := range doc.Lines {
		cells := []string{line.Subject, num(line.Score), num(line.MaximumScore), num(line.Percentage), line.Remarks}
		for i, c := range columns {
			pdf.CellFormat(c.width, lineHeight, tr(cells[i]), "1", 0, c.align, false, 0, "")
		}
		pdf.Ln(-1)
	}

	pdf.SetFont(font, "B", 11)
	totals := []string{"Total", num(doc.Totals.TotalScore), num(doc.Totals.TotalMaximum), num(doc.Totals.Percentage), ""}
	for i, c := range columns {
		pdf.CellFormat(c.width, lineHeight, totals[i], "1", 0, c.align, false, 0, "")
	}
	pdf.Ln(lineHeight + 4)

	position := "-"
	if rec.ClassPosition.Valid {
		position = fmt.Sprintf("%d", rec.ClassPosition.Int)
	}
	pdf.SetFont(font, "", 11)
	for _, kv := range [][2]string{
		{"Overall grade", string(rec.OverallGrade)},
		{"Percentage", num(rec.Percentage) + "%"},
		{"Class position", position},
		{"Average", num(doc.AveragePercentage) + "%"},
	} {
		pdf.CellFormat(40, lineHeight, kv[0]+":", "", 0, "L", false, 0, "")
		pdf.CellFormat(0, lineHeight, kv[1], "", 1, "L", false, 0, "")
	}
	if rec.Remarks != "" {
		pdf.Ln(4)
		pdf.MultiCell(0, lineHeight, tr("Remarks: "+rec.Remarks), "", "L", false)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		r.logger.Error("rendering report card", err, map[string]interface{}{"report_card": rec.ID})
		return nil, core.NewExternalServiceError("renderer", errors.Wrap(err, "writing pdf"))
	}
	return buf.Bytes(), nil
}

func num(d decimal.Decimal) string {
	return d.StringFixed(2)
}
