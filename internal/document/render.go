// Package document renders template schemas to PDF.
package document

import (
	"bytes"
	"fmt"

	"github.com/go-pdf/fpdf"
	"github.com/reqforge/backend/internal/model"
)

const (
	defaultFontSize = 11.0
	fontFamily      = "Helvetica"
	// ptToMM converts a font size to millimetres.
	ptToMM     = 0.3528
	lineFactor = 1.25
)

// Render lays values out on the template's pages. Fields without a value
// render empty; text is clipped to its field box.
func Render(title string, schema model.TemplateSchema, values map[string]string) ([]byte, error) {
	orientation := schema.Orientation
	if orientation == "" {
		orientation = "P"
	}
	size := schema.PageSize
	if size == "" {
		size = "A4"
	}

	pdf := fpdf.New(orientation, "mm", size, "")
	pdf.SetTitle(title, true)
	pdf.SetCreator("reqforge", true)
	pdf.SetAutoPageBreak(false, 0)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pages := schema.Pages
	if len(pages) == 0 {
		pages = []model.TemplatePage{{}}
	}
	for i, page := range pages {
		pdf.AddPage()
		for _, f := range page.Fields {
			drawField(pdf, f, tr(values[f.Name]))
		}
		for _, st := range schema.StaticText {
			if st.Page == i+1 || (st.Page == 0 && i == 0) {
				pdf.SetFont(fontFamily, "", fontSize(st.FontSize))
				pdf.Text(st.X, st.Y, tr(st.Text))
			}
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func fontSize(size float64) float64 {
	if size <= 0 {
		return defaultFontSize
	}
	return size
}

func drawField(pdf *fpdf.Fpdf, f model.TemplateField, text string) {
	size := fontSize(f.FontSize)
	lineHeight := size * ptToMM * lineFactor
	height := f.Height
	if height <= 0 {
		height = lineHeight
	}
	pdf.SetFont(fontFamily, "", size)
	pdf.ClipRect(f.X, f.Y, f.Width, height, false)
	pdf.SetXY(f.X, f.Y)
	if f.Type == model.FieldTypeMultiline {
		pdf.MultiCell(f.Width, lineHeight, text, "", "L", false)
	} else {
		pdf.CellFormat(f.Width, height, text, "", 0, "L", false, 0, "")
	}
	pdf.ClipEnd()
}
