// Package render draws a saved recipe onto a single PDF page.
package render

import (
	"bytes"
	"fmt"
	"os"

	"github.com/go-pdf/fpdf"

	apperrors "github.com/socialchef/recipewizard/internal/errors"
)

const fontFamily = "RecipeFont"

// Page layout in points, measured from the top of an A4 page.
const (
	leftMargin     = 100.0
	itemIndent     = 120.0
	rightMargin    = 50.0
	titleY         = 42.0
	ingredientsY   = 62.0
	firstItemY     = 82.0
	lineStep       = 20.0
	instructionsLH = 12.0

	titleSize       = 16.0
	ingredientsSize = 12.0
	instructionSize = 10.0
)

type Renderer struct {
	font []byte
}

// NewRenderer reads the TrueType font at path. A missing or unusable font is
// a FontLoadError; the service cannot save recipes without it.
func NewRenderer(path string) (*Renderer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperrors.NewFontLoadError(path, err)
	}
	return newRenderer(path, data)
}

// NewRendererFromBytes is NewRenderer for font data already in memory.
func NewRendererFromBytes(font []byte) (*Renderer, error) {
	return newRenderer("<memory>", font)
}

// newRenderer selects the font on a scratch page. fpdf only logs a parse
// failure when the font is added; selecting it is what reports the error.
func newRenderer(source string, font []byte) (*Renderer, error) {
	if len(font) == 0 {
		return nil, apperrors.NewFontLoadError(source, fmt.Errorf("empty font data"))
	}
	r := &Renderer{font: font}
	pdf := r.newDocument()
	pdf.AddPage()
	pdf.SetFont(fontFamily, "", titleSize)
	if pdf.Err() {
		return nil, apperrors.NewFontLoadError(source, pdf.Error())
	}
	return r, nil
}

func (r *Renderer) newDocument() *fpdf.Fpdf {
	pdf := fpdf.New("P", "pt", "A4", "")
	pdf.AddUTF8FontFromBytes(fontFamily, "", r.font)
	// One page only: anything below the bottom edge is clipped.
	pdf.SetAutoPageBreak(false, 0)
	return pdf
}

// FileName is the artifact name for a recipe.
func FileName(recipeName string) string {
	return recipeName + ".pdf"
}

// Render lays out the title, one ingredient per line and the wrapped
// instructions on one A4 page and returns the PDF bytes.
func (r *Renderer) Render(name string, ingredients []string, instructions string) ([]byte, error) {
	pdf := r.newDocument()
	pdf.AddPage()

	pageWidth, _ := pdf.GetPageSize()

	pdf.SetFont(fontFamily, "", titleSize)
	pdf.Text(leftMargin, titleY, name)

	pdf.SetFont(fontFamily, "", ingredientsSize)
	pdf.Text(leftMargin, ingredientsY, "Ingredients:")
	y := firstItemY
	for _, ingredient := range ingredients {
		pdf.Text(itemIndent, y, ingredient)
		y += lineStep
	}

	pdf.SetFont(fontFamily, "", instructionSize)
	pdf.Text(leftMargin, y+lineStep, "Instructions:")
	y += 2 * lineStep

	// MultiCell positions by the top of the first line, Text by its baseline.
	pdf.SetXY(itemIndent, y-instructionSize)
	pdf.MultiCell(pageWidth-itemIndent-rightMargin, instructionsLH, instructions, "", "L", false)

	if pdf.Err() {
		return nil, apperrors.NewInternalError("failed to render recipe document", pdf.Error())
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, apperrors.NewInternalError("failed to write recipe document", err)
	}
	return buf.Bytes(), nil
}
