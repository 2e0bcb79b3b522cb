package stages

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/jung-kurt/gofpdf"

	"git.home.luguber.info/inful/bookbuilder/internal/book"
)

var headingSizes = map[string]float64{"h1": 18, "h2": 15, "h3": 13, "h4": 12, "h5": 11, "h6": 10}

// writePDF renders the text of every page into one PDF, each page starting
// on a new sheet. Headings, paragraphs, list items and preformatted blocks
// are kept; styling is not.
func writePDF(path, title string, files []*book.File) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetAutoPageBreak(true, 15)
	if title != "" {
		pdf.SetTitle(title, true)
	}
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	for _, f := range files {
		doc, err := f.Document()
		if err != nil {
			return err
		}
		pdf.AddPage()
		doc.Find("h1, h2, h3, h4, h5, h6, p, li, pre").Each(func(_ int, s *goquery.Selection) {
			tag := goquery.NodeName(s)
			switch {
			case tag == "pre":
				pdf.SetFont("Courier", "", 9)
				pdf.SetFillColor(245, 245, 245)
				pdf.MultiCell(0, 4.5, tr(s.Text()), "", "L", true)
				pdf.Ln(2)
			case tag == "li":
				item := s.Clone()
				item.Find("ol, ul").Remove()
				pdf.SetFont("Helvetica", "", 10)
				pdf.MultiCell(0, 5, tr("- "+collapse(item.Text())), "", "L", false)
			case headingSizes[tag] > 0:
				size := headingSizes[tag]
				pdf.Ln(4)
				pdf.SetFont("Helvetica", "B", size)
				pdf.MultiCell(0, size*0.6, tr(collapse(s.Text())), "", "L", false)
				pdf.Ln(2)
			default:
				if s.ParentsFiltered("li").Length() > 0 {
					return
				}
				pdf.SetFont("Helvetica", "", 10)
				pdf.MultiCell(0, 5, tr(collapse(s.Text())), "", "L", false)
				pdf.Ln(3)
			}
		})
	}
	if err := pdf.OutputFileAndClose(path); err != nil {
		return fsError(err, "failed to write pdf", path)
	}
	return nil
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
