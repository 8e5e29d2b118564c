// Package export renders a document's annotation collection into
// interchange formats: CSV for spreadsheets and XFDF for PDF tooling.
package export

import (
	"encoding/csv"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/markline/markline/backend-go/internal/annotation"
)

// WriteCSV writes one row per annotation with document-space geometry.
func WriteCSV(w io.Writer, annos []*annotation.Annotation) error {
	cw := csv.NewWriter(w)

	header := []string{"id", "page", "type", "x", "y", "width", "height", "text", "author", "createdAt", "modifiedAt", "comments"}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	for _, a := range annos {
		row := []string{
			a.ID,
			fmt.Sprintf("%d", a.PageNumber),
			string(a.Type),
			formatFloat(a.X),
			formatFloat(a.Y),
			formatFloat(a.Width),
			formatFloat(a.Height),
			a.Text,
			a.Author,
			a.CreatedAt.UTC().Format(time.RFC3339),
			a.ModifiedAt.UTC().Format(time.RFC3339),
			joinComments(a.Comments),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}

func formatFloat(f float64) string {
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.2f", f), "0"), ".")
}

func joinComments(comments []annotation.Comment) string {
	if len(comments) == 0 {
		return ""
	}
	parts := make([]string, len(comments))
	for i, c := range comments {
		parts[i] = c.Author + ": " + c.Text
	}
	return strings.Join(parts, " | ")
}

// --- XFDF ---

type xfdfDocument struct {
	XMLName xml.Name    `xml:"xfdf"`
	Xmlns   string      `xml:"xmlns,attr"`
	Space   string      `xml:"xml:space,attr"`
	Annots  []xfdfAnnot `xml:"annots>annot"`
}

// xfdfAnnot flattens every variant into one element; the name field picks
// the XFDF annotation tag.
type xfdfAnnot struct {
	XMLName  xml.Name
	Page     int    `xml:"page,attr"`
	Rect     string `xml:"rect,attr"`
	Name     string `xml:"name,attr"`
	Title    string `xml:"title,attr,omitempty"`
	Date     string `xml:"date,attr,omitempty"`
	Color    string `xml:"color,attr,omitempty"`
	Width    string `xml:"width,attr,omitempty"`
	Start    string `xml:"start,attr,omitempty"`
	End      string `xml:"end,attr,omitempty"`
	Contents string `xml:"contents,omitempty"`
	InkList  string `xml:"inklist,omitempty"`
}

// xfdfName maps annotation types onto the closest XFDF element names.
func xfdfName(t annotation.Type) string {
	switch t {
	case annotation.TypeRectangle:
		return "square"
	case annotation.TypeCircle:
		return "circle"
	case annotation.TypeHighlight:
		return "highlight"
	case annotation.TypeFreehand:
		return "ink"
	case annotation.TypeArrow, annotation.TypeMeasurement:
		return "line"
	case annotation.TypeCloud:
		return "polygon"
	case annotation.TypeStamp:
		return "stamp"
	default:
		return "freetext"
	}
}

// WriteXFDF writes the annotation collection as an XFDF document. Page
// indices are 0-based per the XFDF convention.
func WriteXFDF(w io.Writer, annos []*annotation.Annotation) error {
	doc := xfdfDocument{
		Xmlns:  "http://ns.adobe.com/xfdf/",
		Space:  "preserve",
		Annots: make([]xfdfAnnot, 0, len(annos)),
	}

	for _, a := range annos {
		el := xfdfAnnot{
			XMLName:  xml.Name{Local: xfdfName(a.Type)},
			Page:     a.PageNumber - 1,
			Rect:     fmt.Sprintf("%s,%s,%s,%s", formatFloat(a.X), formatFloat(a.Y), formatFloat(a.X+a.Width), formatFloat(a.Y+a.Height)),
			Name:     a.ID,
			Title:    a.Author,
			Date:     a.ModifiedAt.UTC().Format(time.RFC3339),
			Color:    a.Style.StrokeColor,
			Contents: a.Text,
		}
		if a.Style.StrokeWidth > 0 {
			el.Width = formatFloat(a.Style.StrokeWidth)
		}
		if a.Start != nil && a.End != nil {
			el.Start = fmt.Sprintf("%s,%s", formatFloat(a.Start.X), formatFloat(a.Start.Y))
			el.End = fmt.Sprintf("%s,%s", formatFloat(a.End.X), formatFloat(a.End.Y))
		}
		if len(a.Points) > 0 {
			parts := make([]string, len(a.Points))
			for i, p := range a.Points {
				parts[i] = fmt.Sprintf("%s,%s", formatFloat(p.X), formatFloat(p.Y))
			}
			el.InkList = strings.Join(parts, ";")
		}
		doc.Annots = append(doc.Annots, el)
	}

	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode xfdf: %w", err)
	}
	return nil
}
