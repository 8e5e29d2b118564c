package tool

import "github.com/markline/markline/backend-go/internal/annotation"

// Tool identifies the active pointer tool: "select" or one of the
// annotation type tags.
type Tool string

// Select is the manipulation tool; every other tool places new annotations.
const Select Tool = "select"

// ForType returns the placement tool for an annotation type.
func ForType(t annotation.Type) Tool {
	return Tool(t)
}

// AnnotationType returns the type this tool places, and false for select or
// unknown tools.
func (t Tool) AnnotationType() (annotation.Type, bool) {
	at := annotation.Type(t)
	if at.Valid() {
		return at, true
	}
	return "", false
}

// Valid reports whether t is select or a known placement tool.
func (t Tool) Valid() bool {
	if t == Select {
		return true
	}
	_, ok := t.AnnotationType()
	return ok
}

// Properties are the host-supplied style values applied to newly created or
// currently selected annotations.
type Properties struct {
	Color       string  `json:"color"`
	StrokeColor string  `json:"strokeColor"`
	StrokeWidth float64 `json:"strokeWidth"`
	Opacity     float64 `json:"opacity"`
	FontSize    float64 `json:"fontSize"`
	FontFamily  string  `json:"fontFamily"`
}

// DefaultProperties are used until the host pushes its own values.
func DefaultProperties() Properties {
	return Properties{
		Color:       "#d32f2f",
		StrokeColor: "#d32f2f",
		StrokeWidth: 2,
		Opacity:     1,
		FontSize:    14,
		FontFamily:  "Helvetica",
	}
}

// Style converts tool properties into an annotation style.
func (p Properties) Style() annotation.Style {
	return annotation.Style{
		Color:       p.Color,
		StrokeColor: p.StrokeColor,
		StrokeWidth: p.StrokeWidth,
		Opacity:     p.Opacity,
		FontSize:    p.FontSize,
		FontFamily:  p.FontFamily,
	}
}
