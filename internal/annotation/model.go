package annotation

import (
	"time"

	"github.com/markline/markline/backend-go/internal/geom"
)

// Type tags the annotation variant. The tag decides which of the optional
// fields on Annotation are meaningful.
type Type string

const (
	TypeText        Type = "text"
	TypeRectangle   Type = "rectangle"
	TypeCircle      Type = "circle"
	TypeArrow       Type = "arrow"
	TypeCloud       Type = "cloud"
	TypeHighlight   Type = "highlight"
	TypeMeasurement Type = "measurement"
	TypeStamp       Type = "stamp"
	TypeFreehand    Type = "freehand"
	TypeCallout     Type = "callout"
)

// Types lists every annotation type tag.
var Types = []Type{
	TypeText, TypeRectangle, TypeCircle, TypeArrow, TypeCloud,
	TypeHighlight, TypeMeasurement, TypeStamp, TypeFreehand, TypeCallout,
}

// Valid reports whether t is a known annotation type tag.
func (t Type) Valid() bool {
	for _, k := range Types {
		if t == k {
			return true
		}
	}
	return false
}

// SingleShot reports whether placing an annotation of this type is a
// single-click gesture after which the active tool reverts to select.
func (t Type) SingleShot() bool {
	return t == TypeText || t == TypeStamp
}

// Style holds the visual properties shared by all annotation types.
type Style struct {
	Color       string  `json:"color"`
	StrokeColor string  `json:"strokeColor"`
	StrokeWidth float64 `json:"strokeWidth"`
	Opacity     float64 `json:"opacity"`
	FontSize    float64 `json:"fontSize,omitempty"`
	FontFamily  string  `json:"fontFamily,omitempty"`
}

// Comment is a threaded note attached to an annotation. Insertion order is
// significant and preserved.
type Comment struct {
	ID        string    `json:"id"`
	Author    string    `json:"author"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
}

// Annotation is the persisted unit of markup. All geometry is in document
// space: page-local units independent of the current zoom. Render-space
// geometry is always derived from these values, never stored.
type Annotation struct {
	ID         string `json:"id"`
	Type       Type   `json:"type"`
	PageNumber int    `json:"pageNumber"` // 1-based

	// Bounding geometry in document space.
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`

	Style Style `json:"style"`

	// Variant-specific fields.
	Text          string       `json:"text,omitempty"`          // text, callout, stamp label
	Start         *geom.Point  `json:"start,omitempty"`         // arrow, measurement
	End           *geom.Point  `json:"end,omitempty"`           // arrow, measurement
	Points        []geom.Point `json:"points,omitempty"`        // freehand path
	ScallopRadius float64      `json:"scallopRadius,omitempty"` // cloud scallop density

	Author     string    `json:"author"`
	CreatedAt  time.Time `json:"createdAt"`
	ModifiedAt time.Time `json:"modifiedAt"`

	Comments []Comment `json:"comments,omitempty"`
}

// Bounds returns the document-space bounding rect.
func (a *Annotation) Bounds() geom.Rect {
	return geom.Rect{X: a.X, Y: a.Y, Width: a.Width, Height: a.Height}
}

// SetBounds replaces the document-space bounding rect.
func (a *Annotation) SetBounds(r geom.Rect) {
	a.X, a.Y, a.Width, a.Height = r.X, r.Y, r.Width, r.Height
}

// Clone returns a deep copy of the annotation.
func (a *Annotation) Clone() *Annotation {
	c := *a
	if a.Start != nil {
		p := *a.Start
		c.Start = &p
	}
	if a.End != nil {
		p := *a.End
		c.End = &p
	}
	if a.Points != nil {
		c.Points = make([]geom.Point, len(a.Points))
		copy(c.Points, a.Points)
	}
	if a.Comments != nil {
		c.Comments = make([]Comment, len(a.Comments))
		copy(c.Comments, a.Comments)
	}
	return &c
}

// CloneAll deep-copies a slice of annotations.
func CloneAll(annos []*Annotation) []*Annotation {
	out := make([]*Annotation, len(annos))
	for i, a := range annos {
		out[i] = a.Clone()
	}
	return out
}
