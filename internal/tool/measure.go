package tool

import (
	"fmt"
	"math"

	"github.com/markline/markline/backend-go/internal/annotation"
)

// MeasurementLabel derives the distance label for a measurement annotation
// from its two endpoints. The label is regenerated on demand and is never a
// standalone annotation.
func MeasurementLabel(a *annotation.Annotation) string {
	if a == nil || a.Type != annotation.TypeMeasurement || a.Start == nil || a.End == nil {
		return ""
	}
	dx := a.End.X - a.Start.X
	dy := a.End.Y - a.Start.Y
	return fmt.Sprintf("%.1f", math.Hypot(dx, dy))
}
