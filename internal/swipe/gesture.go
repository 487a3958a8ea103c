package swipe

// Gesture is the resolved intent of a drag on the current card.
type Gesture int

const (
	GestureNone Gesture = iota
	GestureLike
	GestureDislike
)

// Thresholds tunes gesture resolution. Distance alone commits a slow
// drag; a fast flick commits at FlickDistance when velocity exceeds
// FlickVelocity. Anything below both snaps back to center.
type Thresholds struct {
	Distance      float64
	FlickDistance float64
	FlickVelocity float64
}

func DefaultThresholds() Thresholds {
	return Thresholds{Distance: 120, FlickDistance: 40, FlickVelocity: 800}
}

// Resolve converts a horizontal displacement (positive = right = like)
// and release velocity into a gesture.
func Resolve(dx, vx float64, t Thresholds) Gesture {
	abs := dx
	if abs < 0 {
		abs = -abs
	}
	absV := vx
	if absV < 0 {
		absV = -absV
	}

	committed := abs >= t.Distance || (abs >= t.FlickDistance && absV >= t.FlickVelocity)
	if !committed {
		return GestureNone
	}
	if dx > 0 {
		return GestureLike
	}
	return GestureDislike
}
