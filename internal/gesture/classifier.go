// Package gesture classifies hand-landmark frames into discrete gestures and
// debounces them into single-shot actions. The classifier is a pure per-frame
// function; the hold tracker carries the only state.
package gesture

import "math"

// Kind is a discrete gesture label.
type Kind string

const (
	Pinch    Kind = "pinch"
	Palm     Kind = "palm"
	Point    Kind = "point"
	Fist     Kind = "fist"
	ThumbsUp Kind = "thumbs_up"
	None     Kind = "none"
)

// LandmarkCount is the number of points per frame, MediaPipe hand order.
const LandmarkCount = 21

// Landmark indices used by the heuristics.
const (
	thumbMCP  = 2
	thumbIP   = 3
	thumbTip  = 4
	indexPIP  = 6
	indexTip  = 8
	middlePIP = 10
	middleTip = 12
	ringPIP   = 14
	ringTip   = 16
	pinkyPIP  = 18
	pinkyTip  = 20
)

const (
	// pinchThreshold is the max thumb-to-index tip distance for a pinch, in
	// normalized image coordinates.
	pinchThreshold = 0.05
	// thumbSpread is the min lateral offset of the thumb tip from its IP
	// joint to count the thumb as extended.
	thumbSpread = 0.08
)

// Point3 is one landmark in normalized image space. Y grows downward.
type Point3 struct {
	X, Y, Z float64
}

// Classify maps one frame of landmarks to a gesture label. Checks run in
// fixed precedence, first match wins: pinch, palm, point, fist, thumbs_up.
// A frame with the wrong landmark count classifies as None.
func Classify(lm []Point3) Kind {
	if len(lm) != LandmarkCount {
		return None
	}

	if dist2(lm[thumbTip], lm[indexTip]) < pinchThreshold {
		return Pinch
	}

	thumb := thumbExtended(lm)
	index := fingerExtended(lm, indexTip, indexPIP)
	middle := fingerExtended(lm, middleTip, middlePIP)
	ring := fingerExtended(lm, ringTip, ringPIP)
	pinky := fingerExtended(lm, pinkyTip, pinkyPIP)

	switch {
	case thumb && index && middle && ring && pinky:
		return Palm
	case index && !thumb && !middle && !ring && !pinky:
		return Point
	case !thumb && !index && !middle && !ring && !pinky:
		return Fist
	case thumb && !index && !middle && !ring && !pinky:
		return ThumbsUp
	default:
		return None
	}
}

// fingerExtended tests a non-thumb finger: the tip sits above its PIP joint
// in image coordinates.
func fingerExtended(lm []Point3, tip, pip int) bool {
	return lm[tip].Y < lm[pip].Y
}

// thumbExtended tests the thumb laterally: the tip is spread away from the
// IP joint along the x axis.
func thumbExtended(lm []Point3) bool {
	return math.Abs(lm[thumbTip].X-lm[thumbIP].X) > thumbSpread
}

// dist2 is the planar Euclidean distance between two landmarks.
func dist2(a, b Point3) float64 {
	dx := a.X - b.X
	dy := a.Y - b.Y
	return math.Sqrt(dx*dx + dy*dy)
}

// FromSlices converts raw [x,y,z] triples, as delivered on the wire, into
// landmarks. Returns nil when the frame is malformed.
func FromSlices(raw [][3]float64) []Point3 {
	if len(raw) != LandmarkCount {
		return nil
	}
	out := make([]Point3, LandmarkCount)
	for i, p := range raw {
		out[i] = Point3{X: p[0], Y: p[1], Z: p[2]}
	}
	return out
}
