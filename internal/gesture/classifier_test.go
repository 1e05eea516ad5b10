package gesture

import "testing"

// frame builds a neutral frame and lets tests pose individual fingers.
// The neutral hand is curled: every tip below its PIP joint, thumb tucked.
func neutralFrame() []Point3 {
	lm := make([]Point3, LandmarkCount)
	for i := range lm {
		lm[i] = Point3{X: 0.5, Y: 0.5}
	}
	// PIP joints above tips means curled fingers.
	lm[indexPIP] = Point3{X: 0.45, Y: 0.40}
	lm[indexTip] = Point3{X: 0.45, Y: 0.50}
	lm[middlePIP] = Point3{X: 0.50, Y: 0.40}
	lm[middleTip] = Point3{X: 0.50, Y: 0.50}
	lm[ringPIP] = Point3{X: 0.55, Y: 0.40}
	lm[ringTip] = Point3{X: 0.55, Y: 0.50}
	lm[pinkyPIP] = Point3{X: 0.60, Y: 0.40}
	lm[pinkyTip] = Point3{X: 0.60, Y: 0.50}
	// Thumb tucked: tip close to MCP laterally, and far from index tip.
	lm[thumbMCP] = Point3{X: 0.40, Y: 0.55}
	lm[thumbIP] = Point3{X: 0.39, Y: 0.56}
	lm[thumbTip] = Point3{X: 0.38, Y: 0.58}
	return lm
}

func extendFinger(lm []Point3, tip, pip int) {
	lm[tip] = Point3{X: lm[pip].X, Y: lm[pip].Y - 0.15}
}

func extendThumb(lm []Point3) {
	lm[thumbTip] = Point3{X: lm[thumbIP].X - 0.15, Y: lm[thumbIP].Y}
}

func TestClassifyFist(t *testing.T) {
	if got := Classify(neutralFrame()); got != Fist {
		t.Fatalf("Classify(curled) = %q, want fist", got)
	}
}

func TestClassifyPalm(t *testing.T) {
	lm := neutralFrame()
	extendFinger(lm, indexTip, indexPIP)
	extendFinger(lm, middleTip, middlePIP)
	extendFinger(lm, ringTip, ringPIP)
	extendFinger(lm, pinkyTip, pinkyPIP)
	extendThumb(lm)
	if got := Classify(lm); got != Palm {
		t.Fatalf("Classify(all extended) = %q, want palm", got)
	}
}

func TestClassifyPoint(t *testing.T) {
	lm := neutralFrame()
	extendFinger(lm, indexTip, indexPIP)
	if got := Classify(lm); got != Point {
		t.Fatalf("Classify(index only) = %q, want point", got)
	}
}

func TestClassifyThumbsUp(t *testing.T) {
	lm := neutralFrame()
	extendThumb(lm)
	if got := Classify(lm); got != ThumbsUp {
		t.Fatalf("Classify(thumb only) = %q, want thumbs_up", got)
	}
}

func TestPinchPrecedesPalm(t *testing.T) {
	// All fingers extended but thumb and index tips touching: the pinch
	// check runs first, so the frame classifies as pinch, not palm.
	lm := neutralFrame()
	extendFinger(lm, indexTip, indexPIP)
	extendFinger(lm, middleTip, middlePIP)
	extendFinger(lm, ringTip, ringPIP)
	extendFinger(lm, pinkyTip, pinkyPIP)
	extendThumb(lm)
	lm[thumbTip] = Point3{X: lm[indexTip].X + 0.01, Y: lm[indexTip].Y}
	if got := Classify(lm); got != Pinch {
		t.Fatalf("Classify(pinch+palm pose) = %q, want pinch", got)
	}
}

func TestClassifyMalformedFrame(t *testing.T) {
	if got := Classify(make([]Point3, 5)); got != None {
		t.Fatalf("Classify(short frame) = %q, want none", got)
	}
	if got := Classify(nil); got != None {
		t.Fatalf("Classify(nil) = %q, want none", got)
	}
}

func TestFromSlices(t *testing.T) {
	raw := make([][3]float64, LandmarkCount)
	raw[indexTip] = [3]float64{0.1, 0.2, 0.3}
	lm := FromSlices(raw)
	if lm == nil {
		t.Fatal("FromSlices rejected a well-formed frame")
	}
	if lm[indexTip] != (Point3{X: 0.1, Y: 0.2, Z: 0.3}) {
		t.Fatalf("unexpected landmark: %+v", lm[indexTip])
	}
	if FromSlices(raw[:10]) != nil {
		t.Fatal("FromSlices accepted a short frame")
	}
}

func TestHoldFiresOnceAfterFifteenFrames(t *testing.T) {
	h := NewHold(DefaultHoldFrames)
	for i := 0; i < 14; i++ {
		if h.Observe(Palm) {
			t.Fatalf("fired early at frame %d", i+1)
		}
	}
	if !h.Observe(Palm) {
		t.Fatal("did not fire on the 15th consecutive frame")
	}
	// Held pose must not re-fire.
	for i := 0; i < 100; i++ {
		if h.Observe(Palm) {
			t.Fatal("re-fired while pose was held")
		}
	}
}

func TestHoldResetsOnLabelChange(t *testing.T) {
	h := NewHold(DefaultHoldFrames)
	for i := 0; i < 14; i++ {
		h.Observe(Fist)
	}
	if h.Observe(None) {
		t.Fatal("none must never fire")
	}
	// 14 frames then a change: the counter restarts from scratch.
	for i := 0; i < 14; i++ {
		if h.Observe(Fist) {
			t.Fatalf("fired at frame %d after reset", i+1)
		}
	}
	if !h.Observe(Fist) {
		t.Fatal("did not fire after a full new hold")
	}
}

func TestHoldCanFireAgainAfterChange(t *testing.T) {
	h := NewHold(3)
	for i := 0; i < 3; i++ {
		h.Observe(Point)
	}
	h.Observe(None)
	fired := false
	for i := 0; i < 3; i++ {
		fired = h.Observe(Point)
	}
	if !fired {
		t.Fatal("same gesture after a break should fire again")
	}
}

func TestHoldNoneNeverFires(t *testing.T) {
	h := NewHold(2)
	for i := 0; i < 50; i++ {
		if h.Observe(None) {
			t.Fatal("none fired")
		}
	}
}

func TestThumbSpreadMeasuredFromIPJoint(t *testing.T) {
	// Tip far from the MCP but resting against the IP joint: the thumb is
	// curled, so the frame stays a fist.
	lm := neutralFrame()
	lm[thumbMCP] = Point3{X: 0.55, Y: 0.55}
	lm[thumbIP] = Point3{X: 0.39, Y: 0.56}
	lm[thumbTip] = Point3{X: 0.38, Y: 0.58}
	if got := Classify(lm); got != Fist {
		t.Fatalf("Classify(curled thumb, offset MCP) = %q, want fist", got)
	}
}
