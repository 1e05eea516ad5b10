package gesture

// DefaultHoldFrames is how many consecutive identical classifications a pose
// must hold before its action fires.
const DefaultHoldFrames = 15

// Hold debounces per-frame classifications into single-shot actions. An
// action fires exactly once when the same non-None label has been observed
// for the configured number of consecutive frames. The counter then saturates
// until the label changes, so a held pose cannot re-fire.
type Hold struct {
	frames int
	last   Kind
	count  int
	fired  bool
}

// NewHold creates a tracker firing after the given number of consecutive
// frames; values below 1 fall back to the default.
func NewHold(frames int) *Hold {
	if frames < 1 {
		frames = DefaultHoldFrames
	}
	return &Hold{frames: frames, last: None}
}

// Observe feeds one classification and reports whether an action fires on
// this frame.
func (h *Hold) Observe(k Kind) bool {
	if k != h.last {
		h.last = k
		h.count = 1
		h.fired = false
	} else {
		h.count++
	}
	if k == None || h.fired {
		return false
	}
	if h.count >= h.frames {
		h.fired = true
		return true
	}
	return false
}

// Current returns the label being counted and how many frames it has held.
func (h *Hold) Current() (Kind, int) {
	return h.last, h.count
}
