package capture

import "github.com/kozaktomas/facegate/internal/constants"

// Region is a detected face bounding box in pixel coordinates.
type Region struct {
	X1, Y1, X2, Y2 int
}

// Height returns the vertical extent of the region.
func (r Region) Height() int {
	return max(0, r.Y2-r.Y1)
}

// Indicator is the scan line that sweeps over a detected face while the
// session is active. It has no influence on which frame is selected.
type Indicator struct {
	Pos  int
	Step int
	down bool
}

func newIndicator() Indicator {
	return Indicator{Step: constants.ScanStep, down: true}
}

// Advance moves the indicator one step inside [0, height], reversing at
// either edge. A missing region parks the indicator at the top.
func (ind *Indicator) Advance(height int) {
	if height <= 0 {
		ind.Pos = 0
		ind.down = true
		return
	}

	if ind.down {
		ind.Pos += ind.Step
	} else {
		ind.Pos -= ind.Step
	}

	switch {
	case ind.Pos >= height:
		ind.Pos = height
		ind.down = false
	case ind.Pos <= 0:
		ind.Pos = 0
		ind.down = true
	}
}
