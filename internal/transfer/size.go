package transfer

import (
	"fmt"
	"math"
)

// scaleDecimal is the SI unit ladder used for transfer sizes.
var scaleDecimal = [...]string{"B", "kB", "MB", "GB", "TB", "PB", "EB", "ZB", "YB"}

const scaleDivider = 1000.0

// FormatSizePair formats current and total in the unit picked for total.
//
// totalText carries the unit ("2 MB"); currentText does not ("0.00"), the
// caller composes it with the shared unit. current is scaled by the same
// number of divisions as total, so it may read "0.00" for a small current
// or exceed 1000 when current overshoots total. Both are shown as-is.
func FormatSizePair(current, total uint64) (currentText, totalText string) {
	t := float64(total)
	scaleIdx := 0
	for math.Abs(t) >= scaleDivider && scaleIdx < len(scaleDecimal)-1 {
		t /= scaleDivider
		scaleIdx++
	}
	totalText = fmt.Sprintf("%s %s", formatScaled(t), scaleDecimal[scaleIdx])

	c := float64(current)
	for i := 0; i < scaleIdx; i++ {
		c /= scaleDivider
	}
	return formatScaled(c), totalText
}

// formatScaled prints integral values without decimals and the rest with two.
func formatScaled(v float64) string {
	if v == math.Trunc(v) {
		return fmt.Sprintf("%.0f", v)
	}
	return fmt.Sprintf("%.2f", v)
}
