// SPDX-License-Identifier: EPL-2.0

package utils

import "math"

// SecondsToFrames converts a duration to a whole frame count at rate,
// rounding down. Negative or non-finite durations yield 0.
func SecondsToFrames(seconds float64, rate int) int64 {
	if seconds <= 0 || rate <= 0 || math.IsNaN(seconds) || math.IsInf(seconds, 0) {
		return 0
	}
	return int64(seconds * float64(rate))
}

// FramesToSeconds is the inverse of SecondsToFrames.
func FramesToSeconds(frames int64, rate int) float64 {
	if rate <= 0 {
		return 0
	}
	return float64(frames) / float64(rate)
}
