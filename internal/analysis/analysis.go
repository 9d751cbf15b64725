// Package analysis weighs viewer reports against chat messages and decides
// when a message has collected enough of them to be hidden.
package analysis

import (
	"identityradio/backend/internal/config"
	"strings"
)

// NormalizeReason lowercases and trims a report reason.
func NormalizeReason(reason string) string {
	return strings.ToLower(strings.TrimSpace(reason))
}

// GetWeight returns the weight of a report reason. Unknown reasons carry
// the default weight.
func GetWeight(reason string) int {
	if w, ok := config.ReportWeights[NormalizeReason(reason)]; ok {
		return w
	}
	return config.DefaultReportWeight
}

// ShouldHide reports whether the accumulated weight reaches the threshold.
func ShouldHide(totalWeight int) bool {
	return totalWeight >= config.ReportHideThreshold
}
