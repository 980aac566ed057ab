package measure

import "math"

// DefaultRSRP substitutes missing or non-finite RSRP readings (dBm).
const DefaultRSRP = -80.0

// Class thresholds in dBm, best first.
var classThresholds = []float64{-70, -85, -100}

// Classify maps RSRP to a signal class, 1 best and 4 worst.
func Classify(rsrp float64) int {
	if math.IsNaN(rsrp) || math.IsInf(rsrp, 0) {
		rsrp = DefaultRSRP
	}
	for i, thr := range classThresholds {
		if rsrp >= thr {
			return i + 1
		}
	}
	return len(classThresholds) + 1
}

// ClassLabel is a short human label for a class.
func ClassLabel(class int) string {
	switch class {
	case 1:
		return "Class 1 (excellent, >= -70 dBm)"
	case 2:
		return "Class 2 (good, -85 to -70 dBm)"
	case 3:
		return "Class 3 (fair, -100 to -85 dBm)"
	default:
		return "Class 4 (poor, < -100 dBm)"
	}
}
