package ld19

// NoIntensityFilter disables the intensity threshold.
const NoIntensityFilter = -1

// Filter decides which raw samples reach a buffer. Zero distance is always
// rejected.
type Filter struct {
	// MinIntensity keeps samples with intensity strictly greater than it.
	// NoIntensityFilter disables the check.
	MinIntensity int `yaml:"min_intensity" json:"minIntensity"`
	// MaxRangeMM keeps samples with distance <= MaxRangeMM. Zero means no limit.
	MaxRangeMM uint16 `yaml:"max_range_mm" json:"maxRangeMm"`
}

// ValidOnly is the point-cloud filter: drop no-echo readings only.
func ValidOnly() Filter {
	return Filter{MinIntensity: NoIntensityFilter}
}

// Accept reports whether r passes the filter.
func (f Filter) Accept(r RawSample) bool {
	if r.DistanceMM == 0 {
		return false
	}
	if f.MinIntensity >= 0 && int(r.Intensity) <= f.MinIntensity {
		return false
	}
	if f.MaxRangeMM > 0 && r.DistanceMM > f.MaxRangeMM {
		return false
	}
	return true
}

// Apply appends the accepted samples of a packet to dst, converted to degrees,
// preserving wire order.
func (f Filter) Apply(dst []Sample, raw []RawSample) []Sample {
	for _, r := range raw {
		if f.Accept(r) {
			dst = append(dst, r.Sample())
		}
	}
	return dst
}
