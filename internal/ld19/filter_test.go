package ld19

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFilterAccept(t *testing.T) {
	radar := Filter{MinIntensity: 220, MaxRangeMM: 200}

	cases := []struct {
		name string
		f    Filter
		in   RawSample
		want bool
	}{
		{"zero distance always rejected", ValidOnly(), RawSample{DistanceMM: 0, Intensity: 255}, false},
		{"valid only keeps dim points", ValidOnly(), RawSample{DistanceMM: 1, Intensity: 0}, true},
		{"threshold is strict", radar, RawSample{DistanceMM: 100, Intensity: 220}, false},
		{"above threshold", radar, RawSample{DistanceMM: 100, Intensity: 221}, true},
		{"range is inclusive", radar, RawSample{DistanceMM: 200, Intensity: 250}, true},
		{"beyond range", radar, RawSample{DistanceMM: 201, Intensity: 250}, false},
		{"zero distance with range", radar, RawSample{DistanceMM: 0, Intensity: 250}, false},
		{"zero min intensity drops zero", Filter{}, RawSample{DistanceMM: 5, Intensity: 0}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.f.Accept(tc.in))
		})
	}
}

func TestFilterApplyKeepsOrder(t *testing.T) {
	raw := []RawSample{
		{AngleCentideg: 100, DistanceMM: 10, Intensity: 1},
		{AngleCentideg: 200, DistanceMM: 0, Intensity: 1},
		{AngleCentideg: 300, DistanceMM: 30, Intensity: 1},
	}
	got := ValidOnly().Apply(nil, raw)
	assert.Equal(t, []Sample{
		{Angle: 1, DistanceMM: 10, Intensity: 1},
		{Angle: 3, DistanceMM: 30, Intensity: 1},
	}, got)
}
