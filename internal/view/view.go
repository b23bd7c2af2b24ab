// Package view turns scan samples into render-ready frames for the two
// front ends: a dense point cloud and a 2D radar sweep.
package view

import (
	"math"
	"strconv"

	"github.com/shaunagostinho/ld19-scope/internal/ld19"
)

// Point3 is a cartesian point in millimetres with an RGB colour in 0..1.
type Point3 struct {
	X     float64    `json:"x"`
	Y     float64    `json:"y"`
	Z     float64    `json:"z"`
	Color [3]float64 `json:"c"`
}

// CloudFrame is one point-cloud update.
type CloudFrame struct {
	Points []Point3 `json:"points"`
}

// cloudColorRangeMM is the distance mapped to full blue.
const cloudColorRangeMM = 3000.0

// Cloud projects samples onto the z=0 plane and colours them red (near) to
// blue (far).
func Cloud(samples []ld19.Sample) CloudFrame {
	pts := make([]Point3, len(samples))
	for i, s := range samples {
		x, y := polar(s.Angle, float64(s.DistanceMM))
		norm := math.Min(math.Max(float64(s.DistanceMM)/cloudColorRangeMM, 0), 1)
		pts[i] = Point3{
			X:     x,
			Y:     y,
			Color: [3]float64{1 - norm, 0.2, norm},
		}
	}
	return CloudFrame{Points: pts}
}

// RadarConfig sizes the radar view.
type RadarConfig struct {
	WindowSize int     `yaml:"window_size" json:"windowSize"` // square, px
	RangeCM    float64 `yaml:"range_cm" json:"rangeCm"`       // radius shown
}

// RadarPoint is a screen position, origin top left, y down.
type RadarPoint struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// RadarRing is a range circle for the grid.
type RadarRing struct {
	RadiusPx int    `json:"radiusPx"`
	Label    string `json:"label"`
}

// RadarFrame is one radar update. Points are drawn once and then fade.
type RadarFrame struct {
	Size   int          `json:"size"`
	Points []RadarPoint `json:"points"`
	Rings  []RadarRing  `json:"rings,omitempty"`
}

// Scale returns pixels per centimetre.
func (c RadarConfig) Scale() float64 {
	if c.RangeCM <= 0 {
		return 0
	}
	return float64(c.WindowSize) / 2 / c.RangeCM
}

// Radar maps samples to screen coordinates around the window centre.
func Radar(cfg RadarConfig, samples []ld19.Sample) RadarFrame {
	scale := cfg.Scale()
	cx, cy := float64(cfg.WindowSize/2), float64(cfg.WindowSize/2)
	pts := make([]RadarPoint, len(samples))
	for i, s := range samples {
		x, y := polar(s.Angle, float64(s.DistanceMM)/10*scale)
		pts[i] = RadarPoint{X: int(cx + x), Y: int(cy + y)}
	}
	return RadarFrame{Size: cfg.WindowSize, Points: pts}
}

// Rings returns grid circles every quarter of the range, excluding the rim.
func Rings(cfg RadarConfig) []RadarRing {
	if cfg.RangeCM <= 0 {
		return nil
	}
	scale := cfg.Scale()
	step := cfg.RangeCM / 4
	var rings []RadarRing
	for r := step; r < cfg.RangeCM; r += step {
		rings = append(rings, RadarRing{
			RadiusPx: int(r * scale),
			Label:    strconv.FormatFloat(r, 'f', -1, 64) + "cm",
		})
	}
	return rings
}

func polar(deg, r float64) (x, y float64) {
	rad := deg * math.Pi / 180
	return r * math.Cos(rad), r * math.Sin(rad)
}
