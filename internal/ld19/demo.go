package ld19

import (
	"errors"
	"math"
	"math/rand"
	"sync"
	"time"
)

// DemoPort simulates an LD19 on a serial link: a 10 Hz sweep of a 4 x 3 m
// room with a small object close to the sensor, plus the occasional noise
// burst and stray header byte.
type DemoPort struct {
	mu      sync.Mutex
	closed  bool
	angle   float64 // centidegrees
	pending []byte
	rng     *rand.Rand

	// packetInterval paces Read to roughly the sensor's output rate.
	packetInterval time.Duration
}

// NewDemoPort returns a simulated sensor link.
func NewDemoPort() *DemoPort {
	return &DemoPort{
		rng:            rand.New(rand.NewSource(time.Now().UnixNano())),
		packetInterval: 2500 * time.Microsecond, // ~400 packets/s
	}
}

// OpenDemo satisfies Opener and ignores its arguments.
func OpenDemo(string, int, time.Duration) (Port, error) {
	return NewDemoPort(), nil
}

func (d *DemoPort) Read(p []byte) (int, error) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return 0, errors.New("demo port closed")
	}
	if len(d.pending) == 0 {
		d.pending = d.nextChunk()
		d.mu.Unlock()
		time.Sleep(d.packetInterval)
		d.mu.Lock()
	}
	n := copy(p, d.pending)
	d.pending = d.pending[n:]
	d.mu.Unlock()
	return n, nil
}

func (d *DemoPort) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

// nextChunk returns one encoded packet, sometimes preceded by junk.
func (d *DemoPort) nextChunk() []byte {
	var chunk []byte
	switch r := d.rng.Float64(); {
	case r < 0.02:
		for i := 0; i < 1+d.rng.Intn(8); i++ {
			chunk = append(chunk, byte(d.rng.Intn(HeaderByte)))
		}
	case r < 0.03:
		chunk = append(chunk, HeaderByte)
	}

	var samples [SamplesPerPacket]RawSample
	for i := range samples {
		dist := uint16(roomDistance(d.angle/100) + d.rng.Float64()*10)
		if d.rng.Float64() < 0.05 {
			dist = 0 // no echo
		}
		samples[i] = RawSample{
			AngleCentideg: uint16(d.angle),
			DistanceMM:    dist,
			Intensity:     uint8(200 + d.rng.Intn(56)),
		}
		// 450 samples per revolution.
		d.angle = math.Mod(d.angle+80, 36000)
	}
	return append(chunk, EncodePacket(samples)...)
}

// roomDistance is the range in mm to the walls of a 4000 x 3000 mm room with
// the sensor at its centre, or to a 40 mm post 150 mm away at 45 degrees.
func roomDistance(deg float64) float64 {
	if deg >= 40 && deg <= 50 {
		return 150
	}
	rad := deg * math.Pi / 180
	cx, cy := math.Abs(math.Cos(rad)), math.Abs(math.Sin(rad))
	dx, dy := math.Inf(1), math.Inf(1)
	if cx > 1e-9 {
		dx = 2000 / cx
	}
	if cy > 1e-9 {
		dy = 1500 / cy
	}
	return math.Min(dx, dy)
}
