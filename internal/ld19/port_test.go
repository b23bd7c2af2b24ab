package ld19

import (
	"io"
	"sync"
	"time"
)

// scriptPort replays a list of reads. A nil chunk is a read that times out
// with no data. After the script it returns io.EOF, or times out forever if
// idle is set.
type scriptPort struct {
	mu     sync.Mutex
	chunks [][]byte
	idle   bool
	closed bool
	reads  int
}

func newScriptPort(chunks ...[]byte) *scriptPort {
	return &scriptPort{chunks: chunks}
}

func (p *scriptPort) Read(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reads++
	if p.closed {
		return 0, io.ErrClosedPipe
	}
	for len(p.chunks) > 0 {
		c := p.chunks[0]
		if c == nil {
			p.chunks = p.chunks[1:]
			return 0, nil
		}
		n := copy(b, c)
		if n == len(c) {
			p.chunks = p.chunks[1:]
		} else {
			p.chunks[0] = c[n:]
		}
		return n, nil
	}
	if p.idle {
		p.mu.Unlock()
		time.Sleep(time.Millisecond)
		p.mu.Lock()
		return 0, nil
	}
	return 0, io.EOF
}

func (p *scriptPort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

func (p *scriptPort) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

func opener(p Port) Opener {
	return func(string, int, time.Duration) (Port, error) { return p, nil }
}

// testPacket builds 12 samples starting at angle base, all with the given
// distance and intensity.
func testPacket(base uint16, dist uint16, intensity uint8) [SamplesPerPacket]RawSample {
	var s [SamplesPerPacket]RawSample
	for i := range s {
		s[i] = RawSample{
			AngleCentideg: base + uint16(i)*100,
			DistanceMM:    dist + uint16(i),
			Intensity:     intensity,
		}
	}
	return s
}

func concat(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}
