package ld19

import (
	"encoding/binary"
	"fmt"
)

// maxScanBytes bounds how many non-header bytes one Next call will discard,
// so a stream of pure noise still returns control to the reader loop.
const maxScanBytes = 4 * (HeaderSize + PayloadSize)

// maxAngleCentideg is one full turn; no valid sample angle reaches it.
const maxAngleCentideg = 36000

// Synchronizer finds 0xFA 0xFA headers in a byte stream and extracts the
// 60-byte payload that follows each one.
//
// A sentinel followed by any other byte is dropped and scanning resumes after
// it. A run of three or more sentinels is ambiguous: either a stray 0xFA sits
// in front of the header, or the payload itself opens with 0xFA (an angle whose
// low byte is 0xFA). An angle's high byte is at most 0x8C, so the payload can
// open with no more than one sentinel and there are exactly two candidates.
// The one followed by the next header 60 bytes later wins; otherwise the one
// whose angles all stay below a full turn.
type Synchronizer struct {
	port Port

	buf  [256]byte
	r, w int
	err  error // transport error held back until buffered bytes are used

	payload [PayloadSize]byte
}

// NewSynchronizer reads from port. port must honour the Port timeout contract.
func NewSynchronizer(port Port) *Synchronizer {
	return &Synchronizer{port: port}
}

// Next returns the next complete payload. ok is false on a framing miss: a read
// timed out, a candidate came up short, or maxScanBytes of noise went by. A
// non-nil error is always transport-fatal and wraps ErrTransport.
//
// The returned slice is only valid until the next call.
func (s *Synchronizer) Next() (payload []byte, ok bool, err error) {
	run := 0
	for scanned := 0; scanned < maxScanBytes; scanned++ {
		b, ok, err := s.readByte()
		if err != nil {
			return nil, false, err
		}
		if !ok {
			return nil, false, nil
		}
		if b == HeaderByte {
			run++
			continue
		}
		if run >= HeaderSize {
			// b is the first byte after the run.
			s.r--
			if run > HeaderSize {
				return s.resolveRun()
			}
			return s.readPayload(0)
		}
		run = 0
	}
	return nil, false, nil
}

// resolveRun picks the payload alignment after a run of three or more
// sentinels. The read position is on the first byte after the run. The
// "late" candidate starts there; the "early" one starts on the last sentinel
// of the run.
func (s *Synchronizer) resolveRun() ([]byte, bool, error) {
	// Enough to see the byte pair after either candidate.
	for s.w-s.r < PayloadSize+HeaderSize {
		n, err := s.more()
		if err != nil {
			s.err = err
			break
		}
		if n == 0 {
			break
		}
	}
	ahead := s.buf[s.r:s.w]

	var early [PayloadSize]byte
	early[0] = HeaderByte
	copy(early[1:], ahead)
	earlyAvail := min(len(ahead)+1, PayloadSize)

	earlyNext := headerAt(ahead, PayloadSize-1)
	lateNext := headerAt(ahead, PayloadSize)

	useEarly := false
	switch {
	case earlyNext && !lateNext:
		useEarly = true
	case lateNext && !earlyNext:
	case plausibleAngles(ahead[:min(len(ahead), PayloadSize)]):
	case plausibleAngles(early[:earlyAvail]):
		useEarly = true
	}
	if useEarly {
		s.payload[0] = HeaderByte
		return s.readPayload(1)
	}
	return s.readPayload(0)
}

func headerAt(b []byte, i int) bool {
	return len(b) >= i+HeaderSize && b[i] == HeaderByte && b[i+1] == HeaderByte
}

// plausibleAngles reports whether every complete angle field in a candidate
// payload prefix is below a full turn.
func plausibleAngles(p []byte) bool {
	for off := 0; off+2 <= len(p); off += RecordSize {
		if binary.LittleEndian.Uint16(p[off:]) >= maxAngleCentideg {
			return false
		}
	}
	return true
}

// readPayload fills the payload buffer from index got on. A read that returns
// no data before the payload is complete is a timeout and discards the
// candidate.
func (s *Synchronizer) readPayload(got int) ([]byte, bool, error) {
	for s.w-s.r < PayloadSize-got {
		n, err := s.more()
		if err != nil {
			return nil, false, err
		}
		if n == 0 {
			s.r = s.w
			return nil, false, nil
		}
	}
	s.r += copy(s.payload[got:], s.buf[s.r:s.w])
	return s.payload[:], true, nil
}

func (s *Synchronizer) readByte() (byte, bool, error) {
	if s.r == s.w {
		n, err := s.more()
		if err != nil || n == 0 {
			return 0, false, err
		}
	}
	b := s.buf[s.r]
	s.r++
	return b, true, nil
}

// more compacts the unread bytes to the front of the buffer and appends one
// port read. Bytes delivered alongside an error are kept and the error is
// reported by the following call.
func (s *Synchronizer) more() (int, error) {
	if s.err != nil {
		err := s.err
		s.err = nil
		return 0, err
	}
	if s.r > 0 {
		s.w = copy(s.buf[:], s.buf[s.r:s.w])
		s.r = 0
	}
	n, err := s.port.Read(s.buf[s.w:])
	s.w += n
	if err != nil {
		err = fmt.Errorf("%w: read: %v", ErrTransport, err)
		if n > 0 {
			s.err = err
			return n, nil
		}
		return 0, err
	}
	return n, nil
}
