package ld19

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Wire format: 0xFA 0xFA header followed by 12 little-endian records of
// angle (u16, centidegrees), distance (u16, mm) and intensity (u8).
// There is no checksum.
const (
	HeaderByte       = 0xFA
	HeaderSize       = 2
	SamplesPerPacket = 12
	RecordSize       = 5
	PayloadSize      = SamplesPerPacket * RecordSize // 60 bytes
)

// ErrPacketSize is returned when a payload is not exactly PayloadSize bytes.
var ErrPacketSize = errors.New("ld19: bad payload size")

// RawSample is one wire record before unit conversion or filtering.
type RawSample struct {
	AngleCentideg uint16 `json:"angleCentideg"` // 0..35999, not clamped
	DistanceMM    uint16 `json:"distanceMm"`    // 0 means no echo
	Intensity     uint8  `json:"intensity"`
}

// Sample is a filtered, consumer-facing reading.
type Sample struct {
	Angle      float64 `json:"angle"`      // degrees
	DistanceMM uint16  `json:"distanceMm"` // always > 0
	Intensity  uint8   `json:"intensity"`
}

// Degrees converts the centidegree angle to degrees.
func (r RawSample) Degrees() float64 {
	return float64(r.AngleCentideg) / 100.0
}

// Sample converts r to a consumer-facing Sample. Callers are expected to have
// filtered out zero-distance readings first.
func (r RawSample) Sample() Sample {
	return Sample{
		Angle:      r.Degrees(),
		DistanceMM: r.DistanceMM,
		Intensity:  r.Intensity,
	}
}

// DecodePacket parses one 60-byte payload into its 12 records, in wire order.
// It does no I/O and keeps no state.
func DecodePacket(payload []byte) ([SamplesPerPacket]RawSample, error) {
	var out [SamplesPerPacket]RawSample
	if len(payload) != PayloadSize {
		return out, fmt.Errorf("%w: got %d bytes, want %d", ErrPacketSize, len(payload), PayloadSize)
	}
	for i := range out {
		rec := payload[i*RecordSize : (i+1)*RecordSize]
		out[i] = RawSample{
			AngleCentideg: binary.LittleEndian.Uint16(rec[0:2]),
			DistanceMM:    binary.LittleEndian.Uint16(rec[2:4]),
			Intensity:     rec[4],
		}
	}
	return out, nil
}

// EncodePacket is the inverse of DecodePacket and includes the header bytes.
// Used by the demo stream and tests.
func EncodePacket(samples [SamplesPerPacket]RawSample) []byte {
	buf := make([]byte, HeaderSize+PayloadSize)
	buf[0], buf[1] = HeaderByte, HeaderByte
	for i, s := range samples {
		off := HeaderSize + i*RecordSize
		binary.LittleEndian.PutUint16(buf[off:off+2], s.AngleCentideg)
		binary.LittleEndian.PutUint16(buf[off+2:off+4], s.DistanceMM)
		buf[off+4] = s.Intensity
	}
	return buf
}
