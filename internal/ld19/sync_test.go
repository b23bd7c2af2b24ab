package ld19

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// collect runs Next until a transport error and returns every payload seen.
func collect(t *testing.T, s *Synchronizer) ([][SamplesPerPacket]RawSample, error) {
	t.Helper()
	var out [][SamplesPerPacket]RawSample
	for i := 0; i < 1000; i++ {
		payload, ok, err := s.Next()
		if err != nil {
			return out, err
		}
		if !ok {
			continue
		}
		pkt, derr := DecodePacket(payload)
		require.NoError(t, derr)
		out = append(out, pkt)
	}
	t.Fatal("synchronizer never reported end of stream")
	return nil, nil
}

func TestSyncSinglePacket(t *testing.T) {
	want := testPacket(0, 100, 60)
	s := NewSynchronizer(newScriptPort(EncodePacket(want)))

	payload, ok, err := s.Next()
	require.NoError(t, err)
	require.True(t, ok)
	got, err := DecodePacket(payload)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestSyncResyncAfterNoiseAndStrayHeader(t *testing.T) {
	p1 := testPacket(1000, 300, 80)
	p2 := testPacket(2200, 400, 90)
	stream := concat(
		[]byte{0x00, 0x13, 0xFA, 0x01, 0x77, 0xFE, 0xFA, 0x42},
		EncodePacket(p1),
		[]byte{HeaderByte},
		EncodePacket(p2),
	)

	got, err := collect(t, NewSynchronizer(newScriptPort(stream)))
	assert.ErrorIs(t, err, ErrTransport)
	require.Len(t, got, 2)
	assert.Equal(t, p1, got[0])
	assert.Equal(t, p2, got[1])
}

func TestSyncLoneSentinelThenOtherByteIsDropped(t *testing.T) {
	p := testPacket(500, 200, 70)
	stream := concat([]byte{HeaderByte, 0x10, HeaderByte, 0x20}, EncodePacket(p))

	got, err := collect(t, NewSynchronizer(newScriptPort(stream)))
	assert.ErrorIs(t, err, ErrTransport)
	require.Len(t, got, 1)
	assert.Equal(t, p, got[0])
}

func TestSyncShortPayloadAtEndOfStream(t *testing.T) {
	stream := concat([]byte{HeaderByte, HeaderByte}, make([]byte, 40))
	got, err := collect(t, NewSynchronizer(newScriptPort(stream)))
	assert.ErrorIs(t, err, ErrTransport)
	assert.Empty(t, got)
}

func TestSyncShortPayloadTimeoutIsDiscarded(t *testing.T) {
	p := testPacket(800, 250, 100)
	short := concat([]byte{HeaderByte, HeaderByte}, []byte{0x01, 0x02, 0x03, 0x04, 0x05})
	port := newScriptPort(short, nil, EncodePacket(p))
	s := NewSynchronizer(port)

	_, ok, err := s.Next()
	require.NoError(t, err)
	assert.False(t, ok, "short candidate must not be forwarded")

	payload, ok, err := s.Next()
	require.NoError(t, err)
	require.True(t, ok)
	got, err := DecodePacket(payload)
	require.NoError(t, err)
	assert.Equal(t, p, got)
}

func TestSyncPayloadSplitAcrossReads(t *testing.T) {
	p := testPacket(100, 999, 1)
	buf := EncodePacket(p)
	s := NewSynchronizer(newScriptPort(buf[:1], buf[1:7], buf[7:30], buf[30:]))

	payload, ok, err := s.Next()
	require.NoError(t, err)
	require.True(t, ok)
	got, err := DecodePacket(payload)
	require.NoError(t, err)
	assert.Equal(t, p, got)
}

func TestSyncTimeoutReturnsMiss(t *testing.T) {
	s := NewSynchronizer(newScriptPort(nil))
	payload, ok, err := s.Next()
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, payload)
}

func TestSyncNoiseReturnsControl(t *testing.T) {
	noise := make([]byte, 3*maxScanBytes)
	for i := range noise {
		noise[i] = byte(i % 0xF0)
	}
	s := NewSynchronizer(newScriptPort(noise))

	_, ok, err := s.Next()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSyncBackToBackPackets(t *testing.T) {
	var stream []byte
	var want [][SamplesPerPacket]RawSample
	for i := 0; i < 5; i++ {
		p := testPacket(uint16(i*1200), uint16(100+i), 60)
		want = append(want, p)
		stream = append(stream, EncodePacket(p)...)
	}

	got, err := collect(t, NewSynchronizer(newScriptPort(stream)))
	assert.ErrorIs(t, err, ErrTransport)
	assert.Equal(t, want, got)
}

func TestSyncPayloadOpeningWithSentinel(t *testing.T) {
	// Angle 250 encodes as FA 00, so the header reads as a run of three.
	p1 := testPacket(250, 500, 80)
	p2 := testPacket(1450, 600, 80)
	require.Equal(t, byte(HeaderByte), EncodePacket(p1)[HeaderSize])

	got, err := collect(t, NewSynchronizer(newScriptPort(concat(EncodePacket(p1), EncodePacket(p2)))))
	assert.ErrorIs(t, err, ErrTransport)
	require.Len(t, got, 2)
	assert.Equal(t, p1, got[0])
	assert.Equal(t, p2, got[1])
}

func TestSyncPayloadOpeningWithSentinelAtEndOfStream(t *testing.T) {
	// No following header to check against; the angles decide.
	p := testPacket(250, 500, 80)
	got, err := collect(t, NewSynchronizer(newScriptPort(EncodePacket(p))))
	assert.ErrorIs(t, err, ErrTransport)
	require.Len(t, got, 1)
	assert.Equal(t, p, got[0])
}

func TestSyncStrayHeaderBeforeSentinelPayload(t *testing.T) {
	p1 := testPacket(506, 700, 90)
	p2 := testPacket(2000, 800, 90)
	stream := concat([]byte{HeaderByte}, EncodePacket(p1), EncodePacket(p2))

	got, err := collect(t, NewSynchronizer(newScriptPort(stream)))
	assert.ErrorIs(t, err, ErrTransport)
	require.Len(t, got, 2)
	assert.Equal(t, p1, got[0])
	assert.Equal(t, p2, got[1])
}

func TestSyncSentinelPayloadSplitAcrossReads(t *testing.T) {
	p1 := testPacket(250, 500, 80)
	p2 := testPacket(1450, 600, 80)
	buf := concat(EncodePacket(p1), EncodePacket(p2))
	s := NewSynchronizer(newScriptPort(buf[:3], buf[3:40], buf[40:63], buf[63:]))

	got, err := collect(t, s)
	assert.ErrorIs(t, err, ErrTransport)
	require.Len(t, got, 2)
	assert.Equal(t, p1, got[0])
	assert.Equal(t, p2, got[1])
}
