package ring

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tempRingPath(t *testing.T) string {
	return filepath.Join(t.TempDir(), "test.ring")
}

func TestCreateRejectsUndersizedBuffer(t *testing.T) {
	_, err := Create(tempRingPath(t), 100)
	require.ErrorIs(t, err, ErrInvalidBufSize)
}

func TestCreateRefusesExistingFile(t *testing.T) {
	path := tempRingPath(t)
	r, err := Create(path, minBufSize)
	require.NoError(t, err)
	defer r.Close()

	_, err = Create(path, minBufSize)
	require.ErrorIs(t, err, ErrAlreadyExists)
}

func TestOpenRejectsBadMagic(t *testing.T) {
	path := tempRingPath(t)
	require.NoError(t, os.WriteFile(path, make([]byte, minBufSize), 0o600))

	_, err := Open(path)
	require.ErrorIs(t, err, ErrBadMagic)
}

func TestOpenRejectsVersionMismatch(t *testing.T) {
	path := tempRingPath(t)
	r, err := Create(path, minBufSize)
	require.NoError(t, err)
	binary.LittleEndian.PutUint16(r.mapped[4:6], headerVersion+1)
	require.NoError(t, r.Close())

	_, err = Open(path)
	require.ErrorIs(t, err, ErrVersionMismatch)
}

func TestCreateThenOpenSeesSameHeader(t *testing.T) {
	path := tempRingPath(t)
	w, err := Create(path, minBufSize)
	require.NoError(t, err)
	defer w.Close()

	rd, err := Open(path)
	require.NoError(t, err)
	defer rd.Close()

	assert.EqualValues(t, minBufSize, rd.BufSize())
	assert.Equal(t, uint64(0), rd.Head())
	assert.Equal(t, uint64(0), rd.Tail())
}

// decodeFrame reads one frame at byte offset pos within the circular
// buffer, returning its type, payload and total length consumed.
func decodeFrame(buf []byte, bufSize uint64, pos uint64) (msgType byte, payload []byte, consumed uint64) {
	lenField := binary.LittleEndian.Uint32(buf[pos : pos+4])
	if lenField == wrapMarker {
		return decodeFrame(buf, bufSize, 0)
	}
	msgType = buf[pos+4]
	payload = make([]byte, lenField-1)
	copy(payload, buf[pos+5:pos+5+uint64(lenField-1)])
	return msgType, payload, 4 + uint64(lenField)
}

func TestPublishSingleFrameRoundTrips(t *testing.T) {
	r, err := Create(tempRingPath(t), minBufSize)
	require.NoError(t, err)
	defer r.Close()

	payload := []byte(`{"e":"depthUpdate"}`)
	require.NoError(t, r.Publish(DepthUpdate, payload))

	assert.Equal(t, uint64(5+len(payload)), r.Head())
	assert.Equal(t, uint64(0), r.Tail())

	msgType, got, _ := decodeFrame(r.buf, r.bufSize, r.Tail())
	assert.Equal(t, byte(DepthUpdate), msgType)
	assert.Equal(t, payload, got)
}

func TestPublishSnapshotJSONUsesSnapshotType(t *testing.T) {
	r, err := Create(tempRingPath(t), minBufSize)
	require.NoError(t, err)
	defer r.Close()

	require.NoError(t, r.PublishSnapshotJSON([]byte(`{"lastUpdateId":1}`)))
	msgType, _, _ := decodeFrame(r.buf, r.bufSize, r.Tail())
	assert.Equal(t, byte(SnapshotJSON), msgType)
}

func TestPublishRejectsOversizedPayload(t *testing.T) {
	r, err := Create(tempRingPath(t), minBufSize)
	require.NoError(t, err)
	defer r.Close()

	err = r.Publish(DepthUpdate, make([]byte, minBufSize+1))
	require.ErrorIs(t, err, ErrPayloadTooLarge)
}

func TestPublishEvictsOldestWhenFull(t *testing.T) {
	r, err := Create(tempRingPath(t), minBufSize)
	require.NoError(t, err)
	defer r.Close()

	// Fill the ring past capacity with many small frames; tail must
	// advance past head-bufSize so used never exceeds bufSize.
	payload := make([]byte, 100)
	for i := 0; i < 100; i++ {
		require.NoError(t, r.Publish(DepthUpdate, payload))
	}

	assert.LessOrEqual(t, r.Head()-r.Tail(), r.bufSize)
}

func TestPublishWrapsAcrossBufferEnd(t *testing.T) {
	r, err := Create(tempRingPath(t), minBufSize)
	require.NoError(t, err)
	defer r.Close()

	// Push the head to within a few bytes of the end of the buffer, then
	// publish a frame too large to fit in what remains before wrapping.
	big := make([]byte, int(minBufSize)-10)
	require.NoError(t, r.Publish(DepthUpdate, big))

	require.NoError(t, r.Publish(DepthUpdate, []byte("abc")))
	// After the wrap, the second frame must be readable starting at
	// offset 0, not at the evicted tail position.
	msgType, payload, _ := decodeFrame(r.buf, r.bufSize, 0)
	assert.Equal(t, byte(DepthUpdate), msgType)
	assert.Equal(t, []byte("abc"), payload)
}

func TestPublishOnClosedRingFails(t *testing.T) {
	r, err := Create(tempRingPath(t), minBufSize)
	require.NoError(t, err)
	require.NoError(t, r.Close())

	err = r.Publish(DepthUpdate, []byte("x"))
	require.ErrorIs(t, err, ErrClosed)
}
