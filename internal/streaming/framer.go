package streaming

import (
	"encoding/base64"
	"encoding/binary"
	"math"

	"github.com/smallnest/ringbuffer"
)

// framer slices a session's PCM byte stream into fixed-size sub-messages.
// Chunk PCM is written in as little-endian f32 bytes and drained as
// frameBytes-sized audio_chunk payloads, so message size does not grow
// with chunk length; only the last frame of each chunk may be shorter.
type framer struct {
	ring       *ringbuffer.RingBuffer
	frameBytes int
	scratch    []byte
}

func newFramer(frameBytes int) *framer {
	if frameBytes < 4 {
		frameBytes = 4
	}
	frameBytes -= frameBytes % 4 // whole f32 samples per frame
	return &framer{
		// Two frames of headroom keeps write/read strictly alternating
		// without ever blocking.
		ring:       ringbuffer.New(frameBytes * 2),
		frameBytes: frameBytes,
		scratch:    make([]byte, frameBytes),
	}
}

// push encodes samples into the ring and invokes emit for every full
// frame. Call flush at chunk end to drain the remainder.
func (f *framer) push(samples []float32, emit func(payload string, sampleCount int)) {
	buf := make([]byte, 4)
	for _, s := range samples {
		binary.LittleEndian.PutUint32(buf, math.Float32bits(s))
		_, _ = f.ring.Write(buf)
		if f.ring.Length() >= f.frameBytes {
			f.emitFrame(f.frameBytes, emit)
		}
	}
}

// flush emits whatever is buffered as a final short frame.
func (f *framer) flush(emit func(payload string, sampleCount int)) {
	if n := f.ring.Length(); n > 0 {
		f.emitFrame(n, emit)
	}
}

func (f *framer) emitFrame(n int, emit func(payload string, sampleCount int)) {
	if n > len(f.scratch) {
		f.scratch = make([]byte, n)
	}
	read, _ := f.ring.Read(f.scratch[:n])
	emit(base64.StdEncoding.EncodeToString(f.scratch[:read]), read/4)
}

// reset drops any buffered bytes.
func (f *framer) reset() {
	f.ring.Reset()
}
