package streaming

import "math"

// crossfader blends the head of each emitted chunk with the stored tail of
// the previous one using an equal-power curve, removing seam clicks. Each
// session owns exactly one crossfader; the tail is cleared on every session
// exit.
type crossfader struct {
	fadeFrames int
	channels   int
	tail       []float32 // last fadeFrames of the previously emitted chunk
}

func newCrossfader(fadeFrames, channels int) *crossfader {
	return &crossfader{fadeFrames: fadeFrames, channels: channels}
}

// apply blends the stored tail into the head of chunk in place, then
// stores the new tail. The first chunk passes through untouched apart from
// tail capture. The tail saved from chunk k is always the one blended into
// chunk k+1.
func (x *crossfader) apply(chunk []float32) {
	if x.fadeFrames <= 0 {
		return
	}

	fadeSamples := x.fadeFrames * x.channels
	if x.tail != nil {
		n := min(fadeSamples, len(chunk), len(x.tail))
		frames := n / x.channels
		for f := 0; f < frames; f++ {
			// Equal-power curve: sin ramps the new chunk in, cos ramps the
			// tail out; combined energy stays constant across the seam.
			t := float64(f) / float64(x.fadeFrames)
			in := float32(math.Sin(t * math.Pi / 2))
			out := float32(math.Cos(t * math.Pi / 2))
			for c := 0; c < x.channels; c++ {
				i := f*x.channels + c
				chunk[i] = chunk[i]*in + x.tail[i]*out
			}
		}
	}

	x.storeTail(chunk, fadeSamples)
}

// storeTail keeps a copy of the chunk's last fadeSamples.
func (x *crossfader) storeTail(chunk []float32, fadeSamples int) {
	n := min(fadeSamples, len(chunk))
	if cap(x.tail) < n {
		x.tail = make([]float32, n)
	}
	x.tail = x.tail[:n]
	copy(x.tail, chunk[len(chunk)-n:])
}

// clear drops the stored tail.
func (x *crossfader) clear() {
	x.tail = nil
}
