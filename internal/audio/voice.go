package audio

import (
	"math"
	"sync"
	"sync/atomic"

	"mixcore/internal/diag"
	"mixcore/internal/wav"
)

// Filter is a pure sample transform applied per-channel: (amplitude,
// channel index) -> amplitude. Both Engine and Voice accept one.
type Filter func(amplitude float64, channel int) float64

// sampleBuffer is the immutable, shareable decoded sample data backing one
// or more Voices. Its pointer never mutates once constructed, so it is safe
// for unsynchronized concurrent reads — only Voice.needles and the control
// flags change over a Voice's lifetime.
type sampleBuffer struct {
	samples       []float64 // normalized to [-1, +1], interleaved
	sampleRate    int
	channels      int
	bitsPerSample int
}

func (b *sampleBuffer) count() int { return len(b.samples) }

// Voice owns one decoded sample buffer plus mutable playback state: a
// multiset of read positions ("needles"), loop/pause/mute flags, volume and
// an optional filter. A Voice holds a non-owning back-reference to its
// Engine; the Engine is guaranteed by its caller to outlive every Voice
// bound to it.
type Voice struct {
	engine *Engine
	diag   diag.Sink

	buf *sampleBuffer

	mu      sync.Mutex
	needles []int

	loop   atomic.Bool
	pause  atomic.Bool
	mute   atomic.Bool
	volume atomic.Uint64 // math.Float64bits

	filter atomic.Pointer[Filter]
}

// NewVoice creates an empty Voice bound to engine. Load a sample buffer into
// it with LoadSamples or LoadWAVE before calling Play.
func NewVoice(engine *Engine) *Voice {
	v := &Voice{engine: engine}
	v.volume.Store(math.Float64bits(1.0))
	if engine != nil {
		v.diag = engine.diag.With("Voice")
	} else {
		v.diag = diag.NopSink{}
	}
	v.diag.Report(v, diag.OK, "created")
	return v
}

// LoadSamples installs a decoded, normalized sample buffer and its source
// metadata. It warns (does not fail) on a sample-rate or channel-count
// mismatch against the bound Engine, per spec §4.2/§7.
func (v *Voice) LoadSamples(samples []float64, sampleRate, channels, bitsPerSample int) *Voice {
	v.buf = &sampleBuffer{samples: samples, sampleRate: sampleRate, channels: channels, bitsPerSample: bitsPerSample}

	if v.engine != nil {
		if sampleRate != 0 && sampleRate != v.engine.sampleRate {
			v.diag.Report(v, diag.WARNING, "sample rate does not match with locked on engine's")
		}
		if channels != 0 && channels != v.engine.channels {
			v.diag.Report(v, diag.WARNING, "channel count does not match with locked on engine's")
		}
	}
	v.diag.Report(v, diag.OK, "samples loaded")
	return v
}

// LoadWAVE reads path as a canonical PCM WAV file and installs it as the
// voice's sample buffer, same as LoadSamples but reading straight from disk.
func (v *Voice) LoadWAVE(path string) (*Voice, error) {
	r, err := wav.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return v.LoadSamples(r.Samples, r.SampleRate, r.Channels, r.BitsPerSample), nil
}

// N reports the sample count of the loaded buffer, or 0 if none is loaded.
func (v *Voice) N() int {
	if v.buf == nil {
		return 0
	}
	return v.buf.count()
}

// LockOn rebinds the voice to a different engine. Undefined if the voice is
// currently playing, per spec §4.2.
func (v *Voice) LockOn(engine *Engine) *Voice {
	v.engine = engine
	if engine != nil {
		v.diag = engine.diag.With("Voice")
	}
	return v
}

// Play appends a new needle at position 0 and ensures the voice is a member
// of its engine's active list. Multiple Play calls stack independent
// needles, enabling overlapping one-shots.
func (v *Voice) Play() *Voice {
	if v.buf == nil || v.buf.count() == 0 {
		return v // SourceOpenFailed/SourceAllocFailed path left the voice empty; play is a no-op.
	}
	if v.engine != nil && !v.engine.isRunning() {
		return v // Stopping/Closed: play calls are silently dropped, per spec §4.1.3.
	}
	v.mu.Lock()
	wasEmpty := len(v.needles) == 0
	v.needles = append(v.needles, 0)
	v.mu.Unlock()

	if wasEmpty && v.engine != nil {
		v.engine.addActive(v)
	}
	return v
}

// hasNeedles reports whether the voice currently has at least one live
// needle. Used by the mixer's prune step.
func (v *Voice) hasNeedles() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.needles) > 0
}

// contribute computes this voice's contribution to channel c for the
// current sample and advances every needle by one position, per spec
// §4.1.2's needle-advance rule. Called exactly once per (frame, channel)
// pair the mixer composes, so a voice's needle moves once per raw
// interleaved sample regardless of the engine's channel count — the "flat
// indexing" the spec calls out in §4.1.2.
func (v *Voice) contribute(channel int, engineVolume float64, engineMuted bool) float64 {
	if v.pause.Load() {
		return 0
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	if v.buf == nil || len(v.buf.samples) == 0 || len(v.needles) == 0 {
		return 0
	}

	n := len(v.buf.samples)
	vol := v.Volume()
	muted := v.mute.Load()
	looping := v.loop.Load()
	filter := v.Filter()

	sum := 0.0
	write := 0
	for _, pos := range v.needles {
		s := v.buf.samples[pos]
		a := s
		if filter != nil {
			a = filter(s, channel)
		}
		a *= vol
		if muted {
			a = 0
		}
		a *= engineVolume
		if engineMuted {
			a = 0
		}
		sum += a

		pos++
		if pos >= n {
			if !looping {
				continue // drop this needle: not written back.
			}
			pos = 0
		}
		v.needles[write] = pos
		write++
	}
	v.needles = v.needles[:write]

	return sum
}

// Stop clears all needles. The voice is pruned from its engine's active
// list on the mixer's next iteration — stop-then-stop is equivalent to
// stop, per spec §8.
func (v *Voice) Stop() *Voice {
	v.mu.Lock()
	v.needles = v.needles[:0]
	v.mu.Unlock()
	return v
}

// IsPlaying reports whether the voice currently has at least one live
// needle. A voice whose needles were just cleared stays in its engine's
// active list until the mixer's next prune step.
func (v *Voice) IsPlaying() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.needles) > 0
}

func (v *Voice) Loop() *Voice      { v.loop.Store(true); return v }
func (v *Voice) Unloop() *Voice    { v.loop.Store(false); return v }
func (v *Voice) SwapLoop() *Voice  { flip(&v.loop); return v }
func (v *Voice) IsLooping() bool   { return v.loop.Load() }

func (v *Voice) Pause() *Voice     { v.pause.Store(true); return v }
func (v *Voice) Resume() *Voice    { v.pause.Store(false); return v }
func (v *Voice) SwapPause() *Voice { flip(&v.pause); return v }
func (v *Voice) IsPaused() bool    { return v.pause.Load() }

func (v *Voice) Mute() *Voice      { v.mute.Store(true); return v }
func (v *Voice) Unmute() *Voice    { v.mute.Store(false); return v }
func (v *Voice) SwapMute() *Voice  { flip(&v.mute); return v }
func (v *Voice) IsMuted() bool     { return v.mute.Load() }

// VolumeTo sets the voice's volume gain, nominal 1.0.
func (v *Voice) VolumeTo(vol float64) *Voice {
	v.volume.Store(math.Float64bits(vol))
	return v
}

func (v *Voice) Volume() float64 {
	return math.Float64frombits(v.volume.Load())
}

// FilterTo installs a per-voice sample transform, or clears it if f is nil.
// The mixer may pick up the new filter up to one block late.
func (v *Voice) FilterTo(f Filter) *Voice {
	if f == nil {
		v.filter.Store(nil)
		return v
	}
	v.filter.Store(&f)
	return v
}

func (v *Voice) Filter() Filter {
	p := v.filter.Load()
	if p == nil {
		return nil
	}
	return *p
}

func flip(b *atomic.Bool) {
	for {
		old := b.Load()
		if b.CompareAndSwap(old, !old) {
			return
		}
	}
}
