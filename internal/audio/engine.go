// Package audio is the mixer core: an Engine mixes an arbitrary, dynamically
// changing set of Voices into a continuous stream of block-sized PCM frames
// fed to a single output device.
package audio

import (
	"fmt"
	"math"
	"sync"
	"sync/atomic"

	"mixcore/internal/diag"
)

// state is the Engine's lifecycle: Unbound -> Running -> Stopping -> Closed.
type state int32

const (
	stateUnbound state = iota
	stateRunning
	stateStopping
	stateClosed
)

// Config describes the device binding and nominal format an Engine is
// constructed with.
type Config struct {
	DeviceName      string
	SampleRate      int
	Channels        int // C >= 1
	BlockCount      int // B >= 2
	SamplesPerBlock int // S >= C, S mod C == 0

	// Diag receives one report per constructor/operation. Defaults to a
	// no-op sink if nil.
	Diag diag.Sink
}

// Engine owns one device connection, the block ring fed to it, the mixer
// thread, and the registry of currently-sounding Voices.
type Engine struct {
	diag diag.Sink

	deviceName      string
	sampleRate      int
	channels        int
	blockCount      int
	samplesPerBlock int

	ring *blockRing
	snk  sink

	state   atomic.Int32
	powered atomic.Bool

	freeBlocks atomic.Int32
	mu         sync.Mutex
	cond       *sync.Cond

	activeMu sync.Mutex
	active   []*Voice

	current int // block ring cursor; touched only by the mixer goroutine

	volume atomic.Uint64 // math.Float64bits
	mute   atomic.Bool
	pause  atomic.Bool
	filter atomic.Pointer[Filter]

	bounce bounceTap

	mixerStopped chan struct{}
}

// NewEngine resolves DeviceName against the OS-enumerated output devices,
// opens it for PCM int32 playback, allocates the block ring, and spawns the
// mixer thread. See spec §4.1 for the exact construction contract and
// failure-kind ordering.
func NewEngine(cfg Config) (*Engine, error) {
	d := cfg.Diag
	if d == nil {
		d = diag.NopSink{}
	}
	return newEngine(cfg, newMalgoSink(d.With("sink")), d)
}

// Devices enumerates the OS-reported output devices in OS-reported order.
// Entries the backend cannot describe are skipped silently.
func Devices() ([]string, error) {
	return newMalgoSink(diag.NopSink{}).devices()
}

func newEngine(cfg Config, snk sink, d diag.Sink) (*Engine, error) {
	e := &Engine{
		diag:            d.With("Engine"),
		deviceName:      cfg.DeviceName,
		sampleRate:      cfg.SampleRate,
		channels:        cfg.Channels,
		blockCount:      cfg.BlockCount,
		samplesPerBlock: cfg.SamplesPerBlock,
		snk:             snk,
		mixerStopped:    make(chan struct{}),
	}
	e.cond = sync.NewCond(&e.mu)
	e.volume.Store(math.Float64bits(1.0))
	e.state.Store(int32(stateUnbound))

	if cfg.Channels < 1 {
		return e, fmt.Errorf("channel count must be >= 1")
	}
	if cfg.BlockCount < 2 {
		return e, fmt.Errorf("block count must be >= 2")
	}
	if cfg.SamplesPerBlock < cfg.Channels || cfg.SamplesPerBlock%cfg.Channels != 0 {
		return e, fmt.Errorf("samples-per-block must be a multiple of channel count")
	}
	if cfg.BlockCount > (1<<31-1)/cfg.SamplesPerBlock {
		e.diag.Report(e, diag.FAULT, "block ring size overflows")
		return e, newErr(AllocFailed, "block ring size overflows", nil)
	}

	// §4.1 step 3: allocate the block ring ahead of opening the device, so
	// the sink's open() (which, for malgoSink, sizes its period off the
	// ring) has a ring to size against. This ring allocation cannot fail
	// in Go short of an out-of-memory panic; the AllocFailed kind above
	// covers the one checkable failure mode (an overflowing size request).
	e.ring = newBlockRing(cfg.BlockCount, cfg.SamplesPerBlock)
	e.freeBlocks.Store(int32(cfg.BlockCount))

	// §4.1 steps 1-2: resolve device name, open for PCM int32 playback,
	// install the completion callback.
	sinkCfg := sinkConfig{deviceName: cfg.DeviceName, sampleRate: cfg.SampleRate, channels: cfg.Channels}
	if err := snk.open(sinkCfg, e.ring, e.onSinkEvent); err != nil {
		var aerr *Error
		if as(err, &aerr) {
			e.diag.Report(e, diag.FAULT, aerr.Error())
			return e, aerr
		}
		e.diag.Report(e, diag.FAULT, err.Error())
		return e, newErr(DeviceOpenFailed, cfg.DeviceName, err)
	}

	// §4.1 step 4: mark powered, spawn the mixer thread, signal it once.
	e.powered.Store(true)
	e.state.Store(int32(stateRunning))

	started := make(chan struct{})
	go func() {
		close(started)
		e.run()
	}()
	<-started

	e.mu.Lock()
	e.cond.Signal()
	e.mu.Unlock()

	e.diag.Report(e, diag.OK, "created")
	return e, nil
}

// as is a tiny errors.As helper kept local so this file doesn't need to
// import "errors" just for one call site.
func as(err error, target **Error) bool {
	aerr, ok := err.(*Error)
	if !ok {
		return false
	}
	*target = aerr
	return true
}

// onSinkEvent is the completion callback installed on the sink. It is
// invoked from an arbitrary OS thread (the device callback, per spec §5).
func (e *Engine) onSinkEvent(ev sinkEvent) {
	switch ev {
	case eventBlockDone:
		e.freeBlocks.Add(1)
		e.mu.Lock()
		e.cond.Signal()
		e.mu.Unlock()
	case eventDeviceClosing:
		// Nothing observable, per spec §4.1.1.
	}
}

// run is the mixer thread body: one iteration composes and submits one
// block, per spec §4.1.2.
func (e *Engine) run() {
	defer close(e.mixerStopped)
	for {
		if !e.powered.Load() {
			return
		}

		e.mu.Lock()
		for e.freeBlocks.Load() == 0 && e.powered.Load() {
			e.cond.Wait()
		}
		e.mu.Unlock()

		if !e.powered.Load() {
			return
		}

		e.freeBlocks.Add(-1)

		if e.ring.prepared[e.current] {
			_ = e.snk.unprepare(e.current)
			e.ring.prepared[e.current] = false
		}

		e.pruneActive()

		block := e.ring.block(e.current)
		S := e.samplesPerBlock
		C := e.channels
		for f := 0; f < S; f += C {
			for c := 0; c < C; c++ {
				amp := e.mix(c)
				block[f+c] = int32(clip(amp) * maxSample)
			}
		}

		e.tapBounce(block)

		_ = e.snk.prepare(e.current)
		e.ring.prepared[e.current] = true
		_ = e.snk.write(e.current)

		e.current = (e.current + 1) % e.blockCount
	}
}

// pruneActive drops every voice whose needles are empty, per spec §4.1.2
// step 4. This is the only site that removes entries from the active list;
// Voice.Play is the only site that adds to it. Both take activeMu, which is
// the "short critical section" discipline chosen for list mutation (spec
// §4.1.2's "Concurrency of the active-voice list").
func (e *Engine) pruneActive() {
	e.activeMu.Lock()
	defer e.activeMu.Unlock()

	write := 0
	for _, v := range e.active {
		if v.hasNeedles() {
			e.active[write] = v
			write++
		}
	}
	for i := write; i < len(e.active); i++ {
		e.active[i] = nil
	}
	e.active = e.active[:write]
}

// addActive registers v in the active list if it isn't already a member.
func (e *Engine) addActive(v *Voice) {
	e.activeMu.Lock()
	defer e.activeMu.Unlock()
	for _, existing := range e.active {
		if existing == v {
			return
		}
	}
	e.active = append(e.active, v)
}

// mix computes the summed amplitude for one channel of one frame, advancing
// every contributing voice's needle by one, per spec §4.1.2's mix(channel).
func (e *Engine) mix(channel int) float64 {
	if e.pause.Load() {
		return 0
	}

	e.activeMu.Lock()
	active := e.active
	e.activeMu.Unlock()

	engineVolume := e.Volume()
	engineMuted := e.mute.Load()

	sum := 0.0
	for _, v := range active {
		sum += v.contribute(channel, engineVolume, engineMuted)
	}

	if f := e.Filter(); f != nil {
		return f(sum, channel)
	}
	return sum
}

// clip saturates an amplitude to [-1, +1] before scaling to the integer
// range, per spec §4.1.2.
func clip(x float64) float64 {
	if x >= 0 {
		return math.Min(x, 1.0)
	}
	return math.Max(x, -1.0)
}

// Close transitions Running -> Stopping -> Closed: clears powered, wakes
// the mixer, joins it, then unprepares any still-prepared block and closes
// the sink. Further operations on a Closed Engine are invalid.
func (e *Engine) Close() error {
	if state(e.state.Load()) != stateRunning {
		return nil
	}
	e.state.Store(int32(stateStopping))

	e.powered.Store(false)
	e.mu.Lock()
	e.cond.Broadcast()
	e.mu.Unlock()

	// run() returns once it observes powered == false; mixerStopped, closed
	// by run() on exit, stands in for Thread::join().
	<-e.mixerStopped

	for i, p := range e.ring.prepared {
		if p {
			_ = e.snk.unprepare(i)
			e.ring.prepared[i] = false
		}
	}
	err := e.snk.reset()
	if cerr := e.snk.close(); cerr != nil && err == nil {
		err = cerr
	}

	e.state.Store(int32(stateClosed))
	e.diag.Report(e, diag.OK, "closed")
	return err
}

// Public, idempotent, non-suspending operations (spec §4.1).

func (e *Engine) Pause() *Engine     { e.pause.Store(true); return e }
func (e *Engine) Resume() *Engine    { e.pause.Store(false); return e }
func (e *Engine) SwapPause() *Engine { flipEngine(&e.pause); return e }
func (e *Engine) IsPaused() bool     { return e.pause.Load() }

func (e *Engine) Mute() *Engine     { e.mute.Store(true); return e }
func (e *Engine) Unmute() *Engine   { e.mute.Store(false); return e }
func (e *Engine) SwapMute() *Engine { flipEngine(&e.mute); return e }
func (e *Engine) IsMuted() bool     { return e.mute.Load() }

func (e *Engine) VolumeTo(v float64) *Engine {
	e.volume.Store(math.Float64bits(v))
	return e
}
func (e *Engine) Volume() float64 { return math.Float64frombits(e.volume.Load()) }

func (e *Engine) FilterTo(f Filter) *Engine {
	if f == nil {
		e.filter.Store(nil)
		return e
	}
	e.filter.Store(&f)
	return e
}
func (e *Engine) Filter() Filter {
	p := e.filter.Load()
	if p == nil {
		return nil
	}
	return *p
}

func (e *Engine) isRunning() bool { return state(e.state.Load()) == stateRunning }

func (e *Engine) Device() string { return e.deviceName }

func (e *Engine) SampleRate() int { return e.sampleRate }
func (e *Engine) Channels() int   { return e.channels }

func flipEngine(b *atomic.Bool) {
	for {
		old := b.Load()
		if b.CompareAndSwap(old, !old) {
			return
		}
	}
}
