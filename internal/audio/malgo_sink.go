package audio

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/gen2brain/malgo"

	"mixcore/internal/diag"
)

// malgoSink is the production sink backend, built on github.com/gen2brain/malgo
// (a cgo binding of miniaudio), the same library the teacher app uses for
// WASAPI capture in internal/audio/mic.go and internal/audio/loopback.go —
// here adapted from capture to playback.
//
// malgo's Data callback is a *pull* API: the OS audio thread calls it
// synchronously whenever it wants the next block of samples, and the
// callback must return a filled buffer before the call completes. The
// spec's free-block-counter/condvar contract was written against waveOut, a
// *push* API where completion is signalled asynchronously some time after
// submission. malgoSink bridges the two: write() does not hand samples to
// the device at all — it appends the block index to a small FIFO queue.
// The Data callback pops the oldest queued index, copies it into the
// device's output buffer, and only then invokes onEvent(eventBlockDone) —
// that invocation is what stands in for WOM_DONE. If the queue is empty
// when Data fires (the mixer fell behind), the callback emits silence for
// that call and reports a WARNING rather than blocking the OS audio thread.
type malgoSink struct {
	diag diag.Sink

	mu      sync.Mutex
	ctx     *malgo.AllocatedContext
	device  *malgo.Device
	ring    *blockRing
	queue   []int
	onEvent func(sinkEvent)
	closed  bool
}

func newMalgoSink(d diag.Sink) *malgoSink {
	return &malgoSink{diag: d}
}

func (s *malgoSink) devices() ([]string, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(string) {})
	if err != nil {
		return nil, fmt.Errorf("init malgo context: %w", err)
	}
	defer ctx.Uninit()

	infos, err := ctx.Devices(malgo.Playback)
	if err != nil {
		return nil, fmt.Errorf("enumerate playback devices: %w", err)
	}

	names := make([]string, 0, len(infos))
	for _, info := range infos {
		name := info.Name()
		if name == "" {
			continue // missing-capability entries are skipped silently, per spec.
		}
		names = append(names, name)
	}
	return names, nil
}

func (s *malgoSink) open(cfg sinkConfig, ring *blockRing, onEvent func(sinkEvent)) error {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(string) {})
	if err != nil {
		return fmt.Errorf("init malgo context: %w", err)
	}

	infos, err := ctx.Devices(malgo.Playback)
	if err != nil {
		ctx.Uninit()
		return fmt.Errorf("enumerate playback devices: %w", err)
	}

	var deviceID *malgo.DeviceID
	found := false
	for i := range infos {
		if infos[i].Name() == cfg.deviceName {
			deviceID = &infos[i].ID
			found = true
			break
		}
	}
	if !found {
		ctx.Uninit()
		return newErr(DeviceNotFound, cfg.deviceName, nil)
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Playback)
	deviceConfig.Playback.Format = malgo.FormatS32
	deviceConfig.Playback.Channels = uint32(cfg.channels)
	deviceConfig.Playback.DeviceID = deviceID.Pointer()
	deviceConfig.SampleRate = uint32(cfg.sampleRate)
	deviceConfig.PeriodSizeInFrames = uint32(ring.sampleCount / cfg.channels)

	s.ring = ring
	s.onEvent = onEvent

	callbacks := malgo.DeviceCallbacks{
		Data: s.onData,
		Stop: func() { s.notify(eventDeviceClosing) },
	}

	dev, err := malgo.InitDevice(ctx.Context, deviceConfig, callbacks)
	if err != nil {
		ctx.Uninit()
		return newErr(DeviceOpenFailed, cfg.deviceName, err)
	}
	if err := dev.Start(); err != nil {
		dev.Uninit()
		ctx.Uninit()
		return newErr(DeviceOpenFailed, cfg.deviceName, err)
	}

	s.ctx = ctx
	s.device = dev
	return nil
}

func (s *malgoSink) onData(pOutputSample, _ []byte, frameCount uint32) {
	s.mu.Lock()
	var idx int
	ready := len(s.queue) > 0
	if ready {
		idx = s.queue[0]
		s.queue = s.queue[1:]
	}
	s.mu.Unlock()

	if !ready {
		for i := range pOutputSample {
			pOutputSample[i] = 0
		}
		s.diag.Report(s, diag.WARNING, "sink underrun: no prepared block ready, emitting silence")
		return
	}

	block := s.ring.block(idx)
	for i, sample := range block {
		binary.LittleEndian.PutUint32(pOutputSample[i*4:], uint32(sample))
	}
	s.notify(eventBlockDone)
}

func (s *malgoSink) notify(ev sinkEvent) {
	if s.onEvent != nil {
		s.onEvent(ev)
	}
}

func (s *malgoSink) prepare(block int) error {
	s.ring.prepared[block] = true
	return nil
}

func (s *malgoSink) write(block int) error {
	s.mu.Lock()
	s.queue = append(s.queue, block)
	s.mu.Unlock()
	return nil
}

func (s *malgoSink) unprepare(block int) error {
	s.ring.prepared[block] = false
	return nil
}

func (s *malgoSink) reset() error {
	s.mu.Lock()
	s.queue = s.queue[:0]
	s.mu.Unlock()
	if s.device != nil {
		return s.device.Stop()
	}
	return nil
}

func (s *malgoSink) close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	if s.device != nil {
		s.device.Uninit()
		s.device = nil
	}
	if s.ctx != nil {
		err := s.ctx.Uninit()
		s.ctx = nil
		return err
	}
	return nil
}
