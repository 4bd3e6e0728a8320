package audio

// sinkEvent is one of the two events the spec's device interface consumes:
// block-done (a previously-submitted block finished playing) or
// device-closing. All other events are ignored, per spec §6.
type sinkEvent int

const (
	eventBlockDone sinkEvent = iota
	eventDeviceClosing
)

// sinkConfig carries the format parameters needed to open a device.
type sinkConfig struct {
	deviceName string
	sampleRate int
	channels   int
}

// sink is the device-facing collaborator named in spec §6: "operations
// expected: enumerate devices..., open a device in PCM int32 format with a
// supplied sample rate/channel count and a completion callback..., prepare/
// unprepare/write block descriptors, reset, close." The Engine's mixer loop
// is written entirely against this interface, never against a vendor SDK
// directly, which is what lets engine_test.go exercise the real mixer
// algorithm without audio hardware.
type sink interface {
	// devices enumerates output devices in OS-reported order. Entries the
	// backend cannot describe are skipped silently, per spec §4.1.
	devices() ([]string, error)

	// open resolves cfg.deviceName to a device, opens it for PCM int32
	// playback, and installs onEvent as the completion callback. ring is
	// the block ring the sink reads from once write marks a block ready.
	open(cfg sinkConfig, ring *blockRing, onEvent func(sinkEvent)) error

	// prepare marks a block as about to be submitted.
	prepare(block int) error
	// write submits a prepared block to the device.
	write(block int) error
	// unprepare releases a block's device-side preparation.
	unprepare(block int) error

	// reset stops playback and drops any queued blocks.
	reset() error
	// close releases the device entirely. No further callbacks are
	// delivered after close returns.
	close() error
}
