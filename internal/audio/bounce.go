package audio

import (
	"fmt"
	"sync"

	"mixcore/internal/diag"
	"mixcore/internal/wav"
)

// bounceTap lets a developer capture the next N composed blocks to a WAV
// file on disk without a real output device attached — useful for
// inspecting the mixer's output directly. It taps the same samples the
// mixer writes to the ring; wav.Writer.WriteBlock handles the downscale to
// 16-bit PCM.
type bounceTap struct {
	mu        sync.Mutex
	w         *wav.Writer
	remaining int
}

// BounceTo opens path and arms the engine to mirror its next blocks
// composed samples into it as 16-bit PCM, closing the file once blocks
// blocks have been captured. Only one bounce capture may be in flight per
// Engine at a time.
func (e *Engine) BounceTo(path string, blocks int) error {
	if blocks <= 0 {
		return fmt.Errorf("blocks must be > 0")
	}
	w, err := wav.NewWriter(path, uint32(e.sampleRate), uint16(e.channels), 16)
	if err != nil {
		return fmt.Errorf("bounce: open writer: %w", err)
	}

	e.bounce.mu.Lock()
	if e.bounce.w != nil {
		e.bounce.mu.Unlock()
		w.Close()
		return fmt.Errorf("bounce already in progress")
	}
	e.bounce.w = w
	e.bounce.remaining = blocks
	e.bounce.mu.Unlock()

	e.diag.Report(e, diag.PENDING, fmt.Sprintf("bouncing %d blocks to %s", blocks, path))
	return nil
}

// tapBounce is called by the mixer loop immediately after composing block,
// before it is handed to the sink. It is a no-op unless BounceTo has armed
// a capture.
func (e *Engine) tapBounce(block []int32) {
	e.bounce.mu.Lock()
	defer e.bounce.mu.Unlock()

	if e.bounce.w == nil {
		return
	}

	if _, err := e.bounce.w.WriteBlock(block); err != nil {
		e.diag.Report(e, diag.WARNING, "bounce write failed: "+err.Error())
	}

	e.bounce.remaining--
	if e.bounce.remaining <= 0 {
		if err := e.bounce.w.Close(); err != nil {
			e.diag.Report(e, diag.WARNING, "bounce close failed: "+err.Error())
		} else {
			e.diag.Report(e, diag.OK, "bounce complete")
		}
		e.bounce.w = nil
	}
}
