package wav

import (
	"bytes"
	"encoding/binary"
	"math"
	"path/filepath"
	"testing"
)

// synth builds a minimal canonical WAV byte buffer (12-byte RIFF/WAVE
// descriptor, "fmt " subchunk, "data" subchunk, no gaps) around raw PCM
// bytes, mirroring the layout Reader expects and Writer produces.
func synth(channels, sampleRate, bitsPerSample int, data []byte) []byte {
	var buf bytes.Buffer
	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(36+len(data)))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, uint16(1))
	binary.Write(&buf, binary.LittleEndian, uint16(channels))
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate))
	byteRate := uint32(sampleRate * channels * bitsPerSample / 8)
	binary.Write(&buf, binary.LittleEndian, byteRate)
	blockAlign := uint16(channels * bitsPerSample / 8)
	binary.Write(&buf, binary.LittleEndian, blockAlign)
	binary.Write(&buf, binary.LittleEndian, uint16(bitsPerSample))

	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, uint32(len(data)))
	buf.Write(data)
	return buf.Bytes()
}

func TestReadHeaderFields(t *testing.T) {
	data := []byte{0, 0, 0, 0} // two 16-bit silent samples
	raw := synth(2, 44100, 16, data)

	r, err := Read(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if r.Channels != 2 {
		t.Fatalf("want 2 channels, got %d", r.Channels)
	}
	if r.SampleRate != 44100 {
		t.Fatalf("want 44100 Hz, got %d", r.SampleRate)
	}
	if r.BitsPerSample != 16 {
		t.Fatalf("want 16-bit, got %d", r.BitsPerSample)
	}
	if len(r.Samples) != 2 {
		t.Fatalf("want 2 samples, got %d", len(r.Samples))
	}
}

func TestRead8BitIsSignedNotOffset(t *testing.T) {
	// 0x00 -> signed 0 -> normalized 0.0; 0xFF -> signed -1 -> ~ -1/128.
	raw := synth(1, 8000, 8, []byte{0x00, 0xFF})

	r, err := Read(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(r.Samples) != 2 {
		t.Fatalf("want 2 samples, got %d", len(r.Samples))
	}
	if r.Samples[0] != 0.0 {
		t.Fatalf("0x00 should decode to 0.0, got %v", r.Samples[0])
	}
	want := -1.0 / 128.0
	if math.Abs(r.Samples[1]-want) > 1e-9 {
		t.Fatalf("0xFF should decode to %v, got %v", want, r.Samples[1])
	}
}

func TestRead16BitSignExtension(t *testing.T) {
	var data bytes.Buffer
	binary.Write(&data, binary.LittleEndian, int16(-32768))
	binary.Write(&data, binary.LittleEndian, int16(32767))
	raw := synth(1, 48000, 16, data.Bytes())

	r, err := Read(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if r.Samples[0] != -1.0 {
		t.Fatalf("want -1.0 for int16 min, got %v", r.Samples[0])
	}
	want := 32767.0 / 32768.0
	if math.Abs(r.Samples[1]-want) > 1e-9 {
		t.Fatalf("want %v for int16 max, got %v", want, r.Samples[1])
	}
}

func TestReadRejectsBadMagic(t *testing.T) {
	raw := synth(1, 48000, 16, []byte{0, 0})
	raw[0] = 'X' // corrupt "RIFF"

	if _, err := Read(bytes.NewReader(raw)); err == nil {
		t.Fatalf("expected error for bad RIFF magic")
	}
}

func TestRoundTripThroughWriter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bounce.wav")
	w, err := NewWriter(path, 48000, 2, 16)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}

	block := []int32{math.MinInt32, 0, math.MaxInt32, -1 << 16}
	if _, err := w.WriteBlock(block); err != nil {
		t.Fatalf("WriteBlock: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	r, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if r.SampleRate != 48000 || r.Channels != 2 || r.BitsPerSample != 16 {
		t.Fatalf("format mismatch: %+v", r)
	}
	if len(r.Samples) != len(block) {
		t.Fatalf("want %d samples, got %d", len(block), len(r.Samples))
	}
	// WriteBlock downscales int32 -> int16 via s>>16, so round-tripping
	// loses the low 16 bits; compare at 16-bit precision.
	for i, s := range block {
		want := float64(int16(s>>16)) / 32768.0
		if math.Abs(r.Samples[i]-want) > 1e-9 {
			t.Fatalf("sample %d: want %v got %v", i, want, r.Samples[i])
		}
	}
}
