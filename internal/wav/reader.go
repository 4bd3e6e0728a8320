package wav

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
)

// Reader decodes a canonical PCM WAV file: a 12-byte RIFF/WAVE descriptor
// immediately followed by a "fmt " subchunk and then a "data" subchunk, with
// no intervening chunks — the same layout Writer produces. Channel count is
// read at byte 22, sample rate at byte 24, bits-per-sample at byte 34, the
// data subchunk's length at byte 40, and samples begin at byte 44.
type Reader struct {
	SampleRate    int
	Channels      int
	BitsPerSample int

	// Samples holds every sample (interleaved across channels) normalized to
	// [-1, +1] by dividing the raw integer value by 2^(bits-1).
	Samples []float64
}

// ReadFile reads and decodes the WAV file at path.
func ReadFile(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Read(f)
}

// Read decodes a canonical PCM WAV stream from r.
func Read(r io.Reader) (*Reader, error) {
	header := make([]byte, 44)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, fmt.Errorf("read WAV header: %w", err)
	}
	if string(header[0:4]) != "RIFF" || string(header[8:12]) != "WAVE" {
		return nil, fmt.Errorf("not a RIFF/WAVE file")
	}
	if string(header[12:16]) != "fmt " || string(header[36:40]) != "data" {
		return nil, fmt.Errorf("unsupported WAV layout: expected fmt  and data subchunks with no gap")
	}

	channels := int(binary.LittleEndian.Uint16(header[22:24]))
	sampleRate := int(binary.LittleEndian.Uint32(header[24:28]))
	bitsPerSample := int(binary.LittleEndian.Uint16(header[34:36]))
	dataLen := binary.LittleEndian.Uint32(header[40:44])

	if channels < 1 {
		return nil, fmt.Errorf("invalid channel count %d", channels)
	}
	if bitsPerSample != 8 && bitsPerSample != 16 && bitsPerSample != 24 && bitsPerSample != 32 {
		return nil, fmt.Errorf("unsupported bits-per-sample %d", bitsPerSample)
	}

	bytesPerSample := bitsPerSample / 8
	if bytesPerSample == 0 || dataLen%uint32(bytesPerSample) != 0 {
		return nil, fmt.Errorf("data length %d not a multiple of sample width %d", dataLen, bytesPerSample)
	}

	raw := make([]byte, dataLen)
	if _, err := io.ReadFull(r, raw); err != nil {
		return nil, fmt.Errorf("read WAV data: %w", err)
	}

	n := int(dataLen) / bytesPerSample
	samples := make([]float64, n)
	full := math.Exp2(float64(bitsPerSample - 1))

	for i := 0; i < n; i++ {
		off := i * bytesPerSample
		var v int64
		switch bitsPerSample {
		case 8:
			v = int64(int8(raw[off]))
		case 16:
			v = int64(int16(binary.LittleEndian.Uint16(raw[off : off+2])))
		case 24:
			b0, b1, b2 := int32(raw[off]), int32(raw[off+1]), int32(raw[off+2])
			x := b0 | b1<<8 | b2<<16
			if x&(1<<23) != 0 {
				x |= ^0 << 24 // sign-extend
			}
			v = int64(x)
		case 32:
			v = int64(int32(binary.LittleEndian.Uint32(raw[off : off+4])))
		}
		samples[i] = float64(v) / full
	}

	return &Reader{
		SampleRate:    sampleRate,
		Channels:      channels,
		BitsPerSample: bitsPerSample,
		Samples:       samples,
	}, nil
}
