package audio

// maxSample is the largest magnitude representable in a signed 32-bit PCM
// sample: 2^31 - 1. Mixed output is scaled into [-maxSample, +maxSample].
const maxSample = (1 << 31) - 1

// blockRing is the fixed B x S buffer of int32 samples handed to the device
// one block at a time, plus one "prepared" marker per block standing in for
// WAVEHDR's WHDR_PREPARED flag in the original engine.
type blockRing struct {
	blockCount  int
	sampleCount int // samples per block (S)
	samples     []int32
	prepared    []bool
}

func newBlockRing(blockCount, samplesPerBlock int) *blockRing {
	return &blockRing{
		blockCount:  blockCount,
		sampleCount: samplesPerBlock,
		samples:     make([]int32, blockCount*samplesPerBlock),
		prepared:    make([]bool, blockCount),
	}
}

// block returns the samples belonging to block index n.
func (r *blockRing) block(n int) []int32 {
	start := n * r.sampleCount
	return r.samples[start : start+r.sampleCount]
}
