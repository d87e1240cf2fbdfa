package audio

import (
	"encoding/binary"
	"math"
)

// ToFloat64 widens src into dst and returns dst[:len(src)]. dst must be at
// least as long as src.
func ToFloat64(dst []float64, src []float32) []float64 {
	dst = dst[:len(src)]
	for i, x := range src {
		dst[i] = float64(x)
	}
	return dst
}

// ToFloat32 narrows src into dst, clamping to [-1, 1]
func ToFloat32(dst []float32, src []float64) {
	for i := range min(len(dst), len(src)) {
		dst[i] = float32(max(-1, min(1, src[i])))
	}
}

// PutFloat32LE encodes src as little-endian float32 samples into dst,
// which must hold 4 bytes per sample
func PutFloat32LE(dst []byte, src []float64) {
	for i, x := range src {
		binary.LittleEndian.PutUint32(dst[i*4:], math.Float32bits(float32(max(-1, min(1, x)))))
	}
}
