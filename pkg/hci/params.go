package hci

import (
	"encoding/binary"
	"fmt"
	"math/bits"
)

// byteLen returns the minimal byte width of v's magnitude, at least 1.
func byteLen(v int64) int {
	u := uint64(v)
	if v < 0 {
		u = uint64(^v) + 1
	}
	n := (bits.Len64(u) + 7) / 8
	if n == 0 {
		n = 1
	}
	return n
}

// appendParam serializes v in its minimal byte width. Non-negative
// values are encoded unsigned; negative values fall back to
// two's-complement of the same width and fail when they do not fit.
func appendParam(dst []byte, v int64, order binary.ByteOrder) ([]byte, error) {
	n := byteLen(v)
	if v < 0 && v < -1<<(8*n-1) {
		return nil, fmt.Errorf("%w: %d does not fit signed in %d byte(s)", ErrEncoding, v, n)
	}
	return appendUint(dst, uint64(v), n, order), nil
}

func appendUint(dst []byte, u uint64, n int, order binary.ByteOrder) []byte {
	for i := 0; i < n; i++ {
		shift := 8 * i
		if order == binary.BigEndian {
			shift = 8 * (n - 1 - i)
		}
		dst = append(dst, byte(u>>shift))
	}
	return dst
}

func decodeUint(b []byte, order binary.ByteOrder) uint64 {
	var u uint64
	for i, x := range b {
		shift := 8 * i
		if order == binary.BigEndian {
			shift = 8 * (len(b) - 1 - i)
		}
		u |= uint64(x) << shift
	}
	return u
}

// signExtend interprets u as a two's-complement value of n bytes.
func signExtend(u uint64, n int) int64 {
	if n >= 8 {
		return int64(u)
	}
	shift := 64 - 8*n
	return int64(u<<shift) >> shift
}
