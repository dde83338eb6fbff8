// Package oer implements the Octet Encoding Rules primitives and the ILPv4
// Prepare/Fulfill/Reject wire codec (spec.md §4.1). Every function here is
// panic-free: malformed input yields a *errs.CodecError, never a panic.
package oer

import (
	"github.com/alldoizcode/connector/internal/errs"
)

// EncodeVarUInt encodes v per spec.md §4.1: values <= 127 as a single byte;
// values >= 128 as a length-prefix byte 0x80|L followed by L big-endian bytes
// (L <= 8, the minimal number of bytes needed to represent v).
func EncodeVarUInt(v uint64) []byte {
	if v <= 127 {
		return []byte{byte(v)}
	}
	var buf [8]byte
	n := 0
	for i := 7; i >= 0; i-- {
		buf[i] = byte(v >> (8 * uint(7-i)))
	}
	// find the first non-zero byte to compute minimal length
	start := 0
	for start < 7 && buf[start] == 0 {
		start++
	}
	n = 8 - start
	out := make([]byte, 1+n)
	out[0] = 0x80 | byte(n)
	copy(out[1:], buf[start:])
	return out
}

// DecodeVarUInt decodes a VarUInt from the front of b, returning the value
// and the number of bytes consumed.
func DecodeVarUInt(b []byte) (uint64, int, error) {
	if len(b) < 1 {
		return 0, 0, errs.NewBufferUnderflow("varuint: need at least 1 byte")
	}
	first := b[0]
	if first <= 127 {
		return uint64(first), 1, nil
	}
	length := int(first &^ 0x80)
	if length == 0 || length > 8 {
		return 0, 0, errs.NewInvalidPacket("varuint: invalid length prefix")
	}
	if len(b) < 1+length {
		return 0, 0, errs.NewBufferUnderflow("varuint: truncated value bytes")
	}
	var v uint64
	for i := 0; i < length; i++ {
		v = (v << 8) | uint64(b[1+i])
	}
	return v, 1 + length, nil
}
