package oer

import "github.com/alldoizcode/connector/internal/errs"

// EncodeVarOctetString encodes data as VarUInt(length) || data. Zero-length
// input is legal and encodes as a single 0x00 byte.
func EncodeVarOctetString(data []byte) []byte {
	prefix := EncodeVarUInt(uint64(len(data)))
	out := make([]byte, 0, len(prefix)+len(data))
	out = append(out, prefix...)
	out = append(out, data...)
	return out
}

// DecodeVarOctetString decodes a VarOctetString from the front of b,
// returning the payload and the number of bytes consumed.
func DecodeVarOctetString(b []byte) ([]byte, int, error) {
	length, n, err := DecodeVarUInt(b)
	if err != nil {
		return nil, 0, err
	}
	if len(b) < n || uint64(len(b)-n) < length {
		return nil, 0, errs.NewBufferUnderflow("var octet string: truncated payload")
	}
	payload := make([]byte, length)
	copy(payload, b[n:n+int(length)])
	return payload, n + int(length), nil
}

// EncodeFixedOctetString encodes data with no length prefix. It is an error
// (caller bug) to pass data whose length differs from n; the function
// returns an InvalidPacket error rather than panicking.
func EncodeFixedOctetString(data []byte, n int) ([]byte, error) {
	if len(data) != n {
		return nil, errs.NewInvalidPacket("fixed octet string: length mismatch")
	}
	out := make([]byte, n)
	copy(out, data)
	return out, nil
}

// DecodeFixedOctetString reads exactly n bytes from the front of b.
func DecodeFixedOctetString(b []byte, n int) ([]byte, int, error) {
	if len(b) < n {
		return nil, 0, errs.NewBufferUnderflow("fixed octet string: truncated")
	}
	out := make([]byte, n)
	copy(out, b[:n])
	return out, n, nil
}
