package oer

import (
	"fmt"
	"time"

	"github.com/alldoizcode/connector/internal/errs"
)

const generalizedTimeLayout = "20060102150405.000Z"
const generalizedTimeLen = 19

// EncodeGeneralizedTime renders instant as the 19-byte ASCII string
// "YYYYMMDDHHmmss.fffZ", always UTC, zero-padded.
func EncodeGeneralizedTime(instant time.Time) []byte {
	s := instant.UTC().Format(generalizedTimeLayout)
	return []byte(s)
}

// DecodeGeneralizedTime parses a 19-byte ASCII GeneralizedTime string from
// the front of b. Fewer than 19 bytes yields BufferUnderflow; any deviation
// in the 19 bytes (digits, '.', literal 'Z') is rejected with InvalidPacket.
func DecodeGeneralizedTime(b []byte) (time.Time, int, error) {
	if len(b) < generalizedTimeLen {
		return time.Time{}, 0, errs.NewBufferUnderflow("generalized time: truncated")
	}
	raw := b[:generalizedTimeLen]
	if raw[generalizedTimeLen-1] != 'Z' {
		return time.Time{}, 0, errs.NewInvalidPacket("generalized time: missing trailing Z")
	}
	if raw[14] != '.' {
		return time.Time{}, 0, errs.NewInvalidPacket("generalized time: missing decimal point")
	}
	for i, c := range raw {
		if i == 14 || i == generalizedTimeLen-1 {
			continue
		}
		if c < '0' || c > '9' {
			return time.Time{}, 0, errs.NewInvalidPacket(fmt.Sprintf("generalized time: non-digit at offset %d", i))
		}
	}
	t, err := time.Parse(generalizedTimeLayout, string(raw))
	if err != nil {
		return time.Time{}, 0, errs.NewInvalidPacket("generalized time: " + err.Error())
	}
	return t.UTC(), generalizedTimeLen, nil
}
