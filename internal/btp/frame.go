// Package btp implements the Bilateral Transfer Protocol message layer and
// peering fabric (spec.md §4.3): an authenticated, request/response
// correlated WebSocket transport layered over ILP packets.
package btp

import (
	"encoding/binary"

	"github.com/alldoizcode/connector/internal/errs"
	"github.com/alldoizcode/connector/internal/oer"
)

// FrameType enumerates the three BTP frame kinds (spec.md §4.3/§6).
type FrameType uint8

const (
	TypeMessage  FrameType = 1
	TypeResponse FrameType = 2
	TypeError    FrameType = 3
)

// ProtocolDataEntry is one entry of a BTP protocol-data vector: a named,
// content-typed payload (spec.md §6).
type ProtocolDataEntry struct {
	ProtocolName string
	ContentType  uint8
	Data         []byte
}

// Frame is the abstract BTP frame: type || requestId || payload, where
// payload is a protocol-data vector plus, for MESSAGE frames and for RESPONSE
// frames that carry a reply packet, an embedded ILP packet (spec.md §6).
type Frame struct {
	Type         FrameType
	RequestID    uint32
	ProtocolData []ProtocolDataEntry
	ILPPacket    []byte // MESSAGE: the Prepare; RESPONSE: the Fulfill/Reject reply, if any
}

// EncodeFrame serializes f to bytes. Reuses the OER VarOctetString/VarUInt
// primitives for the inner vector since BTP on the wire is itself specified
// in OER (the frame header is a fixed uint8+uint32 prefix).
func EncodeFrame(f *Frame) []byte {
	out := make([]byte, 0, 64)
	out = append(out, byte(f.Type))
	var reqID [4]byte
	binary.BigEndian.PutUint32(reqID[:], f.RequestID)
	out = append(out, reqID[:]...)

	out = append(out, oer.EncodeVarUInt(uint64(len(f.ProtocolData)))...)
	for _, pd := range f.ProtocolData {
		out = append(out, oer.EncodeVarOctetString([]byte(pd.ProtocolName))...)
		out = append(out, pd.ContentType)
		out = append(out, oer.EncodeVarOctetString(pd.Data)...)
	}

	if f.Type == TypeMessage || (f.Type == TypeResponse && len(f.ILPPacket) > 0) {
		out = append(out, oer.EncodeVarOctetString(f.ILPPacket)...)
	}
	return out
}

// DecodeFrame parses a Frame from b. Structural violations are returned as
// *errs.CodecError; callers at the BTP boundary answer with an ERROR frame
// and discard the offending message (spec.md §7 propagation policy).
func DecodeFrame(b []byte) (*Frame, error) {
	if len(b) < 5 {
		return nil, errs.NewBufferUnderflow("btp frame: truncated header")
	}
	f := &Frame{Type: FrameType(b[0]), RequestID: binary.BigEndian.Uint32(b[1:5])}
	rest := b[5:]

	count, n, err := oer.DecodeVarUInt(rest)
	if err != nil {
		return nil, err
	}
	rest = rest[n:]

	for i := uint64(0); i < count; i++ {
		name, n1, err := oer.DecodeVarOctetString(rest)
		if err != nil {
			return nil, err
		}
		rest = rest[n1:]
		if len(rest) < 1 {
			return nil, errs.NewBufferUnderflow("btp frame: truncated protocol data content type")
		}
		contentType := rest[0]
		rest = rest[1:]
		data, n2, err := oer.DecodeVarOctetString(rest)
		if err != nil {
			return nil, err
		}
		rest = rest[n2:]
		f.ProtocolData = append(f.ProtocolData, ProtocolDataEntry{ProtocolName: string(name), ContentType: contentType, Data: data})
	}

	if (f.Type == TypeMessage || f.Type == TypeResponse) && len(rest) > 0 {
		ilp, _, err := oer.DecodeVarOctetString(rest)
		if err != nil {
			return nil, err
		}
		f.ILPPacket = ilp
	}
	return f, nil
}

// ProtocolDatum looks up a named entry in f.ProtocolData.
func (f *Frame) ProtocolDatum(name string) (ProtocolDataEntry, bool) {
	for _, pd := range f.ProtocolData {
		if pd.ProtocolName == name {
			return pd, true
		}
	}
	return ProtocolDataEntry{}, false
}
