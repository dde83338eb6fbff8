package oer

import (
	"time"

	"github.com/alldoizcode/connector/internal/address"
	"github.com/alldoizcode/connector/internal/errs"
)

// Packet type tags (spec.md §4.1).
const (
	TypePrepare = 12
	TypeFulfill = 13
	TypeReject  = 14
)

const conditionLen = 32
const fulfillmentLen = 32
const maxDataLen = 32 * 1024

// Prepare is the ILPv4 Prepare packet (spec.md §3).
type Prepare struct {
	Amount             uint64
	ExpiresAt          time.Time
	ExecutionCondition [conditionLen]byte
	Destination        string
	Data               []byte
}

// Fulfill is the ILPv4 Fulfill packet (spec.md §3).
type Fulfill struct {
	Fulfillment [fulfillmentLen]byte
	Data        []byte
}

// Reject is the ILPv4 Reject packet (spec.md §3).
type Reject struct {
	Code        string
	TriggeredBy string
	Message     string
	Data        []byte
}

// SerializePrepare encodes p per the field order in spec.md §3/§8.
func SerializePrepare(p *Prepare) ([]byte, error) {
	if len(p.Data) > maxDataLen {
		return nil, errs.NewInvalidPacket("prepare: data exceeds 32KiB bound")
	}
	if p.Destination != "" && !address.Valid(p.Destination) {
		return nil, errs.NewInvalidPacket("prepare: invalid destination address")
	}
	cond, err := EncodeFixedOctetString(p.ExecutionCondition[:], conditionLen)
	if err != nil {
		return nil, err
	}
	out := []byte{TypePrepare}
	out = append(out, EncodeVarUInt(p.Amount)...)
	out = append(out, EncodeGeneralizedTime(p.ExpiresAt)...)
	out = append(out, cond...)
	out = append(out, EncodeVarOctetString([]byte(p.Destination))...)
	out = append(out, EncodeVarOctetString(p.Data)...)
	return out, nil
}

func deserializePrepareBody(b []byte) (*Prepare, error) {
	amount, n1, err := DecodeVarUInt(b)
	if err != nil {
		return nil, err
	}
	b = b[n1:]

	expiresAt, n2, err := DecodeGeneralizedTime(b)
	if err != nil {
		return nil, err
	}
	b = b[n2:]

	cond, n3, err := DecodeFixedOctetString(b, conditionLen)
	if err != nil {
		return nil, err
	}
	b = b[n3:]

	destBytes, n4, err := DecodeVarOctetString(b)
	if err != nil {
		return nil, err
	}
	b = b[n4:]
	dest := string(destBytes)
	if dest != "" && !address.Valid(dest) {
		return nil, errs.NewInvalidPacket("prepare: invalid destination address")
	}

	data, _, err := DecodeVarOctetString(b)
	if err != nil {
		return nil, err
	}
	if len(data) > maxDataLen {
		return nil, errs.NewInvalidPacket("prepare: data exceeds 32KiB bound")
	}

	p := &Prepare{Amount: amount, ExpiresAt: expiresAt, Destination: dest, Data: data}
	copy(p.ExecutionCondition[:], cond)
	return p, nil
}

// SerializeFulfill encodes f per the field order in spec.md §3/§8.
func SerializeFulfill(f *Fulfill) ([]byte, error) {
	fulfillment, err := EncodeFixedOctetString(f.Fulfillment[:], fulfillmentLen)
	if err != nil {
		return nil, err
	}
	out := []byte{TypeFulfill}
	out = append(out, fulfillment...)
	out = append(out, EncodeVarOctetString(f.Data)...)
	return out, nil
}

func deserializeFulfillBody(b []byte) (*Fulfill, error) {
	fulfillment, n1, err := DecodeFixedOctetString(b, fulfillmentLen)
	if err != nil {
		return nil, err
	}
	b = b[n1:]
	data, _, err := DecodeVarOctetString(b)
	if err != nil {
		return nil, err
	}
	f := &Fulfill{Data: data}
	copy(f.Fulfillment[:], fulfillment)
	return f, nil
}

// SerializeReject encodes r per the field order in spec.md §3/§8.
func SerializeReject(r *Reject) ([]byte, error) {
	if len(r.Code) != 3 {
		return nil, errs.NewInvalidPacket("reject: code must be exactly 3 ASCII chars")
	}
	if r.TriggeredBy != "" && !address.Valid(r.TriggeredBy) {
		return nil, errs.NewInvalidPacket("reject: invalid triggeredBy address")
	}
	out := []byte{TypeReject}
	out = append(out, []byte(r.Code)...)
	out = append(out, EncodeVarOctetString([]byte(r.TriggeredBy))...)
	out = append(out, EncodeVarOctetString([]byte(r.Message))...)
	out = append(out, EncodeVarOctetString(r.Data)...)
	return out, nil
}

func deserializeRejectBody(b []byte) (*Reject, error) {
	if len(b) < 3 {
		return nil, errs.NewBufferUnderflow("reject: truncated code")
	}
	code := string(b[:3])
	b = b[3:]

	triggeredByBytes, n1, err := DecodeVarOctetString(b)
	if err != nil {
		return nil, err
	}
	b = b[n1:]
	triggeredBy := string(triggeredByBytes)
	if triggeredBy != "" && !address.Valid(triggeredBy) {
		return nil, errs.NewInvalidPacket("reject: invalid triggeredBy address")
	}

	messageBytes, n2, err := DecodeVarOctetString(b)
	if err != nil {
		return nil, err
	}
	b = b[n2:]

	data, _, err := DecodeVarOctetString(b)
	if err != nil {
		return nil, err
	}

	return &Reject{Code: code, TriggeredBy: triggeredBy, Message: string(messageBytes), Data: data}, nil
}

// AnyPacket is the result of DeserializePacket: exactly one of Prepare,
// Fulfill, Reject is non-nil.
type AnyPacket struct {
	Prepare *Prepare
	Fulfill *Fulfill
	Reject  *Reject
}

// DeserializePacket dispatches on the leading type byte. Unknown types fail
// with InvalidPacket.
func DeserializePacket(b []byte) (*AnyPacket, error) {
	if len(b) < 1 {
		return nil, errs.NewBufferUnderflow("packet: empty buffer")
	}
	switch b[0] {
	case TypePrepare:
		p, err := deserializePrepareBody(b[1:])
		if err != nil {
			return nil, err
		}
		return &AnyPacket{Prepare: p}, nil
	case TypeFulfill:
		f, err := deserializeFulfillBody(b[1:])
		if err != nil {
			return nil, err
		}
		return &AnyPacket{Fulfill: f}, nil
	case TypeReject:
		r, err := deserializeRejectBody(b[1:])
		if err != nil {
			return nil, err
		}
		return &AnyPacket{Reject: r}, nil
	default:
		return nil, errs.NewInvalidPacket("packet: unknown type tag")
	}
}
