package oer

import (
	"crypto/sha256"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestEncodeVarUIntBoundaryVectors(t *testing.T) {
	cases := []struct {
		v    uint64
		want []byte
	}{
		{0, []byte{0x00}},
		{127, []byte{0x7F}},
		{128, []byte{0x81, 0x80}},
		{256, []byte{0x82, 0x01, 0x00}},
		{1<<64 - 1, []byte{0x88, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}},
	}
	for _, c := range cases {
		require.Equal(t, c.want, EncodeVarUInt(c.v))
	}
}

func TestVarUIntRoundTrip(t *testing.T) {
	values := []uint64{0, 1, 127, 128, 255, 256, 65535, 65536, 1 << 32, 1<<64 - 1}
	for _, v := range values {
		enc := EncodeVarUInt(v)
		got, n, err := DecodeVarUInt(enc)
		require.NoError(t, err)
		require.Equal(t, len(enc), n)
		require.Equal(t, v, got)
	}
}

func TestDecodeVarUIntBufferUnderflow(t *testing.T) {
	_, _, err := DecodeVarUInt(nil)
	require.Error(t, err)
	_, _, err = DecodeVarUInt([]byte{0x82, 0x01})
	require.Error(t, err)
}

func TestVarOctetStringZeroLength(t *testing.T) {
	enc := EncodeVarOctetString(nil)
	require.Equal(t, []byte{0x00}, enc)
	got, n, err := DecodeVarOctetString(enc)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.Empty(t, got)
}

func TestFixedOctetStringLengthMismatch(t *testing.T) {
	_, err := EncodeFixedOctetString([]byte{1, 2, 3}, 4)
	require.Error(t, err)
}

func TestGeneralizedTimeVector(t *testing.T) {
	instant := time.Date(2025, 1, 31, 23, 59, 59, 999000000, time.UTC)
	enc := EncodeGeneralizedTime(instant)
	require.Equal(t, "20250131235959.999Z", string(enc))
	require.Len(t, enc, 19)

	decoded, n, err := DecodeGeneralizedTime(enc)
	require.NoError(t, err)
	require.Equal(t, 19, n)
	require.True(t, instant.Equal(decoded))
}

func TestGeneralizedTimeRejectsDeviation(t *testing.T) {
	_, _, err := DecodeGeneralizedTime([]byte("20250131235959.999X"))
	require.Error(t, err)
	_, _, err = DecodeGeneralizedTime([]byte("2025013123595.999Z"))
	require.Error(t, err)
}

func TestPrepareWireVector(t *testing.T) {
	var cond [32]byte
	for i := range cond {
		if i%2 == 0 {
			cond[i] = 0x01
		} else {
			cond[i] = 0xCD
		}
	}
	p := &Prepare{
		Amount:             1000,
		ExpiresAt:          time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC),
		ExecutionCondition: cond,
		Destination:        "g.example.alice",
	}
	enc, err := SerializePrepare(p)
	require.NoError(t, err)
	require.Equal(t, byte(TypePrepare), enc[0])
	require.Equal(t, []byte{0x82, 0x03, 0xE8}, enc[1:4])
	require.Equal(t, "20240101120000.000Z", string(enc[4:23]))
	require.Equal(t, cond[:], enc[23:55])
	require.Equal(t, byte(0x0F), enc[55])
	require.Equal(t, "g.example.alice", string(enc[56:71]))
	require.Equal(t, byte(0x00), enc[71])
	require.Len(t, enc, 72)

	any, err := DeserializePacket(enc)
	require.NoError(t, err)
	require.NotNil(t, any.Prepare)
	require.Equal(t, p.Amount, any.Prepare.Amount)
	require.True(t, p.ExpiresAt.Equal(any.Prepare.ExpiresAt))
	require.Equal(t, p.ExecutionCondition, any.Prepare.ExecutionCondition)
	require.Equal(t, p.Destination, any.Prepare.Destination)
}

func TestFulfillWireVector(t *testing.T) {
	var fulfillment [32]byte
	for i := range fulfillment {
		fulfillment[i] = byte(0xFE - i)
	}
	f := &Fulfill{Fulfillment: fulfillment}
	enc, err := SerializeFulfill(f)
	require.NoError(t, err)
	require.Len(t, enc, 34)
	require.Equal(t, byte(TypeFulfill), enc[0])
	require.Equal(t, fulfillment[:], enc[1:33])
	require.Equal(t, byte(0x00), enc[33])

	any, err := DeserializePacket(enc)
	require.NoError(t, err)
	require.NotNil(t, any.Fulfill)
	require.Equal(t, f.Fulfillment, any.Fulfill.Fulfillment)
}

func TestRejectWireVector(t *testing.T) {
	r := &Reject{Code: "F02", TriggeredBy: "g.hub", Message: "No route found"}
	enc, err := SerializeReject(r)
	require.NoError(t, err)
	require.Equal(t, byte(TypeReject), enc[0])
	require.Equal(t, "F02", string(enc[1:4]))
	require.Equal(t, byte(0x05), enc[4])
	require.Equal(t, "g.hub", string(enc[5:10]))
	require.Equal(t, byte(0x0E), enc[10])
	require.Equal(t, "No route found", string(enc[11:25]))
	require.Equal(t, byte(0x00), enc[25])

	any, err := DeserializePacket(enc)
	require.NoError(t, err)
	require.NotNil(t, any.Reject)
	require.Equal(t, r.Code, any.Reject.Code)
	require.Equal(t, r.TriggeredBy, any.Reject.TriggeredBy)
	require.Equal(t, r.Message, any.Reject.Message)
}

func TestDeserializePacketUnknownType(t *testing.T) {
	_, err := DeserializePacket([]byte{0xFF})
	require.Error(t, err)
}

func TestFulfillmentConditionRelationship(t *testing.T) {
	fulfillment := []byte("this-is-a-32-byte-preimage-val!!")
	require.Len(t, fulfillment, 32)
	condition := sha256.Sum256(fulfillment)
	var f [32]byte
	copy(f[:], fulfillment)
	require.Equal(t, condition, sha256.Sum256(f[:]))
}
