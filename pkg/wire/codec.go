package wire

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// encMode is the CBOR encoder mode for TORQBUS frames.
// Configured for deterministic encoding with integer keys.
var encMode cbor.EncMode

// decMode is the CBOR decoder mode for TORQBUS frames.
var decMode cbor.DecMode

func init() {
	var err error

	// Configure encoder for deterministic output
	encOpts := cbor.EncOptions{
		Sort:          cbor.SortCanonical,
		IndefLength:   cbor.IndefLengthForbidden,
		NilContainers: cbor.NilContainerAsNull,
		Time:          cbor.TimeUnix,
	}
	encMode, err = encOpts.EncMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create CBOR encoder mode: %v", err))
	}

	// Configure decoder to be lenient for forward compatibility
	decOpts := cbor.DecOptions{
		DupMapKey:         cbor.DupMapKeyQuiet,
		IndefLength:       cbor.IndefLengthAllowed,
		ExtraReturnErrors: cbor.ExtraDecErrorNone,
	}
	decMode, err = decOpts.DecMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create CBOR decoder mode: %v", err))
	}
}

// Marshal encodes a value to CBOR bytes.
func Marshal(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

// Unmarshal decodes CBOR bytes into a value.
func Unmarshal(data []byte, v any) error {
	return decMode.Unmarshal(data, v)
}

// EncodeFrame encodes a frame envelope with an already-encoded payload.
func EncodeFrame(f *Frame) ([]byte, error) {
	if err := f.Validate(); err != nil {
		return nil, fmt.Errorf("invalid frame: %w", err)
	}
	return Marshal(f)
}

// DecodeFrame decodes CBOR bytes into a frame envelope. The payload stays
// raw; use DecodePayload with the type implied by the frame's Type and Kind.
func DecodeFrame(data []byte) (*Frame, error) {
	var f Frame
	if err := Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to decode frame: %w", err)
	}
	if err := f.Validate(); err != nil {
		return nil, fmt.Errorf("invalid frame: %w", err)
	}
	return &f, nil
}

// NewFrame builds a frame around a typed payload.
func NewFrame(kind Kind, msgType MessageType, source, destination NodeID, transferID uint8, payload any) (*Frame, error) {
	raw, err := Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s payload: %w", msgType, err)
	}
	return &Frame{
		Kind:        kind,
		Type:        msgType,
		Source:      source,
		Destination: destination,
		TransferID:  transferID,
		Payload:     raw,
	}, nil
}

// DecodePayload decodes a frame payload into the given typed message.
func DecodePayload(f *Frame, v any) error {
	if len(f.Payload) == 0 {
		return fmt.Errorf("%s frame has no payload", f.Type)
	}
	if err := Unmarshal(f.Payload, v); err != nil {
		return fmt.Errorf("failed to decode %s payload: %w", f.Type, err)
	}
	return nil
}
