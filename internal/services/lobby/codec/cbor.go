package codec

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/louisbranch/lobby/internal/services/lobby/domain"
)

// encMode uses Core Deterministic Encoding so the same list always produces
// identical bytes, which keeps unchanged collections from being rewritten.
var encMode cbor.EncMode

var decMode cbor.DecMode

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("codec: CBOR encoder initialization failed: " + err.Error())
	}
	decMode, err = cbor.DecOptions{
		MaxArrayElements: 1 << 20,
	}.DecMode()
	if err != nil {
		panic("codec: CBOR decoder initialization failed: " + err.Error())
	}
}

type cborCodec struct{}

// CBOR returns the compact binary codec.
func CBOR() Codec {
	return cborCodec{}
}

func (cborCodec) Name() string { return FormatCBOR }

func (cborCodec) Encode(list domain.SessionList) ([]byte, error) {
	data, err := encMode.Marshal(toWire(list))
	if err != nil {
		return nil, fmt.Errorf("encode sessions cbor: %w", err)
	}
	return data, nil
}

func (cborCodec) Decode(data []byte) (domain.SessionList, error) {
	if len(data) == 0 {
		return domain.SessionList{}, nil
	}
	var sessions []wireSession
	if err := decMode.Unmarshal(data, &sessions); err != nil {
		return nil, fmt.Errorf("decode sessions cbor: %w", err)
	}
	return fromWire(sessions)
}
