package codec

import (
	"encoding/json"
	"fmt"

	"github.com/louisbranch/lobby/internal/services/lobby/domain"
)

type jsonCodec struct{}

// JSON returns the codec that reads and writes plain JSON session arrays.
func JSON() Codec {
	return jsonCodec{}
}

func (jsonCodec) Name() string { return FormatJSON }

func (jsonCodec) Encode(list domain.SessionList) ([]byte, error) {
	data, err := json.Marshal(toWire(list))
	if err != nil {
		return nil, fmt.Errorf("encode sessions json: %w", err)
	}
	return data, nil
}

func (jsonCodec) Decode(data []byte) (domain.SessionList, error) {
	if isBlank(data) {
		return domain.SessionList{}, nil
	}
	var sessions []wireSession
	if err := json.Unmarshal(data, &sessions); err != nil {
		return nil, fmt.Errorf("decode sessions json: %w", err)
	}
	return fromWire(sessions)
}
