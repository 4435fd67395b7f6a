package probe

import (
	"fmt"

	"github.com/tidwall/gjson"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// Codec converts JSON log entries to and from their NATS wire format.
type Codec interface {
	Encode(entry []byte) ([]byte, error)
	Decode(data []byte) ([]byte, error)
	Name() string
}

// NewCodec returns the codec for an ingest.encoding value.
func NewCodec(encoding string) (Codec, error) {
	switch encoding {
	case "json", "":
		return jsonCodec{}, nil
	case "proto":
		return protoCodec{}, nil
	default:
		return nil, fmt.Errorf("unknown encoding '%s'", encoding)
	}
}

// jsonCodec sends entries as they are.
type jsonCodec struct{}

func (jsonCodec) Name() string { return "json" }

func (jsonCodec) Encode(entry []byte) ([]byte, error) {
	if !gjson.ValidBytes(entry) {
		return nil, fmt.Errorf("entry is not valid JSON")
	}
	return entry, nil
}

func (jsonCodec) Decode(data []byte) ([]byte, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("message is not valid JSON")
	}
	return data, nil
}

// protoCodec sends entries as a google.protobuf.Struct in binary form.
type protoCodec struct{}

func (protoCodec) Name() string { return "proto" }

func (protoCodec) Encode(entry []byte) ([]byte, error) {
	var s structpb.Struct
	if err := protojson.Unmarshal(entry, &s); err != nil {
		return nil, fmt.Errorf("failed to convert entry to protobuf: %w", err)
	}
	return proto.Marshal(&s)
}

func (protoCodec) Decode(data []byte) ([]byte, error) {
	var s structpb.Struct
	if err := proto.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("error unmarshalling protobuf: %w", err)
	}
	return protojson.Marshal(&s)
}
