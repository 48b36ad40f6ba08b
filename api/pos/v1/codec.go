package posv1

import (
	"encoding/json"
	"fmt"

	"google.golang.org/grpc/encoding"
)

// CodecName — content-subtype, под которым зарегистрирован кодек (application/grpc+json).
const CodecName = "json"

// Codec сериализует сообщения pos.v1 в JSON.
type Codec struct{}

func (Codec) Marshal(v any) ([]byte, error) {
	if v == nil {
		return nil, fmt.Errorf("%s codec: nil message", CodecName)
	}
	return json.Marshal(v)
}

func (Codec) Unmarshal(data []byte, v any) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, v)
}

func (Codec) Name() string {
	return CodecName
}

func init() {
	encoding.RegisterCodec(Codec{})
}
