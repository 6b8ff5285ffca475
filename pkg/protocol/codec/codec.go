package codec

import "fmt"

// Codec defines a simple interface for marshaling typed messages.
// Implementations should be deterministic and safe for cross-node exchange.
type Codec interface {
	ContentType() string
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

// ForFormat resolves a short format name from configuration to a codec.
func ForFormat(format string) (Codec, error) {
	switch format {
	case "cbor", "":
		return CBOR()
	case "json":
		return JSON(), nil
	default:
		return nil, fmt.Errorf("unknown wire format: %q", format)
	}
}
