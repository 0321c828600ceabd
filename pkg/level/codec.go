package level

import (
	"github.com/spc-dev/spc/pkg/protocol"
)

// Encode serializes d and embeds it into field, replacing any payload the
// field already carries.
func Encode(d *Data, field string) (string, error) {
	b, err := Marshal(d)
	if err != nil {
		return "", err
	}
	return protocol.EmbedPayload(b, field), nil
}

// Decode extracts and parses the payload embedded in field. It returns
// ErrNoPayload when the field holds none and ErrInvalid when the embedded
// bytes are not level data.
func Decode(field string) (*Data, error) {
	b, ok := protocol.ExtractPayload(field)
	if !ok {
		return nil, ErrNoPayload
	}
	return Unmarshal(b)
}

// Has reports whether field carries an embedded payload. It does not parse
// the payload.
func Has(field string) bool {
	return protocol.HasPayload(field)
}
