package protocol

import (
	"math"
	"strconv"
	"strings"
)

const (
	// GuidelineDelimiter separates tokens in the host guideline field.
	GuidelineDelimiter = "~"

	// PayloadStart and PayloadEnd bound the embedded region. They are parsed
	// by the host as ordinary guideline timestamps far past any level end.
	PayloadStart = "283036382.0"
	PayloadEnd   = "283036382.1"

	// pairFiller is the second token of every byte pair, in the position the
	// host reads a guideline color.
	pairFiller = "0.000000"
)

// splitGuidelines tokenizes a guideline field. An empty field has no tokens
// and a trailing delimiter does not produce an empty final token, matching
// how the host reads the field.
func splitGuidelines(field string) []string {
	if field == "" {
		return nil
	}
	tokens := strings.Split(field, GuidelineDelimiter)
	if tokens[len(tokens)-1] == "" {
		tokens = tokens[:len(tokens)-1]
	}
	return tokens
}

// payloadRegion returns the indexes of the first start and first end
// sentinels. ok is false unless both exist and start precedes end.
func payloadRegion(tokens []string) (start, end int, ok bool) {
	start, end = -1, -1
	for i, tok := range tokens {
		switch tok {
		case PayloadStart:
			if start < 0 {
				start = i
			}
		case PayloadEnd:
			if end < 0 {
				end = i
			}
		}
	}
	return start, end, start >= 0 && end >= 0 && start < end
}

// scanPayload walks the byte pairs strictly between start and end, calling
// emit for each reconstructed byte. It reports false on the first token that
// is not a byte value; emit may be nil to validate only.
func scanPayload(tokens []string, start, end int, emit func(byte)) bool {
	for i := start + 1; i < end; i += 2 {
		b, ok := parseByteToken(tokens[i])
		if !ok {
			return false
		}
		if emit != nil {
			emit(b)
		}
	}
	return true
}

// parseByteToken accepts 0..255 as well as -128..-1, the form written by
// encoders that treat payload bytes as signed chars.
func parseByteToken(tok string) (byte, bool) {
	f, err := strconv.ParseFloat(tok, 32)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	v := int(f)
	switch {
	case v >= 0 && v <= 255:
		return byte(v), true
	case v >= -128 && v < 0:
		return byte(v + 256), true
	}
	return 0, false
}

func formatByteToken(b byte) string {
	return strconv.FormatFloat(float64(b), 'f', 6, 64)
}

// EmbedPayload returns field with payload stored in a single embedded region.
//
// Any previous region is removed, sentinels inclusive, together with any
// stray sentinel token left in the field, so the result always holds exactly
// one region and ExtractPayload returns payload regardless of what field
// contained before. Tokens that are not ours keep their order.
func EmbedPayload(payload []byte, field string) string {
	tokens := splitGuidelines(field)
	if start, end, ok := payloadRegion(tokens); ok {
		tokens = append(tokens[:start:start], tokens[end+1:]...)
	}

	out := make([]string, 0, len(tokens)+2*len(payload)+2)
	for _, tok := range tokens {
		if tok == PayloadStart || tok == PayloadEnd {
			continue
		}
		out = append(out, tok)
	}

	out = append(out, PayloadStart)
	for _, b := range payload {
		out = append(out, formatByteToken(b), pairFiller)
	}
	out = append(out, PayloadEnd)

	return strings.Join(out, GuidelineDelimiter)
}

// ExtractPayload returns the embedded payload of field. ok is false when
// there is no well-formed region; that is absence, not an error.
func ExtractPayload(field string) (payload []byte, ok bool) {
	tokens := splitGuidelines(field)
	start, end, ok := payloadRegion(tokens)
	if !ok {
		return nil, false
	}
	payload = make([]byte, 0, (end-start)/2)
	if !scanPayload(tokens, start, end, func(b byte) { payload = append(payload, b) }) {
		return nil, false
	}
	return payload, true
}

// HasPayload reports whether ExtractPayload would succeed, without building
// the payload.
func HasPayload(field string) bool {
	tokens := splitGuidelines(field)
	start, end, ok := payloadRegion(tokens)
	if !ok {
		return false
	}
	return scanPayload(tokens, start, end, nil)
}
