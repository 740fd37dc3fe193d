package envelope

import (
	"bytes"
	"strconv"
	"strings"

	"github.com/blockberries/cookiejar"
	"github.com/blockberries/cookiejar/types"

	"github.com/blockberries/cramberry/pkg/cramberry"
)

// EncodePayload serializes an action request. The encoding is canonical:
// the same (action, amount) always yields the same bytes.
func EncodePayload(action string, amount uint64) ([]byte, error) {
	data, err := cramberry.Marshal(types.Payload{Action: action, Amount: amount})
	if err != nil {
		return nil, cookiejar.NewEncodingError(err, "encode payload")
	}
	return data, nil
}

// DecodePayload parses a payload produced by EncodePayload. Bytes that do
// not decode, or that are not the canonical encoding of what they decode
// to (such as trailing garbage), are rejected with an EncodingError.
func DecodePayload(data []byte) (types.Payload, error) {
	var p types.Payload
	if err := decodeCanonical(data, &p, "payload"); err != nil {
		return types.Payload{}, err
	}
	return p, nil
}

// ParseAmount parses a user supplied amount. Negative or non-numeric
// amounts are malformed requests and never reach a handler.
func ParseAmount(s string) (uint64, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "-") {
		return 0, cookiejar.NewEncodingError(nil, "amount must not be negative: %s", s)
	}
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, cookiejar.NewEncodingError(err, "malformed amount %q", s)
	}
	return n, nil
}

// decodeCanonical unmarshals data into v and checks that re-encoding v
// reproduces data exactly.
func decodeCanonical[T any](data []byte, v *T, what string) error {
	if len(data) == 0 {
		return cookiejar.NewEncodingError(nil, "empty %s", what)
	}
	if err := cramberry.Unmarshal(data, v); err != nil {
		return cookiejar.NewEncodingError(err, "decode %s", what)
	}
	again, err := cramberry.Marshal(*v)
	if err != nil {
		return cookiejar.NewEncodingError(err, "re-encode %s", what)
	}
	if !bytes.Equal(again, data) {
		return cookiejar.NewEncodingError(nil, "%s is not canonically encoded", what)
	}
	return nil
}
