// Package cookiejargrpc provides the gRPC transport between a node and
// a transaction processor, using cramberry for deterministic binary
// serialization.
//
// No protobuf code generation is required. Request and response types
// from package types are serialized directly via cramberry struct tags.
package cookiejargrpc

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/blockberries/cramberry/pkg/cramberry"
	"google.golang.org/grpc/encoding"
)

// Registered with grpc under its own name so a process can also carry
// other cramberry services.
const codecName = "cookiejar-cramberry"

var errNilMessage = errors.New("nil message")

// CramberryCodec implements grpc/encoding.Codec for the processor
// messages in package types.
type CramberryCodec struct{}

func (CramberryCodec) Marshal(v any) ([]byte, error) {
	if v == nil {
		return nil, fmt.Errorf("encode: %w", errNilMessage)
	}
	data, err := cramberry.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode %T: %w", v, err)
	}
	return data, nil
}

func (CramberryCodec) Unmarshal(data []byte, v any) error {
	if rv := reflect.ValueOf(v); rv.Kind() != reflect.Pointer || rv.IsNil() {
		return fmt.Errorf("decode into %T: want a non-nil pointer", v)
	}
	if err := cramberry.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %T: %w", v, err)
	}
	return nil
}

func (CramberryCodec) Name() string { return codecName }

func init() {
	encoding.RegisterCodec(CramberryCodec{})
}
