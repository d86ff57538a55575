// Package codec registers the JSON codec used on every mini-shop gRPC
// connection. Clients select it with grpc.CallContentSubtype(Name); servers
// pick it up from the content-type of the incoming request.
package codec

import (
	"encoding/json"

	"google.golang.org/grpc/encoding"
)

// Name is the content subtype ("application/grpc+json").
const Name = "json"

type JSON struct{}

func (JSON) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (JSON) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

func (JSON) Name() string {
	return Name
}

func init() {
	encoding.RegisterCodec(JSON{})
}
