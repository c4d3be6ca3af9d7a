// Package bson encodes and decodes veil configuration documents (veil.Config)
// as BSON, for settings kept alongside MongoDB data.
package bson

import (
	"github.com/zoobzio/veil"
	"go.mongodb.org/mongo-driver/bson"
)

// bsonCodec implements veil.Codec for BSON.
type bsonCodec struct{}

// New returns a BSON codec.
func New() veil.Codec {
	return &bsonCodec{}
}

// ContentType returns the MIME type for BSON.
func (c *bsonCodec) ContentType() string {
	return "application/bson"
}

// Marshal encodes v as BSON.
func (c *bsonCodec) Marshal(v any) ([]byte, error) {
	return bson.Marshal(v)
}

// Unmarshal decodes BSON data into v.
func (c *bsonCodec) Unmarshal(data []byte, v any) error {
	return bson.Unmarshal(data, v)
}
