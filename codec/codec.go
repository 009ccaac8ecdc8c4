// Package codec serializes record bodies for heap storage. Every
// encoded record carries an 8-byte version header (model_id,
// model_version) ahead of its payload, so a reader can recognize which
// model produced a body it finds in the heap before attempting to
// decode it — the mechanism the migration engine and the legacy-model
// upgrade path both depend on.
package codec

import (
	"encoding/binary"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// HeaderSize is the length, in bytes, of the version header prefixing
// every encoded record.
const HeaderSize = 8

// Codec marshals and unmarshals record bodies. The default
// implementation uses BSON via go.mongodb.org/mongo-driver/v2/bson.
type Codec struct{}

// New creates a Codec.
func New() *Codec { return &Codec{} }

// Encode serializes v (a struct, or anything bson.Marshal accepts) and
// prefixes it with the (modelID, version) header.
func (c *Codec) Encode(modelID, version uint32, v interface{}) ([]byte, error) {
	body, err := bson.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("codec: marshal: %w", err)
	}

	out := make([]byte, HeaderSize+len(body))
	binary.BigEndian.PutUint32(out[0:4], modelID)
	binary.BigEndian.PutUint32(out[4:8], version)
	copy(out[HeaderSize:], body)
	return out, nil
}

// PeekHeader reads the (modelID, version) pair without decoding the
// body, used to route a stored record to the right conversion chain
// before committing to a concrete Go type.
func PeekHeader(data []byte) (modelID, version uint32, err error) {
	if len(data) < HeaderSize {
		return 0, 0, fmt.Errorf("codec: record too short for header (%d bytes)", len(data))
	}
	return binary.BigEndian.Uint32(data[0:4]), binary.BigEndian.Uint32(data[4:8]), nil
}

// Decode parses the header and unmarshals the body into out.
func (c *Codec) Decode(data []byte, out interface{}) (modelID, version uint32, err error) {
	modelID, version, err = PeekHeader(data)
	if err != nil {
		return 0, 0, err
	}
	if err := bson.Unmarshal(data[HeaderSize:], out); err != nil {
		return 0, 0, fmt.Errorf("codec: unmarshal: %w", err)
	}
	return modelID, version, nil
}

// Body returns the raw (undecoded) payload bytes following the header,
// used when re-routing a record through a conversion chain before a
// final Decode.
func Body(data []byte) []byte {
	if len(data) < HeaderSize {
		return nil
	}
	return data[HeaderSize:]
}
