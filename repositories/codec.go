package repositories

import (
	"chat-sync/errors"
	"fmt"
	"strings"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

var errInvalidRoot = fmt.Errorf("%w: the root must be an object", errors.ErrInvalidRecord)

// encodeValue turns any schemaless tree into protobuf bytes.
func encodeValue(value any) ([]byte, error) {
	v, err := structpb.NewValue(value)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrInvalidRecord, err)
	}
	return proto.Marshal(v)
}

func decodeValue(raw []byte) (any, error) {
	var v structpb.Value
	if err := proto.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return v.AsInterface(), nil
}

// Entry is one raw Badger key decoded for inspection.
type Entry struct {
	Kind  string
	Name  string
	Value any
}

// DecodeEntry recognizes the store nodes, registry documents and path index
// keys written by this package.
func DecodeEntry(key string, raw []byte) (Entry, error) {
	switch {
	case strings.HasPrefix(key, nodePrefix):
		value, err := decodeValue(raw)
		return Entry{Kind: "node", Name: strings.TrimPrefix(key, nodePrefix), Value: value}, err
	case strings.HasPrefix(key, "doc:"):
		var fields structpb.Struct
		if err := proto.Unmarshal(raw, &fields); err != nil {
			return Entry{Kind: "doc", Name: key}, err
		}
		return Entry{Kind: "doc", Name: strings.TrimPrefix(key, "doc:"), Value: fields.AsMap()}, nil
	case strings.HasPrefix(key, "idx:"):
		var list structpb.ListValue
		if err := proto.Unmarshal(raw, &list); err != nil {
			return Entry{Kind: "idx", Name: key}, err
		}
		return Entry{Kind: "idx", Name: strings.TrimPrefix(key, "idx:"), Value: list.AsSlice()}, nil
	default:
		return Entry{Kind: "raw", Name: key, Value: len(raw)}, nil
	}
}
