package kafka

import (
	"encoding/json"

	"github.com/pkg/errors"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// Serializer turns feed events into message values.
type Serializer interface {
	Encode(BookEvent) ([]byte, error)
	Decode([]byte) (BookEvent, error)
	ContentType() string
}

// NewSerializer returns the serializer for format "json" or "proto".
func NewSerializer(format string) (Serializer, error) {
	switch format {
	case "", "json":
		return JSONSerializer{}, nil
	case "proto":
		return ProtoSerializer{}, nil
	default:
		return nil, errors.Errorf("unknown feed format %q", format)
	}
}

// ---------- JSON ----------

type JSONSerializer struct{}

func (JSONSerializer) Encode(e BookEvent) ([]byte, error) {
	return json.Marshal(e)
}

func (JSONSerializer) Decode(b []byte) (BookEvent, error) {
	var e BookEvent
	err := json.Unmarshal(b, &e)
	return e, err
}

func (JSONSerializer) ContentType() string { return "application/json" }

// ---------- Protobuf ----------

// ProtoSerializer encodes the event as a google.protobuf.Struct, so
// consumers need no generated types.
type ProtoSerializer struct{}

func (ProtoSerializer) Encode(e BookEvent) ([]byte, error) {
	raw, err := json.Marshal(e)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	st, err := structpb.NewStruct(m)
	if err != nil {
		return nil, errors.Wrap(err, "build struct")
	}
	return proto.Marshal(st)
}

func (ProtoSerializer) Decode(b []byte) (BookEvent, error) {
	var st structpb.Struct
	if err := proto.Unmarshal(b, &st); err != nil {
		return BookEvent{}, errors.Wrap(err, "unmarshal struct")
	}
	raw, err := json.Marshal(st.AsMap())
	if err != nil {
		return BookEvent{}, err
	}
	var e BookEvent
	err = json.Unmarshal(raw, &e)
	return e, err
}

func (ProtoSerializer) ContentType() string { return "application/x-protobuf" }
