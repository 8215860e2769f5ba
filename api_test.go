package protopeek

import (
	"errors"
	"math"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/durationpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/anirudhraja/protopeek/registry"
	"github.com/anirudhraja/protopeek/schema"
	"github.com/anirudhraja/protopeek/wire"
)

var testdataDir = filepath.Join("registry", "testdata")

func mustMarshal(t *testing.T, m proto.Message) []byte {
	t.Helper()
	data, err := proto.Marshal(m)
	if err != nil {
		t.Fatalf("proto.Marshal failed: %v", err)
	}
	return data
}

func TestProtopeek_DecodeWith_WellKnownTypes(t *testing.T) {
	p := New()

	t.Run("string_value", func(t *testing.T) {
		data := mustMarshal(t, wrapperspb.String("hi"))
		if !reflect.DeepEqual(data, []byte{0x0a, 0x02, 'h', 'i'}) {
			t.Fatalf("unexpected encoding % x", data)
		}
		msg, err := p.DecodeWith(data, schema.NewDescriptor(
			&schema.Field{Number: 1, Name: "value", Type: schema.TypeString},
		))
		if err != nil {
			t.Fatalf("DecodeWith failed: %v", err)
		}
		if msg["value"] != wire.String("hi") {
			t.Errorf("expected hi, got %v", msg["value"])
		}
	})

	t.Run("duration", func(t *testing.T) {
		data := mustMarshal(t, &durationpb.Duration{Seconds: 1, Nanos: 2})
		msg, err := p.DecodeWith(data, schema.NewDescriptor(
			&schema.Field{Number: 1, Name: "seconds", Type: schema.TypeUint},
			&schema.Field{Number: 2, Name: "nanos", Type: schema.TypeUint},
		))
		if err != nil {
			t.Fatalf("DecodeWith failed: %v", err)
		}
		expected := wire.Message{"seconds": wire.Uint(1), "nanos": wire.Uint(2)}
		if !reflect.DeepEqual(msg, expected) {
			t.Errorf("expected %v, got %v", expected, msg)
		}
	})

	t.Run("negative_int64_is_not_reinterpreted", func(t *testing.T) {
		data := mustMarshal(t, wrapperspb.Int64(-5))
		msg, err := p.DecodeWith(data, schema.NewDescriptor(
			&schema.Field{Number: 1, Name: "value", Type: schema.TypeUint},
		))
		if err != nil {
			t.Fatalf("DecodeWith failed: %v", err)
		}
		if msg["value"] != wire.Uint(math.MaxUint64-4) {
			t.Errorf("expected raw 64-bit varint, got %v", msg["value"])
		}
	})

	t.Run("float_value", func(t *testing.T) {
		data := mustMarshal(t, wrapperspb.Float(1.5))
		msg, err := p.DecodeWith(data, schema.NewDescriptor(
			&schema.Field{Number: 1, Name: "value", Type: schema.TypeFloat},
		))
		if err != nil {
			t.Fatalf("DecodeWith failed: %v", err)
		}
		if msg["value"] != wire.Float(1.5) {
			t.Errorf("expected 1.5, got %v", msg["value"])
		}
	})

	t.Run("unknown_fields_skipped", func(t *testing.T) {
		data := mustMarshal(t, &durationpb.Duration{Seconds: 300, Nanos: 7})
		msg, err := p.DecodeWith(data, schema.NewDescriptor(
			&schema.Field{Number: 2, Name: "nanos", Type: schema.TypeUint},
		))
		if err != nil {
			t.Fatalf("DecodeWith failed: %v", err)
		}
		expected := wire.Message{"nanos": wire.Uint(7)}
		if !reflect.DeepEqual(msg, expected) {
			t.Errorf("expected %v, got %v", expected, msg)
		}
	})
}

func TestProtopeek_LoadProtoFileAndDecode(t *testing.T) {
	p := New(testdataDir)
	if err := p.LoadProtoFile("scale.proto"); err != nil {
		t.Fatalf("LoadProtoFile failed: %v", err)
	}

	device := wire.NewEncoder()
	device.StringField(1, "aa:bb")
	device.UintField(2, 40)

	enc := wire.NewEncoder()
	enc.UintField(1, 1250)
	enc.SintField(2, -3)
	enc.StringField(3, "g")
	enc.MessageField(6, device.Bytes())
	enc.UintField(7, 2)

	msg, err := p.Decode(enc.Bytes(), "scale.Reading")
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	expected := wire.Message{
		"weight": wire.Uint(1250),
		"drift":  wire.Sint(-3),
		"unit":   wire.String("g"),
		"device": wire.Message{"address": wire.String("aa:bb"), "rssi": wire.Uint(40)},
		"state":  wire.Uint(2),
	}
	if diff := cmp.Diff(expected, msg); diff != "" {
		t.Errorf("Decode mismatch (-want +got):\n%s", diff)
	}

	// short name lookup
	if _, err := p.Decode(enc.Bytes(), "Reading"); err != nil {
		t.Errorf("Decode by short name failed: %v", err)
	}
}

func TestProtopeek_DecodeAt(t *testing.T) {
	p := New()
	if err := p.Register("demo.Point", schema.NewDescriptor(
		&schema.Field{Number: 1, Name: "x", Type: schema.TypeUint},
	)); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	data := []byte{0xff, 0xff, 0x08, 0x96, 0x01}
	msg, err := p.DecodeAt(data, 2, "demo.Point")
	if err != nil {
		t.Fatalf("DecodeAt failed: %v", err)
	}
	if msg["x"] != wire.Uint(150) {
		t.Errorf("expected x=150, got %v", msg["x"])
	}

	if _, err := p.DecodeAt(data, 6, "demo.Point"); !errors.Is(err, wire.ErrOutOfBounds) {
		t.Errorf("expected ErrOutOfBounds for offset past end, got %v", err)
	}
}

func TestProtopeek_DecodeErrors(t *testing.T) {
	p := New()
	if err := p.Register("demo.Point", schema.NewDescriptor(
		&schema.Field{Number: 1, Name: "x", Type: schema.TypeUint},
	)); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	if _, err := p.Decode([]byte{0x08, 0x01}, "demo.Missing"); !errors.Is(err, registry.ErrMessageNotFound) {
		t.Errorf("expected ErrMessageNotFound, got %v", err)
	}

	_, err := p.Decode([]byte{0x08, 0x96}, "demo.Point")
	if !errors.Is(err, wire.ErrOutOfBounds) {
		t.Fatalf("expected ErrOutOfBounds, got %v", err)
	}
	if !strings.Contains(err.Error(), "decode demo.Point") {
		t.Errorf("error missing message type: %v", err)
	}
	var decodeErr *wire.DecodeError
	if !errors.As(err, &decodeErr) {
		t.Fatalf("expected *wire.DecodeError, got %T", err)
	}
}

func TestProtopeek_StrictWireType(t *testing.T) {
	p := New()
	desc := schema.NewDescriptor(&schema.Field{Number: 1, Name: "name", Type: schema.TypeString})
	data := []byte{0x08, 0x01} // field 1 as varint

	p.SetConfig(wire.Config{StrictWireType: true, MaxDepth: wire.DefaultMaxDepth})
	if _, err := p.DecodeWith(data, desc); !errors.Is(err, wire.ErrWireTypeMismatch) {
		t.Errorf("expected ErrWireTypeMismatch, got %v", err)
	}
}

type testMeta struct {
	Note  string  `peek:"note"`
	Delta int32   `peek:"delta"`
	Ratio float64 `peek:"ratio"`
}

type testReading struct {
	Weight  uint32    `peek:"weight"`
	Unit    string    `peek:"unit"`
	Meta    *testMeta `peek:"meta"`
	Skipped string    `peek:"-"`
	ignored string
}

func TestProtopeek_EncodeAndUnmarshal(t *testing.T) {
	p := New()
	if err := p.LoadDescriptorFile(filepath.Join(testdataDir, "descriptors.yaml")); err != nil {
		t.Fatalf("LoadDescriptorFile failed: %v", err)
	}

	data, err := p.Encode(wire.Message{
		"weight": wire.Uint(80),
		"unit":   wire.String("kg"),
		"meta": wire.Message{
			"note":  wire.String("tare"),
			"delta": wire.Sint(-2),
			"ratio": wire.Float(0.5),
		},
	}, "demo.Reading")
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	var got testReading
	if err := p.Unmarshal(data, "demo.Reading", &got); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	expected := testReading{
		Weight: 80,
		Unit:   "kg",
		Meta:   &testMeta{Note: "tare", Delta: -2, Ratio: 0.5},
	}
	if diff := cmp.Diff(expected, got, cmp.AllowUnexported(testReading{})); diff != "" {
		t.Errorf("Unmarshal mismatch (-want +got):\n%s", diff)
	}
}

func TestProtopeek_UnmarshalErrors(t *testing.T) {
	p := New()
	if err := p.Register("demo.Label", schema.NewDescriptor(
		&schema.Field{Number: 1, Name: "text", Type: schema.TypeString},
	)); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	data := []byte{0x0a, 0x02, 'h', 'i'}

	var notStruct int
	if err := p.Unmarshal(data, "demo.Label", &notStruct); err == nil {
		t.Error("expected error for non-struct target")
	}

	var byValue struct{ Text string }
	if err := p.Unmarshal(data, "demo.Label", byValue); err == nil {
		t.Error("expected error for non-pointer target")
	}

	var wrongType struct {
		Text int `peek:"text"`
	}
	err := p.Unmarshal(data, "demo.Label", &wrongType)
	if err == nil || !strings.Contains(err.Error(), "cannot convert string value") {
		t.Errorf("expected conversion error, got %v", err)
	}
}

func TestProtopeek_UnmarshalIntegerRange(t *testing.T) {
	p := New()
	if err := p.Register("demo.Counts", schema.NewDescriptor(
		&schema.Field{Number: 1, Name: "count", Type: schema.TypeUint},
		&schema.Field{Number: 2, Name: "delta", Type: schema.TypeSint},
	)); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	encode := func(count uint64, delta int64) []byte {
		enc := wire.NewEncoder()
		enc.UintField(1, count)
		enc.SintField(2, delta)
		return enc.Bytes()
	}

	t.Run("in_range", func(t *testing.T) {
		var got struct {
			Count uint8 `peek:"count"`
			Delta int8  `peek:"delta"`
		}
		if err := p.Unmarshal(encode(255, -128), "demo.Counts", &got); err != nil {
			t.Fatalf("Unmarshal failed: %v", err)
		}
		if got.Count != 255 || got.Delta != -128 {
			t.Errorf("unexpected values %+v", got)
		}
	})

	tests := []struct {
		name   string
		data   []byte
		target interface{}
	}{
		{"uint_overflows_uint8", encode(300, 0), &struct {
			Count uint8 `peek:"count"`
		}{}},
		{"negative_sint_into_uint32", encode(0, -1), &struct {
			Delta uint32 `peek:"delta"`
		}{}},
		{"sint_overflows_int8", encode(0, 200), &struct {
			Delta int8 `peek:"delta"`
		}{}},
		{"uint_above_int64", encode(math.MaxUint64, 0), &struct {
			Count int64 `peek:"count"`
		}{}},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			err := p.Unmarshal(test.data, "demo.Counts", test.target)
			if err == nil || !strings.Contains(err.Error(), "cannot convert") {
				t.Fatalf("expected conversion error, got %v (target %+v)", err, test.target)
			}
		})
	}
}

func TestProtopeek_ListMessages(t *testing.T) {
	p := New()
	if err := p.LoadDescriptorFile(filepath.Join(testdataDir, "descriptors.yaml")); err != nil {
		t.Fatalf("LoadDescriptorFile failed: %v", err)
	}
	expected := []string{"demo.Meta", "demo.Reading"}
	if got := p.ListMessages(); !reflect.DeepEqual(got, expected) {
		t.Errorf("expected %v, got %v", expected, got)
	}
	if p.GetRegistry() == nil {
		t.Error("expected registry")
	}
}
