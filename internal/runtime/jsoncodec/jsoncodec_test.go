package jsoncodec

import (
	"bytes"
	"testing"
)

type envelope struct {
	Type string     `json:"t"`
	Data RawMessage `json:"d"`
}

type testPayload struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

func TestMarshalAndUnmarshal(t *testing.T) {
	in := testPayload{ID: 42, Name: "shardwire"}
	data, err := Marshal(in)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var out testPayload
	if err := Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if out != in {
		t.Fatalf("expected round trip to match, got %#v", out)
	}
}

func TestRawMessageDefersDecoding(t *testing.T) {
	var env envelope
	if err := Unmarshal([]byte(`{"t":"X","d":{"id":7,"name":"late"}}`), &env); err != nil {
		t.Fatalf("unmarshal envelope: %v", err)
	}
	if env.Type != "X" {
		t.Fatalf("unexpected type %q", env.Type)
	}

	var inner testPayload
	if err := Unmarshal(env.Data, &inner); err != nil {
		t.Fatalf("unmarshal inner: %v", err)
	}
	if inner.ID != 7 || inner.Name != "late" {
		t.Fatalf("unexpected inner payload %#v", inner)
	}
}

func TestEncodeAndDecode(t *testing.T) {
	buf := &bytes.Buffer{}
	payload := testPayload{ID: 7, Name: "stream"}

	if err := Encode(buf, payload); err != nil {
		t.Fatalf("encode failed: %v", err)
	}

	var decoded testPayload
	if err := Decode(buf, &decoded); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if decoded != payload {
		t.Fatalf("expected decoded payload to match, got %#v", decoded)
	}
}
