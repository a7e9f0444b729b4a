package rpcio

import (
	"bytes"
	"testing"

	"github.com/wakuswarm/wakunode/pkg/pb"
)

func TestWriteReadDelimitedRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	in := &pb.PushRPC{RequestId: "req-1", Query: &pb.PushRequest{PubsubTopic: "T"}}
	if err := WriteDelimited(&buf, in); err != nil {
		t.Fatal(err)
	}

	out := &pb.PushRPC{}
	if err := ReadDelimited(&buf, 1<<20, out); err != nil {
		t.Fatal(err)
	}
	if out.RequestId != "req-1" || out.Query.PubsubTopic != "T" {
		t.Fatalf("round trip mismatch: %+v", out)
	}
}

func TestReadDelimitedOversizeFails(t *testing.T) {
	var buf bytes.Buffer
	in := &pb.PushRPC{RequestId: "this-request-id-is-long-enough-to-exceed-a-tiny-limit"}
	if err := WriteDelimited(&buf, in); err != nil {
		t.Fatal(err)
	}

	out := &pb.PushRPC{}
	err := ReadDelimited(&buf, 4, out)
	if err == nil {
		t.Fatal("expected a framing error")
	}
	var fe *FramingError
	if !asFramingError(err, &fe) {
		t.Fatalf("expected *FramingError, got %T: %v", err, err)
	}
}

func asFramingError(err error, target **FramingError) bool {
	fe, ok := err.(*FramingError)
	if ok {
		*target = fe
	}
	return ok
}
