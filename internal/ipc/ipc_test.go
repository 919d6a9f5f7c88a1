package ipc

import (
	"testing"

	"github.com/orcaman/writerseeker"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	ws := &writerseeker.WriterSeeker{}
	msg := Message{Type: ModuleSuccess, Payload: JoinFields("kcoreaddons", "no changes")}
	if err := Encode(ws, msg); err != nil {
		t.Fatal(err)
	}

	got, err := Decode(ws.Reader())
	if err != nil {
		t.Fatal(err)
	}
	if got.Type != ModuleSuccess {
		t.Fatalf("expected ModuleSuccess, got %v", got.Type)
	}
	fields := SplitFields(got.Payload, 2)
	if fields[0] != "kcoreaddons" || fields[1] != "no changes" {
		t.Fatalf("unexpected fields: %v", fields)
	}
}

func TestEncodeDecodeMultipleFramesInStream(t *testing.T) {
	ws := &writerseeker.WriterSeeker{}
	msgs := []Message{
		{Type: AllUpdating, Payload: "starting"},
		{Type: ModuleUptodate, Payload: JoinFields("kwidgetsaddons", "")},
		{Type: AllDone, Payload: "finished"},
	}
	for _, m := range msgs {
		if err := Encode(ws, m); err != nil {
			t.Fatal(err)
		}
	}

	r := NewReader(ws.Reader())
	for i, want := range msgs {
		got, err := r.Next()
		if err != nil {
			t.Fatalf("frame %d: %v", i, err)
		}
		if got.Type != want.Type || got.Payload != want.Payload {
			t.Fatalf("frame %d: got %+v, want %+v", i, got, want)
		}
	}
}

func TestDecodeRejectsShortFrame(t *testing.T) {
	ws := &writerseeker.WriterSeeker{}
	ws.Write([]byte{0x02, 0x00, 0x01, 0x02})
	if _, err := Decode(ws.Reader()); err == nil {
		t.Fatal("expected error for frame shorter than the type field")
	}
}

func TestSplitFieldsPadsMissing(t *testing.T) {
	got := SplitFields("onlyone", 3)
	if len(got) != 3 || got[0] != "onlyone" || got[1] != "" || got[2] != "" {
		t.Fatalf("unexpected padding: %v", got)
	}
}

func TestTypeStringUnknown(t *testing.T) {
	if got := Type(999).String(); got != "UNKNOWN(999)" {
		t.Fatalf("unexpected string: %q", got)
	}
}
