package events

import (
	"testing"
	"time"

	"github.com/mcdev12/excon/go/internal/models"
)

func TestEncodeDecode(t *testing.T) {
	ts := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	snap := models.DashboardSnapshot{ExerciseName: "Harbour Drill", CurrentSeconds: 61}
	msg := NewState("controller-1", snap, ts)
	if msg.ID == "" {
		t.Fatalf("message id not set")
	}

	data, err := Encode(msg)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := Decode(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Type != TypeState || got.Origin != "controller-1" || !got.TS.Equal(ts) {
		t.Fatalf("unexpected envelope %+v", got)
	}
	if got.Payload.ExerciseName != "Harbour Drill" || got.Payload.CurrentSeconds != 61 {
		t.Fatalf("unexpected payload %+v", got.Payload)
	}
	if got.Payload.Injects == nil || got.Payload.Resources == nil {
		t.Fatalf("decoded lists should be non-nil")
	}
}

func TestDecodeRejects(t *testing.T) {
	for _, raw := range []string{`not json`, `{"type":"delta","payload":{}}`, `{}`} {
		if _, err := Decode([]byte(raw)); err == nil {
			t.Fatalf("Decode(%s) should fail", raw)
		}
	}
}
