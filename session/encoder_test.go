package session

import (
	"errors"
	"strings"
	"testing"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	records := []Record{
		{SubjectID: 42, SubjectName: "alice", Role: "USER"},
		{SubjectID: 0, SubjectName: "", Role: ""},
		{SubjectID: -1, SubjectName: "negative", Role: "CLIENT"},
		{SubjectID: 1<<62 + 7, SubjectName: "ünïcødé", Role: "ADMIN"},
		{SubjectID: 9, SubjectName: strings.Repeat("n", 255), Role: strings.Repeat("r", 255)},
	}

	for _, want := range records {
		data, err := Encode(want)
		if err != nil {
			t.Fatalf("encode %+v: %v", want, err)
		}
		got, err := Decode(data)
		if err != nil {
			t.Fatalf("decode %+v: %v", want, err)
		}
		if got != want {
			t.Fatalf("round trip mismatch: got %+v want %+v", got, want)
		}
	}
}

func TestEncodeRejectsOversizedFields(t *testing.T) {
	if _, err := Encode(Record{SubjectName: strings.Repeat("x", 256)}); err == nil {
		t.Fatal("expected oversized subject name to be rejected")
	}
	if _, err := Encode(Record{Role: strings.Repeat("x", 256)}); err == nil {
		t.Fatal("expected oversized role to be rejected")
	}
}

func TestDecodeLegacyJSON(t *testing.T) {
	got, err := Decode([]byte(`{"userId":17,"username":"carol","role":"USER"}`))
	if err != nil {
		t.Fatalf("decode legacy: %v", err)
	}
	want := Record{SubjectID: 17, SubjectName: "carol", Role: "USER"}
	if got != want {
		t.Fatalf("got %+v want %+v", got, want)
	}
}

func TestDecodeCorruptInput(t *testing.T) {
	valid, err := Encode(Record{SubjectID: 1, SubjectName: "a", Role: "USER"})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	cases := map[string][]byte{
		"empty":          {},
		"bad version":    {9, 0, 0, 0, 0, 0, 0, 0, 1, 0, 0},
		"truncated id":   valid[:4],
		"truncated name": valid[:10],
		"trailing bytes": append(append([]byte{}, valid...), 0xAA),
		"legacy no id":   []byte(`{"username":"x"}`),
		"legacy broken":  []byte(`{"userId":`),
	}

	for name, data := range cases {
		if _, err := Decode(data); !errors.Is(err, ErrCorrupt) {
			t.Fatalf("%s: expected ErrCorrupt, got %v", name, err)
		}
	}
}
