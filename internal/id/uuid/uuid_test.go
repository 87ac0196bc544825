// Package uuid includes tests for the session ID generator.
package uuid

import (
	"testing"

	goUUID "github.com/google/uuid"
)

// TestGeneratorNewID ensures generated IDs are unique, valid version 7 UUIDs.
func TestGeneratorNewID(t *testing.T) {
	t.Parallel()

	gen := New()
	id1, err := gen.NewID()
	if err != nil {
		t.Fatalf("NewID() error = %v", err)
	}
	id2, err := gen.NewID()
	if err != nil {
		t.Fatalf("NewID() error = %v", err)
	}
	if id1 == id2 {
		t.Fatalf("expected unique IDs, got %s and %s", id1, id2)
	}
	parsed, err := goUUID.Parse(id1)
	if err != nil {
		t.Fatalf("id1 not valid UUID: %v", err)
	}
	if parsed.Version() != 7 {
		t.Fatalf("expected version 7, got %d", parsed.Version())
	}
}

// TestBytesRoundTrip checks that UUID strings keep their value and other IDs hash stably.
func TestBytesRoundTrip(t *testing.T) {
	t.Parallel()

	id := goUUID.MustParse("00000000-0000-0000-0000-000000000007")
	if got := Bytes(id.String()); got != [16]byte(id) {
		t.Fatalf("Bytes(%s) = %x", id, got)
	}
	if Bytes("job-a") != Bytes("job-a") {
		t.Fatal("expected stable bytes for non-uuid id")
	}
	if Bytes("job-a") == Bytes("job-b") {
		t.Fatal("expected distinct bytes for distinct ids")
	}
}
