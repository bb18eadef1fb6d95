package convo

import (
	"testing"
	"time"
)

func TestIdRoundTripsThroughString(t *testing.T) {
	id := NewId(time.Now())
	parsed, err := ParseId(id.String())
	if err != nil {
		t.Fatalf("ParseId: %v", err)
	}
	if parsed != id {
		t.Fatalf("round-tripped id %v != original %v", parsed, id)
	}
}

func TestIdCreatedAtMatchesStampedTime(t *testing.T) {
	now := time.Now().Truncate(time.Millisecond)
	id := NewId(now)
	if !id.CreatedAt().Equal(now) {
		t.Fatalf("CreatedAt() = %v, want %v", id.CreatedAt(), now)
	}
}

func TestIdHasPrefixMatchesOwnShortForm(t *testing.T) {
	id := NewId(time.Now())
	dirName := id.Short() + "-my-workspace"
	if !id.HasPrefix(dirName) {
		t.Fatalf("expected %q to match short form %q", dirName, id.Short())
	}
}

func TestZeroIdIsZero(t *testing.T) {
	var id Id
	if !id.IsZero() {
		t.Fatal("expected zero-value Id to report IsZero")
	}
	if NewId(time.Now()).IsZero() {
		t.Fatal("expected a freshly allocated Id to not be zero")
	}
}

func TestParseIdRejectsGarbage(t *testing.T) {
	if _, err := ParseId("not-a-ulid"); err == nil {
		t.Fatal("expected an error parsing an invalid id")
	}
}
