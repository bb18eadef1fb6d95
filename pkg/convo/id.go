// Package convo defines the shared data model for conversations, threads,
// and the events that flow between the orchestrator, providers, and tool
// executor.
package convo

import (
	"crypto/rand"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// entropySource backs the monotonic ULID generator shared by NewId.
var entropySource = rand.Reader

// Id is an opaque, globally unique, sortable conversation identifier. It
// carries a creation timestamp, used as the prefix of the conversation's
// on-disk directory name.
type Id struct {
	ulid ulid.ULID
}

// NewId allocates a fresh Id stamped with t.
func NewId(t time.Time) Id {
	return Id{ulid: ulid.MustNew(ulid.Timestamp(t), monotonicEntropy())}
}

// ParseId parses the canonical string form of an Id.
func ParseId(s string) (Id, error) {
	u, err := ulid.ParseStrict(s)
	if err != nil {
		return Id{}, err
	}
	return Id{ulid: u}, nil
}

// String returns the canonical, sortable, 26-character form.
func (i Id) String() string {
	return i.ulid.String()
}

// Short returns the directory-name-friendly short form (lowercased, first
// 12 characters), used as a prefix when matching conversation directories.
func (i Id) Short() string {
	return strings.ToLower(i.ulid.String())[:12]
}

// CreatedAt recovers the embedded creation timestamp.
func (i Id) CreatedAt() time.Time {
	return ulid.Time(i.ulid.Time())
}

// HasPrefix reports whether dirName begins with this Id's short form,
// matching the Storage Layer's directory-prefix lookup rule.
func (i Id) HasPrefix(dirName string) bool {
	return strings.HasPrefix(strings.ToLower(dirName), i.Short())
}

// IsZero reports whether i is the zero value.
func (i Id) IsZero() bool {
	return i.ulid == ulid.ULID{}
}

func monotonicEntropy() *ulid.MonotonicEntropy {
	return ulid.Monotonic(entropySource, 0)
}
