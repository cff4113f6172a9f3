package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// AssetKind distinguishes the two asset tables.
// Values are AssetKindImage and AssetKindVideo.
type AssetKind string

const (
	AssetKindImage AssetKind = "image"
	AssetKindVideo AssetKind = "video"
)

// Valid reports whether k is a known asset kind.
func (k AssetKind) Valid() bool {
	return k == AssetKindImage || k == AssetKindVideo
}

// EmbeddingVector is a custom type for storing a float32 vector as JSON in
// the database. An empty vector means semantic search was disabled when the
// asset was ingested.
type EmbeddingVector []float32

// Value implements the driver.Valuer interface for database serialization.
// Parameters: none.
// Returns:
//   - driver.Value: JSON-encoded representation of the vector.
//   - error: non-nil if marshaling fails.
func (v EmbeddingVector) Value() (driver.Value, error) {
	if v == nil {
		return "[]", nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements the sql.Scanner interface for database deserialization.
// Parameters:
//   - value: raw database value to decode.
//
// Returns:
//   - error: non-nil if decoding fails or the type is unexpected.
func (v *EmbeddingVector) Scan(value interface{}) error {
	if value == nil {
		*v = EmbeddingVector{}
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		str, ok := value.(string)
		if !ok {
			return errors.New("failed to scan EmbeddingVector")
		}
		bytes = []byte(str)
	}
	return json.Unmarshal(bytes, v)
}

// GCCandidate is the kind-neutral eviction view the garbage collector
// merges into a single global-LRU order.
type GCCandidate struct {
	ID         string
	Kind       AssetKind
	Bytes      int64
	Path       string
	ThumbPath  string
	LastUsedAt time.Time
	CreatedAt  time.Time
}
