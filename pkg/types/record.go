package types

// Record is implemented by every entity the Durable Collection Store (see
// internal/store) persists one-file-per-record. RecordID must equal the
// filename stem.
type Record interface {
	RecordID() string
}
