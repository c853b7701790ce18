package types

// Status is the row lifecycle of a persisted record. Deleted rows are ignored by every ledger query.
type Status string

const (
	StatusPublished Status = "published"
	StatusArchived  Status = "archived"
	StatusDeleted   Status = "deleted"
)
