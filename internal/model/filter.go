package model

// Default and maximum page sizes for list queries.
const (
	DefaultLimit = 50
	MaxLimit     = 500
)

// ListOptions holds the paging and scoping parameters shared by list queries.
// Empty scope fields are ignored.
type ListOptions struct {
	OwnerID       string
	ApplicationID string
	SchemaID      string
	ResourceID    string
	ActorID       string
	Search        string
	Limit         int
	Offset        int
}

// Normalize clamps Limit and Offset into their allowed ranges.
func (o ListOptions) Normalize() ListOptions {
	if o.Limit <= 0 {
		o.Limit = DefaultLimit
	}
	if o.Limit > MaxLimit {
		o.Limit = MaxLimit
	}
	if o.Offset < 0 {
		o.Offset = 0
	}
	return o
}
