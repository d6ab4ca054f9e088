package activity

import "github.com/sonetyo/ledger/internal/domain/ledger"

// ListActivityOptions provides filtering options for listing activity.
type ListActivityOptions struct {
	RecordID *uint64
	Actor    *ledger.Identity
	Types    []ActivityType
	Limit    int
	Offset   int
}
