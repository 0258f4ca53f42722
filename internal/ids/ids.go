package ids

import "github.com/segmentio/ksuid"

// New returns a time-sortable identifier for credential records.
func New() string {
	return ksuid.New().String()
}
