package ids

import "github.com/segmentio/ksuid"

// New returns a sortable, collision-resistant entity id.
func New() string {
	return ksuid.New().String()
}
