package domain

import (
	"fmt"
	"strings"
)

// Channel names a logical multicast group of live connections.
// Two families exist: one channel per staff role and one per table.
type Channel string

func RoleChannel(r Role) Channel {
	return Channel("role:" + string(r))
}

func TableChannel(tableID string) Channel {
	return Channel(fmt.Sprintf("table:%s", tableID))
}

// IsTable distinguishes the per-table family from role channels. A guest
// session is scoped to a single table, so table memberships are exclusive.
func (c Channel) IsTable() bool {
	return strings.HasPrefix(string(c), "table:")
}
