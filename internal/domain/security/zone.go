package security

import (
	"slices"
	"strings"
)

// ZoneArmedPolicy decides when a zone is reported as armed.
type ZoneArmedPolicy string

const (
	// ZoneArmedAll reports a zone armed when every member is armed.
	ZoneArmedAll ZoneArmedPolicy = "all"
	// ZoneArmedAny reports a zone armed when at least one member is armed.
	ZoneArmedAny ZoneArmedPolicy = "any"
)

// Zone groups security nodes that are armed and disarmed as a unit.
type Zone struct {
	// ID is the unique zone identifier.
	ID string `json:"zone_id"`
	// Name is a human readable label.
	Name string `json:"name"`
	// Description is optional free text.
	Description string `json:"description,omitempty"`
	// MemberNodeIDs is the sorted set of member node ids.
	MemberNodeIDs []string `json:"member_node_ids"`
	// Armed is derived from the current arm state on read and never persisted.
	Armed bool `json:"-"`
}

// Clone returns a deep copy of the zone.
func (z *Zone) Clone() *Zone {
	if z == nil {
		return nil
	}

	cloned := *z
	cloned.MemberNodeIDs = slices.Clone(z.MemberNodeIDs)

	return &cloned
}

// ArmedUnder evaluates the zone against a set of armed node ids.
// A zone without members is never armed.
func (z *Zone) ArmedUnder(armed map[string]struct{}, policy ZoneArmedPolicy) bool {
	if len(z.MemberNodeIDs) == 0 {
		return false
	}

	hits := 0

	for _, id := range z.MemberNodeIDs {
		if _, ok := armed[id]; ok {
			hits++
		}
	}

	if policy == ZoneArmedAny {
		return hits > 0
	}

	return hits == len(z.MemberNodeIDs)
}

// SortZones orders zones by id.
func SortZones(zones []*Zone) {
	slices.SortFunc(zones, func(a, b *Zone) int {
		return strings.Compare(a.ID, b.ID)
	})
}

// NormalizeIDs trims, drops empty values, de-duplicates and sorts ids.
func NormalizeIDs(ids []string) []string {
	result := make([]string, 0, len(ids))

	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}

		result = append(result, id)
	}

	slices.Sort(result)

	return slices.Compact(result)
}
