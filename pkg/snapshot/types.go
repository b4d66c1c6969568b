// ABOUTME: Configuration snapshot data model
// ABOUTME: Immutable, time-ordered records assigning partitions to roles

package snapshot

import (
	"sort"
	"time"

	"github.com/nainya/typecatalog/pkg/rdf"
)

// Well-known roles
const (
	RoleMetadata       = "metadata"
	RoleConsumerGroup  = "consumerGroup"
	RoleInstance       = "instance"
	RoleCategoryFilter = "categoryFilter"
)

// Roles maps a role name to the predicate linking a snapshot to its partitions
type Roles map[string]string

// DefaultRoles returns the built-in role predicates
func DefaultRoles() Roles {
	return Roles{
		RoleMetadata:       rdf.CatHasMetadataGraph,
		RoleConsumerGroup:  rdf.CatHasConsumerGroupGraph,
		RoleInstance:       rdf.CatHasInstanceGraph,
		RoleCategoryFilter: rdf.CatHasCategoryFilterGraph,
	}
}

// Names returns the role names, sorted
func (r Roles) Names() []string {
	out := make([]string, 0, len(r))
	for name := range r {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// ConfigurationSnapshot is an immutable, time-stamped partition assignment.
// Values returned by the store are shared through the cache; treat them as
// read-only.
type ConfigurationSnapshot struct {
	ID               string              `json:"id"`
	StartTime        time.Time           `json:"startTime"`
	EditorialNote    string              `json:"editorialNote,omitempty"`
	PartitionsByRole map[string][]string `json:"partitionsByRole"`
}

// Partitions returns the sorted partitions for role
func (s *ConfigurationSnapshot) Partitions(role string) []string {
	return append([]string(nil), s.PartitionsByRole[role]...)
}

// SnapshotOverview is one history entry with partitions flattened
type SnapshotOverview struct {
	ID            string    `json:"id"`
	StartTime     time.Time `json:"startTime"`
	EditorialNote string    `json:"editorialNote,omitempty"`
	Partitions    []string  `json:"partitions"`
}

// CreateRequest is the payload of CreateSnapshot
type CreateRequest struct {
	PartitionsByRole map[string][]string `validate:"required,min=1,dive,keys,required,endkeys,required,min=1,dive,iri"`
	EditorialNote    string              `validate:"max=4000"`
}

// newer reports whether a sorts after b in snapshot order: later start time,
// ties broken by the greater id
func newer(a, b *ConfigurationSnapshot) bool {
	if !a.StartTime.Equal(b.StartTime) {
		return a.StartTime.After(b.StartTime)
	}
	return a.ID > b.ID
}
