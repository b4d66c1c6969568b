// ABOUTME: Type hierarchy and resolved schema data model
// ABOUTME: TypeNode trees and path-keyed metadata properties with nested schemas

package schema

// TypeNode is one type in the hierarchy
type TypeNode struct {
	ID          string              `json:"id"`
	Label       string              `json:"label,omitempty"`
	Description string              `json:"description,omitempty"`
	Attributes  map[string][]string `json:"attributes,omitempty"`
	Parents     []string            `json:"parents,omitempty"`  // direct super-types
	Children    []*TypeNode         `json:"children,omitempty"` // only set by GetHierarchy
}

// MetadataPropertyGroup places a property in a form section
type MetadataPropertyGroup struct {
	Key             string `json:"key"`
	Label           string `json:"label,omitempty"`
	Order           *int   `json:"order,omitempty"`
	EditDescription string `json:"editDescription,omitempty"`
	ViewDescription string `json:"viewDescription,omitempty"`
}

// MetadataProperty is the resolved schema of one property path
type MetadataProperty struct {
	Path         string                 `json:"path"`
	Attributes   map[string][]string    `json:"attributes"`
	Group        *MetadataPropertyGroup `json:"group,omitempty"`
	NestedSchema []Metadata             `json:"nestedSchema,omitempty"`
}

// Metadata is the schema of one instantiable nested type
type Metadata struct {
	ID          string                       `json:"id"`
	Label       string                       `json:"label,omitempty"`
	Description string                       `json:"description,omitempty"`
	Properties  map[string]*MetadataProperty `json:"properties"`
}

func (p *MetadataProperty) add(key, value string) {
	for _, existing := range p.Attributes[key] {
		if existing == value {
			return
		}
	}
	p.Attributes[key] = append(p.Attributes[key], value)
}
