// Package encoder turns attributed concepts into hierarchical glyphs under an
// immutable layer/segment/role schema.
package encoder

// Relationship is a typed, directed link from a concept to a named target.
type Relationship struct {
	Type   string `json:"type" yaml:"type"`
	Target string `json:"target" yaml:"target"`
}

// Concept is a discrete, attributed fact. Attributes and relationships are
// encoded; Metadata is carried for audit and citation only, never bound into
// vectors. Treated as immutable once handed to an Encoder.
type Concept struct {
	Name          string            `json:"name" yaml:"name"`
	Attributes    map[string]string `json:"attributes,omitempty" yaml:"attributes,omitempty"`
	Relationships []Relationship    `json:"relationships,omitempty" yaml:"relationships,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// value resolves the value a role name maps to on the concept:
// attributes first, then the first relationship of that type, then metadata.
func (c Concept) value(role string) (string, bool) {
	if v, ok := c.Attributes[role]; ok {
		return v, true
	}
	for _, r := range c.Relationships {
		if r.Type == role {
			return r.Target, true
		}
	}
	if v, ok := c.Metadata[role]; ok {
		return v, true
	}
	return "", false
}

// Citation metadata keys recognized on a Concept.
const (
	CitationSourceKey       = "source"
	CitationApprovedByKey   = "approved_by"
	CitationApprovedDateKey = "approved_date"
)

// Citation records the provenance of an encoded fact.
type Citation struct {
	Source       string `json:"source,omitempty" yaml:"source,omitempty"`
	ApprovedBy   string `json:"approved_by,omitempty" yaml:"approved_by,omitempty"`
	ApprovedDate string `json:"approved_date,omitempty" yaml:"approved_date,omitempty"`
}

// citation extracts provenance fields from metadata, falling back to
// attributes for models that record approval inline.
func (c Concept) citation() *Citation {
	lookup := func(key string) string {
		if v, ok := c.Metadata[key]; ok {
			return v
		}
		return c.Attributes[key]
	}
	cit := Citation{
		Source:       lookup(CitationSourceKey),
		ApprovedBy:   lookup(CitationApprovedByKey),
		ApprovedDate: lookup(CitationApprovedDateKey),
	}
	if cit == (Citation{}) {
		return nil
	}
	return &cit
}
