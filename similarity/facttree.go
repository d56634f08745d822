package similarity

import (
	"github.com/glyphh/glyphh/encoder"
	"github.com/glyphh/glyphh/hdv"
)

// Level tags a fact node with its position in the glyph hierarchy.
type Level string

const (
	LevelCortex  Level = "cortex"
	LevelLayer   Level = "layer"
	LevelSegment Level = "segment"
	LevelRole    Level = "role"
)

// FactNode is one level's contribution to a similarity score.
// Role nodes of the compared (stored) glyph carry its citation when one was
// recorded at encode time.
type FactNode struct {
	Level         Level             `json:"level"`
	Name          string            `json:"name"`
	Score         float64           `json:"score"`
	Weight        float64           `json:"weight"`
	SecurityScore float64           `json:"security_score"`
	Citation      *encoder.Citation `json:"citation,omitempty"`
	Children      []*FactNode       `json:"children,omitempty"`

	// present marks nodes that contributed to the parent aggregate.
	present bool
}

// Present reports whether this node contributed to its parent's score.
func (n *FactNode) Present() bool { return n.present }

func (n *FactNode) stripCitations() {
	n.Citation = nil
	for _, child := range n.Children {
		child.stripCitations()
	}
}

// FactTree is the explanation of one comparison: a tree mirroring the
// EncoderConfig hierarchy, read-only after construction.
type FactTree struct {
	Root   *FactNode  `json:"root"`
	Metric hdv.Metric `json:"-"`
}

// Walk visits every node depth-first, root first.
func (t *FactTree) Walk(fn func(*FactNode)) {
	if t == nil || t.Root == nil {
		return
	}
	var visit func(*FactNode)
	visit = func(n *FactNode) {
		fn(n)
		for _, child := range n.Children {
			visit(child)
		}
	}
	visit(t.Root)
}
