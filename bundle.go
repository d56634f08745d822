package glyphh

import (
	"compress/gzip"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/glyphh/glyphh/encoder"
	"github.com/glyphh/glyphh/intent"
)

// BundleFormatVersion is the on-disk format written by Export.
const BundleFormatVersion = 1

// BundleExt is the conventional file extension for exported models.
const BundleExt = ".glyphh"

// ErrBundleFormat indicates a bundle that cannot be read by this version.
var ErrBundleFormat = errors.New("glyphh: unsupported bundle format")

// BundleEntry pairs a stored concept with its encoded glyph.
type BundleEntry struct {
	Concept encoder.Concept `json:"concept"`
	Glyph   *encoder.Glyph  `json:"glyph"`
}

// Bundle is the portable serialized form of a Model: schema, glyphs and
// intent patterns, gzip-compressed JSON on the wire. Encoded vectors travel
// as-is, so importing never re-encodes and is byte-exact.
type Bundle struct {
	FormatVersion int                   `json:"format_version"`
	Name          string                `json:"name"`
	Version       string                `json:"version"`
	CreatedAt     time.Time             `json:"created_at"`
	Config        encoder.EncoderConfig `json:"config"`
	Entries       []BundleEntry         `json:"entries"`
	Patterns      []intent.Pattern      `json:"patterns,omitempty"`
	Metadata      map[string]string     `json:"metadata,omitempty"`
}

// Export writes the model as a gzip-compressed JSON bundle.
func (m *Model) Export(w io.Writer) error {
	entries := m.store.snapshot()
	b := Bundle{
		FormatVersion: BundleFormatVersion,
		Name:          m.name,
		Version:       m.version,
		CreatedAt:     time.Now().UTC(),
		Config:        m.enc.Config(),
		Entries:       make([]BundleEntry, len(entries)),
		Patterns:      m.intents.Patterns(),
		Metadata:      m.meta,
	}
	for i, e := range entries {
		b.Entries[i] = BundleEntry{Concept: e.concept, Glyph: e.glyph}
	}

	gz := gzip.NewWriter(w)
	if err := json.NewEncoder(gz).Encode(b); err != nil {
		gz.Close()
		return fmt.Errorf("glyphh: export: %w", err)
	}
	if err := gz.Close(); err != nil {
		return fmt.Errorf("glyphh: export: %w", err)
	}
	m.log.Debug("exported bundle",
		zap.String("name", b.Name),
		zap.Int("glyphs", len(b.Entries)),
	)
	return nil
}

// ExportFile writes the bundle to path, conventionally *.glyphh.
func (m *Model) ExportFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("glyphh: export: %w", err)
	}
	if err := m.Export(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Import reads a bundle and reconstructs a ready-to-query Model. Stored
// glyphs are restored verbatim; extra options apply on top of the bundle's
// name, version and metadata.
func Import(r io.Reader, opts ...Option) (*Model, error) {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("glyphh: import: %w", err)
	}
	defer gz.Close()

	var b Bundle
	if err := json.NewDecoder(gz).Decode(&b); err != nil {
		return nil, fmt.Errorf("glyphh: import: %w", err)
	}
	if b.FormatVersion != BundleFormatVersion {
		return nil, fmt.Errorf("%w: version %d", ErrBundleFormat, b.FormatVersion)
	}

	restored := []Option{
		WithName(b.Name),
		WithVersion(b.Version),
		WithMetadata(b.Metadata),
	}
	if len(b.Patterns) > 0 {
		ie := intent.NewEncoder()
		for _, p := range b.Patterns {
			ie.AddPattern(p)
		}
		restored = append(restored, WithIntents(ie))
	}

	m, err := New(b.Config, append(restored, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("glyphh: import: %w", err)
	}
	for _, e := range b.Entries {
		if e.Glyph == nil {
			return nil, fmt.Errorf("%w: entry without glyph", ErrBundleFormat)
		}
		if e.Glyph.SpaceID != m.enc.Space().ID() {
			return nil, fmt.Errorf("glyphh: import: glyph %q: %w", e.Glyph.ID, encoder.ErrIncompatibleSpace)
		}
		m.store.add(e.Concept, e.Glyph)
	}
	return m, nil
}

// ImportFile reads a bundle from path.
func ImportFile(path string, opts ...Option) (*Model, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("glyphh: import: %w", err)
	}
	defer f.Close()
	return Import(f, opts...)
}
