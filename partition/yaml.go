package partition

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Size is a byte count that unmarshals from plain or hex integers and from
// K/M suffixed values such as "64K".
type Size uint32

// UnmarshalYAML implements yaml.Unmarshaler.
func (s *Size) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: size must be a scalar", node.Line)
	}
	v, err := parseSize(node.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*s = Size(v)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (s Size) MarshalYAML() (any, error) {
	return fmt.Sprintf("%#x", uint32(s)), nil
}

func parseSize(v string) (uint32, error) {
	v = strings.TrimSpace(v)
	mult := uint64(1)
	switch {
	case strings.HasSuffix(v, "K"):
		mult, v = 1<<10, strings.TrimSuffix(v, "K")
	case strings.HasSuffix(v, "M"):
		mult, v = 1<<20, strings.TrimSuffix(v, "M")
	}
	n, err := strconv.ParseUint(v, 0, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid size %q", v)
	}
	n *= mult
	if n > 1<<32-1 {
		return 0, fmt.Errorf("size %q overflows 32 bits", v)
	}
	return uint32(n), nil
}

type entry struct {
	Name   string `yaml:"name"`
	Offset Size   `yaml:"offset"`
	Size   Size   `yaml:"size"`
}

type document struct {
	Partitions []entry `yaml:"partitions"`
}

// Load decodes a YAML partition table:
//
//	partitions:
//	  - name: nvram_user
//	    offset: 0x0
//	    size: 64K
func Load(r io.Reader) (*Table, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var doc document
	if err := dec.Decode(&doc); err != nil {
		if err == io.EOF {
			return nil, fmt.Errorf("%w: empty document", ErrInvalid)
		}
		return nil, fmt.Errorf("%w: %w", ErrInvalid, err)
	}

	parts := make([]Partition, 0, len(doc.Partitions))
	for _, e := range doc.Partitions {
		parts = append(parts, Partition{Name: e.Name, Offset: uint32(e.Offset), Size: uint32(e.Size)})
	}
	return New(parts...)
}

// LoadFile reads a YAML partition table from path.
func LoadFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Load(f)
}

// Encode writes t as YAML in the format Load reads.
func (t *Table) Encode(w io.Writer) error {
	doc := document{Partitions: make([]entry, 0, len(t.parts))}
	for _, p := range t.parts {
		doc.Partitions = append(doc.Partitions, entry{Name: p.Name, Offset: Size(p.Offset), Size: Size(p.Size)})
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return err
	}
	return enc.Close()
}
