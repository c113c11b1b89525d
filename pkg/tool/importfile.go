package tool

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/papercomputeco/mnemo/pkg/memory"
)

// ImportFile is a YAML bulk import document. It is either a mapping with an
// optional scope and namespace plus items, or a bare sequence of items.
type ImportFile struct {
	Scope     string `yaml:"scope,omitempty"`
	Namespace string `yaml:"namespace,omitempty"`
	Items     []Item `yaml:"items"`
}

// ParseImportFile decodes data. Unknown fields and items without content are
// rejected. Missing sources, priorities and confidences are filled in.
func ParseImportFile(data []byte) (*ImportFile, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("parsing import file: %w", err)
	}
	if len(root.Content) == 0 {
		return nil, errors.New("import file is empty")
	}

	file := &ImportFile{}
	var err error
	switch root.Content[0].Kind {
	case yaml.SequenceNode:
		err = decodeStrict(data, &file.Items)
	case yaml.MappingNode:
		err = decodeStrict(data, file)
	default:
		err = errors.New("import file must be a mapping or a sequence of items")
	}
	if err != nil {
		return nil, err
	}

	for i := range file.Items {
		it := &file.Items[i]
		if it.Content == nil || *it.Content == "" {
			return nil, fmt.Errorf("import item %d: content is required", i)
		}
		if it.Source == "" {
			it.Source = string(memory.SourceImport)
		}
		if it.Priority == "" {
			it.Priority = string(memory.PriorityMedium)
		}
		if it.Confidence == nil {
			confidence := 1.0
			it.Confidence = &confidence
		}
	}

	return file, nil
}

func decodeStrict(data []byte, out any) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parsing import file: %w", err)
	}
	return nil
}

// Batches splits items into consecutive chunks of at most size items.
func Batches(items []Item, size int) [][]Item {
	if size <= 0 {
		size = len(items)
	}

	var out [][]Item
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		out = append(out, items[start:end])
	}
	return out
}
