package vendors

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/kalambet/procura/internal/rfp"
)

type vendorYAML struct {
	Name    string `yaml:"name"`
	Email   string `yaml:"email"`
	Contact string `yaml:"contact"`
	Notes   string `yaml:"notes"`
}

type fileYAML struct {
	Vendors []vendorYAML `yaml:"vendors"`
}

// ImportResult counts the outcome of an import.
type ImportResult struct {
	Imported int
	Skipped  []string
}

// Import reads vendors from YAML, either a top-level list or a "vendors"
// key, and upserts each by email. Invalid entries are skipped and reported.
func (d *Directory) Import(r io.Reader) (ImportResult, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return ImportResult{}, fmt.Errorf("reading vendor file: %w", err)
	}
	entries, err := decodeVendors(data)
	if err != nil {
		return ImportResult{}, err
	}

	var res ImportResult
	for i, e := range entries {
		_, err := d.Upsert(rfp.Vendor{Name: e.Name, Email: e.Email, Contact: e.Contact, Notes: e.Notes})
		if err != nil {
			res.Skipped = append(res.Skipped, fmt.Sprintf("entry %d (%s): %v", i+1, e.Email, err))
			continue
		}
		res.Imported++
	}
	return res, nil
}

func decodeVendors(data []byte) ([]vendorYAML, error) {
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, fmt.Errorf("parsing vendor file: %w", err)
	}
	if len(node.Content) == 0 {
		return nil, nil
	}

	root := node.Content[0]
	switch root.Kind {
	case yaml.SequenceNode:
		var list []vendorYAML
		if err := root.Decode(&list); err != nil {
			return nil, fmt.Errorf("decoding vendor list: %w", err)
		}
		return list, nil
	case yaml.MappingNode:
		var f fileYAML
		if err := root.Decode(&f); err != nil {
			return nil, fmt.Errorf("decoding vendor file: %w", err)
		}
		return f.Vendors, nil
	default:
		return nil, fmt.Errorf("vendor file must be a list or have a vendors key")
	}
}
