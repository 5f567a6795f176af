package vectordb

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// manifestRecord mirrors one stored record without its vector.
type manifestRecord struct {
	ID       string            `json:"id"`
	Text     string            `json:"text"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// manifest is the collection's sidecar catalog: fixed dimensionality plus the
// stored records in insertion order. The backing index persists the vectors
// but exposes neither enumeration nor insertion order, both of which the
// collection contract needs.
type manifest struct {
	Dim     int              `json:"dim"`
	Records []manifestRecord `json:"records"`
	path    string
}

func manifestPath(directory, name string) string {
	return filepath.Join(directory, name+".manifest.json")
}

func loadManifest(directory, name string) (*manifest, error) {
	path := manifestPath(directory, name)
	m := &manifest{path: path}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return m, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read collection manifest: %w", err)
	}
	if err := json.Unmarshal(data, m); err != nil {
		return nil, fmt.Errorf("failed to parse collection manifest: %w", err)
	}
	return m, nil
}

func (m *manifest) save() error {
	data, err := json.Marshal(m)
	if err != nil {
		return err
	}
	if err := os.WriteFile(m.path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write collection manifest: %w", err)
	}
	return nil
}

func (m *manifest) remove() error {
	err := os.Remove(m.path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

func (m *manifest) has(id string) bool {
	for _, r := range m.Records {
		if r.ID == id {
			return true
		}
	}
	return false
}

// order maps record id to insertion position.
func (m *manifest) order() map[string]int {
	order := make(map[string]int, len(m.Records))
	for i, r := range m.Records {
		order[r.ID] = i
	}
	return order
}
