// Package company maps warehouse company names to tenant UUIDs.
package company

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

var ErrUnknownCompany = errors.New("company not found in mapping")

// Directory is immutable after construction.
type Directory struct {
	companies map[string]string
}

// DefaultMapping is the hand-maintained list of onboarded companies.
func DefaultMapping() map[string]string {
	return map[string]string{
		"bamo_company": "c12585ee-c8f4-4103-b7f0-37bd62401a65",
	}
}

func NewDirectory(mapping map[string]string) (*Directory, error) {
	companies := make(map[string]string, len(mapping))
	for name, id := range mapping {
		if _, err := uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("company %q maps to invalid uuid %q: %w", name, id, err)
		}
		companies[strings.TrimSpace(name)] = strings.ToLower(id)
	}
	return &Directory{companies: companies}, nil
}

// Load reads a YAML document of the form `companies: {name: uuid}`.
// An empty path yields DefaultMapping.
func Load(path string) (*Directory, error) {
	if path == "" {
		return NewDirectory(DefaultMapping())
	}
	content, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("reading company mapping: %w", err)
	}
	var doc struct {
		Companies map[string]string `yaml:"companies"`
	}
	if err := yaml.Unmarshal(content, &doc); err != nil {
		return nil, fmt.Errorf("parsing company mapping: %w", err)
	}
	if len(doc.Companies) == 0 {
		return nil, fmt.Errorf("company mapping %s is empty", path)
	}
	return NewDirectory(doc.Companies)
}

// Lookup returns the tenant UUID for name. Values that already are UUIDs
// pass through unchanged.
func (d *Directory) Lookup(name string) (string, error) {
	key := strings.TrimSpace(name)
	if id, ok := d.companies[key]; ok {
		return id, nil
	}
	if parsed, err := uuid.Parse(key); err == nil {
		return parsed.String(), nil
	}
	return "", fmt.Errorf("%w: %q, available companies: %s", ErrUnknownCompany, key, strings.Join(d.Names(), ", "))
}

func (d *Directory) Names() []string {
	names := make([]string, 0, len(d.companies))
	for name := range d.companies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
