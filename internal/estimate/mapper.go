package estimate

// mapper.go proposes a FieldMapping from free-form header labels.
//
// Matching is greedy and order-dependent on purpose: fields are tried in a
// fixed priority order, each taking the first unclaimed header that matches
// one of its aliases. When two fields share an alias, the field earlier in
// the priority order wins the column. The proposal is only a default; callers
// may override or complete it before validation.

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// FieldMapping maps semantic fields to column positions in a RawTable.
// A field absent from the map is unmapped.
type FieldMapping map[Field]int

// Validate rejects mappings where two fields claim the same column.
func (m FieldMapping) Validate() error {
	claimed := make(map[int]Field, len(m))
	for field, col := range m {
		if col < 0 {
			return fmt.Errorf("field %s mapped to negative column %d", field, col)
		}
		if prev, ok := claimed[col]; ok {
			return fmt.Errorf("fields %s and %s both mapped to column %d", prev, field, col)
		}
		claimed[col] = field
	}
	return nil
}

// fieldPriority is the fixed order in which fields claim columns.
var fieldPriority = []Field{
	FieldRowType,
	FieldExternalKey,
	FieldSection,
	FieldDescription,
	FieldUnit,
	FieldQuantity,
	FieldRate,
	FieldAmount,
	FieldCategory,
	FieldMeasurement,
	FieldAssumptions,
	FieldAction,
}

// defaultAliases lists the recognized header spellings per field, in
// normalized form (lowercase, alphanumerics only).
var defaultAliases = map[Field][]string{
	FieldRowType:     {"rowtype", "type", "kind", "linetype"},
	FieldExternalKey: {"externalkey", "extkey", "key", "ref", "reference", "itemref"},
	FieldSection:     {"section", "sectionname", "group", "heading", "trade"},
	FieldDescription: {"description", "desc", "item", "itemdescription", "scope", "details"},
	FieldUnit:        {"unit", "uom", "units", "unitofmeasure"},
	FieldQuantity:    {"quantity", "qty", "count"},
	FieldRate:        {"rate", "unitrate", "unitprice", "price", "unitcost", "cost"},
	FieldAmount:      {"amount", "total", "linetotal", "value", "cost"},
	FieldCategory:    {"category", "cat", "costcategory", "discipline"},
	FieldMeasurement: {"measurement", "measure", "takeoff"},
	FieldAssumptions: {"assumptions", "assumption", "notes", "comments", "remarks"},
	FieldAction:      {"action", "operation", "op", "change"},
}

// Mapper proposes default field mappings for uploaded headers.
type Mapper struct {
	aliases map[Field]map[string]bool
}

// NewMapper builds a mapper from the built-in alias lists plus optional
// per-field extras (already-normalized or not; extras are normalized here).
func NewMapper(extra map[Field][]string) *Mapper {
	m := &Mapper{aliases: make(map[Field]map[string]bool, len(defaultAliases))}
	for field, list := range defaultAliases {
		set := make(map[string]bool, len(list))
		for _, a := range list {
			set[a] = true
		}
		m.aliases[field] = set
	}
	for field, list := range extra {
		set, ok := m.aliases[field]
		if !ok {
			continue // unknown field names in overrides are ignored
		}
		for _, a := range list {
			if norm := normalizeHeader(a); norm != "" {
				set[norm] = true
			}
		}
	}
	return m
}

// Propose maps headers onto semantic fields. Fields with no matching header
// are left out of the returned mapping. No column is ever assigned twice.
func (m *Mapper) Propose(headers []string) FieldMapping {
	normalized := make([]string, len(headers))
	for i, h := range headers {
		normalized[i] = normalizeHeader(h)
	}

	mapping := make(FieldMapping, len(fieldPriority))
	taken := make(map[int]bool, len(headers))

	for _, field := range fieldPriority {
		set := m.aliases[field]
		for col, h := range normalized {
			if taken[col] || h == "" {
				continue
			}
			if set[h] {
				mapping[field] = col
				taken[col] = true
				break
			}
		}
	}

	return mapping
}

// normalizeHeader lowercases a header and strips every non-alphanumeric rune.
func normalizeHeader(h string) string {
	var b strings.Builder
	b.Grow(len(h))
	for _, r := range strings.ToLower(h) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// aliasFile is the on-disk shape of a column-alias override file.
type aliasFile struct {
	Aliases map[string][]string `yaml:"aliases"`
}

// LoadAliases reads extra header aliases from a YAML file keyed by semantic
// field name. Unknown field names are dropped by NewMapper.
func LoadAliases(path string) (map[Field][]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read alias file: %w", err)
	}

	var f aliasFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse alias file: %w", err)
	}

	out := make(map[Field][]string, len(f.Aliases))
	for name, list := range f.Aliases {
		out[Field(name)] = list
	}
	return out, nil
}
