package estimate

import (
	"os"
	"path/filepath"
	"testing"
)

func TestPropose_CommonHeaders(t *testing.T) {
	m := NewMapper(nil)
	headers := []string{"Item Ref", "Section", "Description", "Unit", "Qty", "Rate", "Category"}

	mapping := m.Propose(headers)

	want := map[Field]int{
		FieldExternalKey: 0,
		FieldSection:     1,
		FieldDescription: 2,
		FieldUnit:        3,
		FieldQuantity:    4,
		FieldRate:        5,
		FieldCategory:    6,
	}
	for field, col := range want {
		if got, ok := mapping[field]; !ok || got != col {
			t.Errorf("mapping[%s] = %d (ok=%v), want %d", field, got, ok, col)
		}
	}
}

func TestPropose_NormalizesHeaders(t *testing.T) {
	m := NewMapper(nil)
	mapping := m.Propose([]string{"  Unit of Measure ", "DESCRIPTION", "unit-rate"})

	if col, ok := mapping[FieldUnit]; !ok || col != 0 {
		t.Errorf("mapping[unit] = %d (ok=%v), want 0", col, ok)
	}
	if col, ok := mapping[FieldDescription]; !ok || col != 1 {
		t.Errorf("mapping[description] = %d (ok=%v), want 1", col, ok)
	}
	if col, ok := mapping[FieldRate]; !ok || col != 2 {
		t.Errorf("mapping[rate] = %d (ok=%v), want 2", col, ok)
	}
}

func TestPropose_NoColumnClaimedTwice(t *testing.T) {
	m := NewMapper(nil)
	// "cost" is an alias of both rate and amount
	mapping := m.Propose([]string{"Description", "Cost"})

	claimed := make(map[int]Field)
	for field, col := range mapping {
		if prev, ok := claimed[col]; ok {
			t.Fatalf("column %d claimed by both %s and %s", col, prev, field)
		}
		claimed[col] = field
	}

	// rate sits earlier in the priority order, so it wins the shared alias
	if col, ok := mapping[FieldRate]; !ok || col != 1 {
		t.Errorf("mapping[rate] = %d (ok=%v), want 1", col, ok)
	}
	if _, ok := mapping[FieldAmount]; ok {
		t.Error("amount should not claim the column rate already took")
	}
}

func TestPropose_UnknownHeadersUnmapped(t *testing.T) {
	m := NewMapper(nil)
	mapping := m.Propose([]string{"Description", "Frobnicate", "Qty"})

	for field, col := range mapping {
		if col == 1 {
			t.Errorf("unknown header claimed by %s", field)
		}
	}
}

func TestPropose_ExtraAliases(t *testing.T) {
	m := NewMapper(map[Field][]string{
		FieldQuantity: {"Menge"},
		Field("nope"): {"ignored"},
	})
	mapping := m.Propose([]string{"Description", "Menge"})

	if col, ok := mapping[FieldQuantity]; !ok || col != 1 {
		t.Errorf("mapping[quantity] = %d (ok=%v), want 1 via extra alias", col, ok)
	}
}

func TestFieldMapping_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mapping FieldMapping
		wantErr bool
	}{
		{"empty", FieldMapping{}, false},
		{"distinct", FieldMapping{FieldDescription: 0, FieldQuantity: 1}, false},
		{"duplicate column", FieldMapping{FieldDescription: 0, FieldQuantity: 0}, true},
		{"negative column", FieldMapping{FieldDescription: -1}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.mapping.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadAliases(t *testing.T) {
	path := filepath.Join(t.TempDir(), "aliases.yaml")
	content := "aliases:\n  quantity:\n    - Menge\n    - Antall\n  rate:\n    - Enhetspris\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	aliases, err := LoadAliases(path)
	if err != nil {
		t.Fatalf("LoadAliases() error = %v", err)
	}
	if len(aliases[FieldQuantity]) != 2 {
		t.Errorf("quantity aliases = %v, want 2 entries", aliases[FieldQuantity])
	}

	m := NewMapper(aliases)
	mapping := m.Propose([]string{"Description", "Antall", "Enhetspris"})
	if col, ok := mapping[FieldQuantity]; !ok || col != 1 {
		t.Errorf("mapping[quantity] = %d (ok=%v), want 1", col, ok)
	}
	if col, ok := mapping[FieldRate]; !ok || col != 2 {
		t.Errorf("mapping[rate] = %d (ok=%v), want 2", col, ok)
	}
}

func TestLoadAliases_MissingFile(t *testing.T) {
	_, err := LoadAliases(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatal("LoadAliases() expected error for missing file")
	}
}
