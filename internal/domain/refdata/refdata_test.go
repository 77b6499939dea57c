package refdata

import (
	"testing"
)

func TestContains(t *testing.T) {
	tests := []struct {
		name Name
		code string
		want bool
	}{
		{Gender, "Muški", true},
		{Gender, "Ženski", true},
		{Gender, "srednji", false},
		{Gender, "muški", false},
		{Gender, "", false},
		{MaritalStatus, "Razveden", true},
		{MaritalStatus, "marital", false},
		{FamilyStatus, "Usvojen", true},
		{FamilyStatus, "family", false},
		{Education, "Osnovno obrazovanje", true},
		{Education, "education", false},
		{Country, "SRB", true},
		{Country, "AFG", true},
		{Country, "srb", false},
		{Country, "country", false},
		{Name("blood_type"), "A", false},
	}

	for _, tt := range tests {
		if got := Contains(tt.name, tt.code); got != tt.want {
			t.Errorf("Contains(%s, %q) = %v, want %v", tt.name, tt.code, got, tt.want)
		}
	}
}

func TestValues_ReturnsCopy(t *testing.T) {
	values, ok := Values(Gender)
	if !ok {
		t.Fatal("expected gender enumeration")
	}
	values[0] = "mutated"
	if !Contains(Gender, "Muški") {
		t.Error("mutating the returned slice must not change the enumeration")
	}
	again, _ := Values(Gender)
	if again[0] != "Muški" {
		t.Errorf("expected original order preserved, got %v", again)
	}
}

func TestValues_Unknown(t *testing.T) {
	if _, ok := Values(Name("unknown")); ok {
		t.Error("expected unknown enumeration to be reported")
	}
}

func TestCountryCodes_UniqueAndWellFormed(t *testing.T) {
	seen := map[string]bool{}
	for _, c := range countryCodes {
		if len(c) != 3 {
			t.Errorf("country code %q is not alpha-3", c)
		}
		if seen[c] {
			t.Errorf("duplicate country code %q", c)
		}
		seen[c] = true
	}
}

func TestNames_Sorted(t *testing.T) {
	names := Names()
	if len(names) != 5 {
		t.Fatalf("expected 5 enumerations, got %d", len(names))
	}
	for i := 1; i < len(names); i++ {
		if names[i-1] > names[i] {
			t.Errorf("names not sorted: %v", names)
		}
	}
}
