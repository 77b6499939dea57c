// Package refdata holds the closed reference enumerations patient records are
// validated against.
package refdata

import (
	"slices"
)

// Name identifies a reference enumeration.
type Name string

const (
	Gender        Name = "gender"
	MaritalStatus Name = "marital_status"
	FamilyStatus  Name = "family_status"
	Education     Name = "education"
	Country       Name = "country"
)

var ordered = map[Name][]string{
	Gender: {"Muški", "Ženski"},
	MaritalStatus: {
		"U braku",
		"Razveden",
		"Udovac/Udovica",
		"Vanbračna zajednica",
		"Samac/Samica",
	},
	FamilyStatus: {
		"Oba roditelja",
		"Jedan roditelj",
		"Razvedeni roditelji",
		"Bez roditelja",
		"Usvojen",
	},
	Education: {
		"Bez osnovnog obrazovanja",
		"Osnovno obrazovanje",
		"Srednje obrazovanje",
		"Više obrazovanje",
		"Visoko obrazovanje",
	},
	Country: countryCodes,
}

var sets = func() map[Name]map[string]struct{} {
	m := make(map[Name]map[string]struct{}, len(ordered))
	for name, values := range ordered {
		set := make(map[string]struct{}, len(values))
		for _, v := range values {
			set[v] = struct{}{}
		}
		m[name] = set
	}
	return m
}()

// Contains reports whether code is a member of the named enumeration.
// Matching is exact; unknown enumeration names contain nothing.
func Contains(name Name, code string) bool {
	set, ok := sets[name]
	if !ok {
		return false
	}
	_, ok = set[code]
	return ok
}

// Values returns a copy of the enumeration's members in display order.
func Values(name Name) ([]string, bool) {
	values, ok := ordered[name]
	if !ok {
		return nil, false
	}
	return slices.Clone(values), true
}

// Names lists the known enumerations, sorted.
func Names() []Name {
	names := make([]Name, 0, len(ordered))
	for n := range ordered {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}
