package kadi

import (
	"sort"
	"strings"
)

// DefaultLicense is offered when a note names none.
const DefaultLicense = "CC-BY-4.0"

// License is an entry of the license catalog.
type License struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Common bool   `json:"common,omitempty"`
}

var catalog = []License{
	{ID: "CC-BY-4.0", Name: "Creative Commons Attribution 4.0", Common: true},
	{ID: "CC-BY-SA-4.0", Name: "Creative Commons Attribution Share-Alike 4.0", Common: true},
	{ID: "CC-BY-NC-4.0", Name: "Creative Commons Attribution-NonCommercial 4.0", Common: true},
	{ID: "CC-BY-NC-SA-4.0", Name: "Creative Commons Attribution-NonCommercial-ShareAlike 4.0"},
	{ID: "CC-BY-ND-4.0", Name: "Creative Commons Attribution-NoDerivatives 4.0"},
	{ID: "CC-BY-NC-ND-4.0", Name: "Creative Commons Attribution-NonCommercial-NoDerivatives 4.0"},
	{ID: "CC0-1.0", Name: "Creative Commons CCZero", Common: true},
	{ID: "ODC-BY-1.0", Name: "Open Data Commons Attribution License 1.0"},
	{ID: "ODbL-1.0", Name: "Open Data Commons Open Database License 1.0", Common: true},
	{ID: "PDDL-1.0", Name: "Open Data Commons Public Domain Dedication and License 1.0"},
	{ID: "MIT", Name: "MIT License", Common: true},
	{ID: "Apache-2.0", Name: "Apache License 2.0", Common: true},
	{ID: "BSD-2-Clause", Name: "BSD 2-Clause \"Simplified\" License"},
	{ID: "BSD-3-Clause", Name: "BSD 3-Clause \"New\" or \"Revised\" License", Common: true},
	{ID: "GPL-2.0", Name: "GNU General Public License v2.0"},
	{ID: "GPL-3.0", Name: "GNU General Public License v3.0", Common: true},
	{ID: "LGPL-3.0", Name: "GNU Lesser General Public License v3.0"},
	{ID: "AGPL-3.0", Name: "GNU Affero General Public License v3.0"},
	{ID: "MPL-2.0", Name: "Mozilla Public License 2.0"},
	{ID: "EPL-2.0", Name: "Eclipse Public License 2.0"},
	{ID: "EUPL-1.2", Name: "European Union Public License 1.2"},
	{ID: "Unlicense", Name: "The Unlicense"},
	{ID: "other-open", Name: "Other (Open)"},
	{ID: "other-closed", Name: "Other (Not Open)"},
}

// Licenses returns the whole catalog.
func Licenses() []License {
	return append([]License(nil), catalog...)
}

// CommonLicenses returns the short list offered first in selection surfaces.
func CommonLicenses() []License {
	var out []License
	for _, l := range catalog {
		if l.Common {
			out = append(out, l)
		}
	}
	return out
}

// LicenseByID looks a license up by identifier, ignoring case.
func LicenseByID(id string) (License, bool) {
	for _, l := range catalog {
		if strings.EqualFold(l.ID, id) {
			return l, true
		}
	}
	return License{}, false
}

// SearchLicenses returns the licenses whose id or name contains every word
// of query, ignoring case. Id matches rank before name matches.
func SearchLicenses(query string) []License {
	words := strings.Fields(strings.ToLower(query))
	if len(words) == 0 {
		return Licenses()
	}
	type hit struct {
		l     License
		score int
	}
	var hits []hit
	for _, l := range catalog {
		id, name := strings.ToLower(l.ID), strings.ToLower(l.Name)
		score, ok := 0, true
		for _, w := range words {
			switch {
			case strings.Contains(id, w):
				score += 2
			case strings.Contains(name, w):
				score++
			default:
				ok = false
			}
		}
		if ok {
			hits = append(hits, hit{l, score})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].score > hits[j].score })
	out := make([]License, len(hits))
	for i, h := range hits {
		out[i] = h.l
	}
	return out
}
