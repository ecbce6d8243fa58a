// Package allowlist holds the fixed set of repositories the service is
// permitted to query, plus their human-facing display names.
package allowlist

import "strings"

// Directory answers which repositories are permitted and how to label them.
// The aggregation core depends on this interface, not on the static set, so
// tests can run against fake repo sets.
type Directory interface {
	Permitted(repo string) bool
	DisplayName(repo string) string
	Repos() []string
}

// Static is a Directory backed by a fixed slice and display-name overrides
// keyed by lowercased repo slug.
type Static struct {
	repos     []string
	overrides map[string]string
}

// NewStatic builds a Directory from an explicit repo list and overrides.
func NewStatic(repos []string, overrides map[string]string) *Static {
	return &Static{repos: repos, overrides: overrides}
}

// Default returns the production allow-list.
func Default() *Static {
	return NewStatic([]string{
		"enzo-prism/exquisite-dentistry",
		"enzo-prism/prism-website",
		"enzo-prism/pti",
		"enzo-prism/age-boldly-vibrantly",
		"enzo-prism/leadership-retreat",
		"enzo-prism/canary-foundation",
		"enzo-prism/chris-dentist",
		"enzo-prism/canary-cove-alpha",
		"enzo-prism/DrNjo",
		"enzo-prism/wine-country-root-canal",
		"enzo-prism/Family-First-Smile-Care",
		"enzo-prism/infobell-it-2",
		"enzo-prism/matisse",
		"enzo-prism/philippine-athletics",
		"enzo-prism/saorsa-3",
		"enzo-prism/listwin-ventures",
		"enzo-prism/ambergris-support-spark",
		"enzo-prism/olympicbootworks-retail",
		"enzo-prism/ship",
	}, map[string]string{
		"age-boldly-vibrantly":    "Rebellious Aging",
		"exquisite-dentistry":     "Exquisite Dentistry",
		"leadership-retreat":      "Leadership Retreat",
		"canary-foundation":       "Canary Foundation",
		"prism-website":           "Prism",
		"pti":                     "PTI",
		"chris-dentist":           "Dr. Wong",
		"canary-cove-alpha":       "Canary Cove",
		"drnjo":                   "Dental Strategies",
		"wine-country-root-canal": "Wine Country Root Canal",
		"family-first-smile-care": "Family First Smile Care",
		"infobell-it-2":           "Infobell IT",
		"matisse":                 "Matisse",
		"philippine-athletics":    "Philippine Athletics",
		"saorsa-3":                "Saorsa Growth Partners",
		"listwin-ventures":        "Listwin Ventures",
		"ambergris-support-spark": "Belize Kids",
		"olympicbootworks-retail": "Olympic Bootworks",
		"ship":                    "🚢 ship",
	})
}

func (s *Static) Permitted(repo string) bool {
	for _, r := range s.repos {
		if r == repo {
			return true
		}
	}
	return false
}

// DisplayName maps an owner/name repo to its display label, falling back
// to the repo slug when no override exists.
func (s *Static) DisplayName(repo string) string {
	slug := repo
	if idx := strings.LastIndex(repo, "/"); idx >= 0 {
		slug = repo[idx+1:]
	}
	if name, ok := s.overrides[strings.ToLower(slug)]; ok {
		return name
	}
	return slug
}

// Repos returns a copy of the allow-list in its configured order.
func (s *Static) Repos() []string {
	out := make([]string, len(s.repos))
	copy(out, s.repos)
	return out
}
