package services

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// taxonomy lists each canonical category with the free-text synonyms that
// map onto it. Order matters for prefix matching: earlier entries win.
var taxonomy = []struct {
	name     string
	synonyms []string
}{
	{"restaurant", []string{"restaurants", "food", "dining", "eat", "eats", "diner", "lunch", "dinner", "breakfast"}},
	{"cafe", []string{"cafes", "coffee", "coffee shop", "bakery"}},
	{"bar", []string{"bars", "pub", "brewery", "winery", "nightlife"}},
	{"attraction", []string{"attractions", "tourist attraction", "sights", "sightseeing", "landmark", "poi"}},
	{"park", []string{"parks", "nature", "trail", "hiking", "lake", "beach"}},
	{"museum", []string{"museums", "gallery", "art gallery", "history"}},
	{"hotel", []string{"hotels", "lodging", "motel", "inn", "accommodation", "stay"}},
	{"campground", []string{"campgrounds", "camping", "campsite", "rv park"}},
	{"gas_station", []string{"gas station", "gas", "fuel", "petrol", "charging", "ev charging"}},
	{"viewpoint", []string{"viewpoints", "scenic", "scenic view", "overlook", "vista"}},
	{"shopping", []string{"shop", "shops", "store", "mall", "market"}},
	{"hospital", []string{"hospitals", "urgent care", "clinic", "medical", "pharmacy"}},
	{"parking", []string{"parking lot", "garage"}},
	{"rest_area", []string{"rest area", "rest stop", "restroom", "bathroom"}},
	{"entertainment", []string{"fun", "activities", "theater", "cinema", "movies", "amusement"}},
}

// minPrefixLen keeps one- and two-letter fragments from matching arbitrarily.
const minPrefixLen = 3

var taxonomyLookup = func() map[string]string {
	m := make(map[string]string)
	for _, entry := range taxonomy {
		m[entry.name] = entry.name
		for _, s := range entry.synonyms {
			m[s] = entry.name
		}
	}
	return m
}()

// NormalizeCategory maps free-text category input onto the fixed taxonomy.
// Exact (case-insensitive) matches on a name or synonym win, then prefix
// matches. Unmapped input passes through with its first letter capitalized.
func NormalizeCategory(input string) string {
	key := strings.ToLower(strings.TrimSpace(input))
	if key == "" {
		return ""
	}
	key = strings.ReplaceAll(key, "_", " ")

	if name, ok := taxonomyLookup[key]; ok {
		return name
	}
	if name, ok := taxonomyLookup[strings.ReplaceAll(key, " ", "_")]; ok {
		return name
	}

	if len(key) < minPrefixLen {
		return capitalize(strings.TrimSpace(input))
	}
	for _, entry := range taxonomy {
		if strings.HasPrefix(entry.name, key) {
			return entry.name
		}
		for _, s := range entry.synonyms {
			if strings.HasPrefix(s, key) {
				return entry.name
			}
		}
	}

	return capitalize(strings.TrimSpace(input))
}

// IsKnownCategory reports whether category is a canonical taxonomy name.
func IsKnownCategory(category string) bool {
	for _, entry := range taxonomy {
		if entry.name == category {
			return true
		}
	}
	return false
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
