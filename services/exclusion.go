package services

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"roadtrip-server/models"
)

// ExclusionRuleSet holds the patterns used to suppress chains, gas stations
// and disallowed categories. Build it once at startup and treat it as
// read-only; all patterns are stored lowercased.
type ExclusionRuleSet struct {
	chainRestaurants   []string
	chainHotels        []string
	gasStations        []string
	excludedCategories map[string]struct{}
}

// exclusionFile is the YAML layout of a rule file. Absent sections keep the
// built-in defaults; an explicitly empty list clears them.
type exclusionFile struct {
	ChainRestaurants   *[]string `yaml:"chain_restaurants"`
	ChainHotels        *[]string `yaml:"chain_hotels"`
	GasStations        *[]string `yaml:"gas_stations"`
	ExcludedCategories *[]string `yaml:"excluded_categories"`
}

var (
	defaultChainRestaurants = []string{
		"McDonald's", "McDonalds", "Burger King", "Wendy's", "Subway", "Taco Bell",
		"KFC", "Kentucky Fried Chicken", "Pizza Hut", "Domino's", "Papa John's",
		"Starbucks", "Dunkin", "Chick-fil-A", "Arby's", "Sonic Drive-In", "Dairy Queen",
		"Jack in the Box", "Carl's Jr", "Hardee's", "Popeyes", "Chipotle", "Panda Express",
		"Applebee's", "Denny's", "IHOP", "Olive Garden", "Red Robin", "Five Guys",
		"Little Caesars", "Jimmy John's", "Panera", "Cracker Barrel",
	}
	defaultChainHotels = []string{
		"Marriott", "Hilton", "Holiday Inn", "Best Western", "Motel 6", "Super 8",
		"Days Inn", "Comfort Inn", "Hampton Inn", "La Quinta", "Quality Inn",
		"Red Roof Inn", "Travelodge", "Econo Lodge", "Howard Johnson", "Sheraton",
		"Hyatt", "Courtyard by Marriott", "Fairfield Inn", "Extended Stay America",
	}
	defaultGasStations = []string{
		"Shell", "Chevron", "Exxon", "ExxonMobil", "Texaco", "Arco AM/PM", "am/pm",
		"Sunoco", "Valero", "Citgo", "Speedway", "Circle K", "Phillips 66",
		"Conoco", "Pilot Travel Center", "Flying J", "Love's Travel Stop", "7-Eleven",
		"Costco Gasoline", "Gas Station",
	}
	defaultExcludedCategories = []string{
		"gas_station", "gas station", "fuel", "convenience_store", "convenience store",
		"atm", "bank", "car_wash", "car_repair", "parking",
	}
)

// NewExclusionRuleSet builds a rule set from raw pattern lists.
func NewExclusionRuleSet(chainRestaurants, chainHotels, gasStations, excludedCategories []string) *ExclusionRuleSet {
	rs := &ExclusionRuleSet{
		chainRestaurants:   lowerPatterns(chainRestaurants),
		chainHotels:        lowerPatterns(chainHotels),
		gasStations:        lowerPatterns(gasStations),
		excludedCategories: make(map[string]struct{}, len(excludedCategories)),
	}
	for _, c := range lowerPatterns(excludedCategories) {
		rs.excludedCategories[c] = struct{}{}
	}
	return rs
}

// DefaultExclusionRules returns the built-in rule set.
func DefaultExclusionRules() *ExclusionRuleSet {
	return NewExclusionRuleSet(defaultChainRestaurants, defaultChainHotels, defaultGasStations, defaultExcludedCategories)
}

// LoadExclusionRules reads a YAML rule file. An empty path returns the
// defaults.
func LoadExclusionRules(path string) (*ExclusionRuleSet, error) {
	if path == "" {
		return DefaultExclusionRules(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading exclusion rules: %w", err)
	}
	return ParseExclusionRules(data)
}

// ParseExclusionRules decodes YAML rule data on top of the defaults.
func ParseExclusionRules(data []byte) (*ExclusionRuleSet, error) {
	var file exclusionFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing exclusion rules: %w", err)
	}
	pick := func(override *[]string, fallback []string) []string {
		if override != nil {
			return *override
		}
		return fallback
	}
	return NewExclusionRuleSet(
		pick(file.ChainRestaurants, defaultChainRestaurants),
		pick(file.ChainHotels, defaultChainHotels),
		pick(file.GasStations, defaultGasStations),
		pick(file.ExcludedCategories, defaultExcludedCategories),
	), nil
}

// Match returns the rule group that excludes poi, or "" if it survives.
// Groups are checked in a fixed order and the first hit wins.
func (rs *ExclusionRuleSet) Match(poi models.POI) string {
	name := strings.ToLower(poi.Name)
	for _, group := range []struct {
		rule     string
		patterns []string
	}{
		{"chain_restaurant", rs.chainRestaurants},
		{"chain_hotel", rs.chainHotels},
		{"gas_station", rs.gasStations},
	} {
		for _, pattern := range group.patterns {
			if strings.Contains(name, pattern) {
				return group.rule
			}
		}
	}
	if _, ok := rs.excludedCategories[strings.ToLower(poi.Category)]; ok {
		return "excluded_category"
	}
	return ""
}

// FilterCandidates drops every candidate matched by rules and returns the
// survivors in their original order along with the number dropped. A nil
// rule set drops nothing.
func FilterCandidates(candidates []models.POI, rules *ExclusionRuleSet) ([]models.POI, int) {
	if rules == nil {
		return candidates, 0
	}
	survivors := make([]models.POI, 0, len(candidates))
	excluded := 0
	for _, c := range candidates {
		if rules.Match(c) != "" {
			excluded++
			continue
		}
		survivors = append(survivors, c)
	}
	return survivors, excluded
}

func lowerPatterns(in []string) []string {
	out := make([]string, 0, len(in))
	for _, p := range in {
		if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
			out = append(out, p)
		}
	}
	return out
}
