package services

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roadtrip-server/models"
)

func TestFilterCandidates(t *testing.T) {
	rules := NewExclusionRuleSet(
		[]string{"McDonald's", "Subway"},
		[]string{"Motel 6"},
		[]string{"Shell"},
		[]string{"gas_station"},
	)

	candidates := []models.POI{
		{Name: "Lost Lake Resort", Category: "hotel"},
		{Name: "MCDONALD'S #1234", Category: "restaurant"},
		{Name: "Shell Subway Combo", Category: "restaurant"}, // matches twice, counted once
		{Name: "Motel 6 Hood River", Category: "hotel"},
		{Name: "Joe's Fuel Stop", Category: "Gas_Station"},
		{Name: "Multnomah Falls", Category: "attraction"},
	}

	survivors, excluded := FilterCandidates(candidates, rules)

	assert.Equal(t, 4, excluded)
	require.Len(t, survivors, 2)
	assert.Equal(t, "Lost Lake Resort", survivors[0].Name)
	assert.Equal(t, "Multnomah Falls", survivors[1].Name)
}

func TestExclusionRuleSet_MatchOrder(t *testing.T) {
	rules := DefaultExclusionRules()

	assert.Equal(t, "chain_restaurant", rules.Match(models.POI{Name: "Starbucks Reserve", Category: "gas_station"}))
	assert.Equal(t, "chain_hotel", rules.Match(models.POI{Name: "Best Western Plus"}))
	assert.Equal(t, "gas_station", rules.Match(models.POI{Name: "Chevron Extra Mile"}))
	assert.Equal(t, "excluded_category", rules.Match(models.POI{Name: "Corner Fuel", Category: "Gas_Station"}))
	assert.Equal(t, "", rules.Match(models.POI{Name: "Timberline Lodge", Category: "hotel"}))
}

func TestFilterCandidates_NilRules(t *testing.T) {
	in := []models.POI{{Name: "Shell"}}
	out, excluded := FilterCandidates(in, nil)
	assert.Equal(t, in, out)
	assert.Zero(t, excluded)
}

func TestParseExclusionRules(t *testing.T) {
	data := []byte(`
chain_restaurants:
  - Voodoo Doughnut
gas_stations: []
`)
	rules, err := ParseExclusionRules(data)
	require.NoError(t, err)

	assert.Equal(t, "chain_restaurant", rules.Match(models.POI{Name: "voodoo doughnut too"}))
	// Defaults for the restaurants section were replaced.
	assert.Equal(t, "", rules.Match(models.POI{Name: "McDonald's"}))
	// Explicitly empty list clears gas stations.
	assert.Equal(t, "", rules.Match(models.POI{Name: "Shell"}))
	// Absent sections keep defaults.
	assert.Equal(t, "chain_hotel", rules.Match(models.POI{Name: "Super 8"}))
}

func TestLoadExclusionRules(t *testing.T) {
	rules, err := LoadExclusionRules("")
	require.NoError(t, err)
	assert.NotEmpty(t, rules.Match(models.POI{Name: "Shell"}))

	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte("excluded_categories: [bar]\n"), 0o600))
	rules, err = LoadExclusionRules(path)
	require.NoError(t, err)
	assert.Equal(t, "excluded_category", rules.Match(models.POI{Name: "The Pub", Category: "Bar"}))

	_, err = LoadExclusionRules(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = ParseExclusionRules([]byte("chain_hotels: {not: a list"))
	assert.Error(t, err)
}
