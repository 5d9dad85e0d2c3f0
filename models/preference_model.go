package models

import (
	"slices"
	"strings"
	"sync"
)

// CategoryPreference holds a traveler's liked and avoided categories plus the
// POIs they explicitly disliked. A category is never preferred and avoided at
// the same time; the most recent signal wins. Safe for concurrent use.
type CategoryPreference struct {
	mu           sync.RWMutex
	preferred    map[string]struct{}
	avoided      map[string]struct{}
	dislikedPOIs map[string]struct{}
	generation   uint64
}

// PreferenceSnapshot is the serializable form of a CategoryPreference.
type PreferenceSnapshot struct {
	TravelerID   string   `json:"traveler_id" bson:"traveler_id"`
	Preferred    []string `json:"preferred" bson:"preferred"`
	Avoided      []string `json:"avoided" bson:"avoided"`
	DislikedPOIs []string `json:"disliked_pois" bson:"disliked_pois"`
}

func NewCategoryPreference() *CategoryPreference {
	return &CategoryPreference{
		preferred:    make(map[string]struct{}),
		avoided:      make(map[string]struct{}),
		dislikedPOIs: make(map[string]struct{}),
	}
}

func preferenceKey(category string) string {
	return strings.ToLower(strings.TrimSpace(category))
}

// Like moves category into the preferred set.
func (p *CategoryPreference) Like(category string) {
	key := preferenceKey(category)
	if key == "" {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.avoided, key)
	p.preferred[key] = struct{}{}
	p.generation++
}

// Dislike moves category into the avoided set.
func (p *CategoryPreference) Dislike(category string) {
	key := preferenceKey(category)
	if key == "" {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.preferred, key)
	p.avoided[key] = struct{}{}
	p.generation++
}

// DislikePOI records the POI ID and avoids its category in one update.
func (p *CategoryPreference) DislikePOI(poi POI) {
	key := preferenceKey(poi.Category)
	p.mu.Lock()
	defer p.mu.Unlock()
	if key != "" {
		delete(p.preferred, key)
		p.avoided[key] = struct{}{}
	}
	if poi.ID != "" {
		p.dislikedPOIs[poi.ID] = struct{}{}
	}
	p.generation++
}

// LikePOI prefers the POI's category and forgets any earlier dislike of it.
func (p *CategoryPreference) LikePOI(poi POI) {
	key := preferenceKey(poi.Category)
	p.mu.Lock()
	defer p.mu.Unlock()
	if key != "" {
		delete(p.avoided, key)
		p.preferred[key] = struct{}{}
	}
	delete(p.dislikedPOIs, poi.ID)
	p.generation++
}

// Generation counts the changes made so far. Results computed under one
// generation are stale once it moves.
func (p *CategoryPreference) Generation() uint64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.generation
}

func (p *CategoryPreference) IsPreferred(category string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.preferred[preferenceKey(category)]
	return ok
}

func (p *CategoryPreference) IsAvoided(category string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.avoided[preferenceKey(category)]
	return ok
}

func (p *CategoryPreference) IsDisliked(poiID string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.dislikedPOIs[poiID]
	return ok
}

// Snapshot returns sorted copies of all sets.
func (p *CategoryPreference) Snapshot() PreferenceSnapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return PreferenceSnapshot{
		Preferred:    sortedKeys(p.preferred),
		Avoided:      sortedKeys(p.avoided),
		DislikedPOIs: sortedKeys(p.dislikedPOIs),
	}
}

// Restore replaces the preference state with the snapshot contents. Avoided
// entries are applied last, so a category listed in both ends up avoided.
func (p *CategoryPreference) Restore(s PreferenceSnapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.preferred = make(map[string]struct{}, len(s.Preferred))
	p.avoided = make(map[string]struct{}, len(s.Avoided))
	p.dislikedPOIs = make(map[string]struct{}, len(s.DislikedPOIs))
	for _, c := range s.Preferred {
		if key := preferenceKey(c); key != "" {
			p.preferred[key] = struct{}{}
		}
	}
	for _, c := range s.Avoided {
		if key := preferenceKey(c); key != "" {
			delete(p.preferred, key)
			p.avoided[key] = struct{}{}
		}
	}
	for _, id := range s.DislikedPOIs {
		if id != "" {
			p.dislikedPOIs[id] = struct{}{}
		}
	}
	p.generation++
}

func sortedKeys(m map[string]struct{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
