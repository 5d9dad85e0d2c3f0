package models

// Source records which kind of candidate source produced a POI.
type Source string

const (
	SourceLocal  Source = "LOCAL"
	SourceRemote Source = "REMOTE"
)

// GeoPoint is a WGS84 coordinate pair.
type GeoPoint struct {
	Latitude  float64 `json:"lat" bson:"lat"`
	Longitude float64 `json:"lon" bson:"lon"`
}

// POI is a discovery candidate. It is built fresh for every request and must
// not be mutated once returned in a DiscoveryResult.
type POI struct {
	ID             string   `json:"id" bson:"_id,omitempty"`
	Name           string   `json:"name" bson:"name"`
	Category       string   `json:"category" bson:"category"`
	Location       GeoPoint `json:"location" bson:"location"`
	DistanceMeters float64  `json:"distance_meters" bson:"-"`
	Rating         float64  `json:"rating" bson:"rating"`
	ReviewCount    int      `json:"review_count" bson:"review_count"`
	PriceLevel     *int     `json:"price_level,omitempty" bson:"price_level,omitempty"`
	Source         Source   `json:"source" bson:"source"`
	Photos         []string `json:"photos" bson:"photos"`
	Description    string   `json:"description,omitempty" bson:"description,omitempty"`
	ReviewSummary  string   `json:"review_summary,omitempty" bson:"review_summary,omitempty"`
	Address        string   `json:"address,omitempty" bson:"address,omitempty"`
	Phone          string   `json:"phone,omitempty" bson:"phone,omitempty"`
	Website        string   `json:"website,omitempty" bson:"website,omitempty"`
	Tags           []string `json:"tags,omitempty" bson:"tags,omitempty"`
	Score          float64  `json:"score" bson:"-"`
}

// ClonePOIs returns a copy of pois whose slices are not shared with the input.
func ClonePOIs(pois []POI) []POI {
	if pois == nil {
		return nil
	}
	out := make([]POI, len(pois))
	for i, p := range pois {
		out[i] = p
		if p.Photos != nil {
			out[i].Photos = append([]string(nil), p.Photos...)
		}
		if p.Tags != nil {
			out[i].Tags = append([]string(nil), p.Tags...)
		}
		if p.PriceLevel != nil {
			level := *p.PriceLevel
			out[i].PriceLevel = &level
		}
	}
	return out
}
