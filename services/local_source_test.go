package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roadtrip-server/logger"
	"roadtrip-server/models"
)

// scriptedModel replies with canned text, in order, and records prompts.
type scriptedModel struct {
	replies []string
	err     error
	prompts []string
}

func (m *scriptedModel) Generate(ctx context.Context, prompt string) (string, error) {
	m.prompts = append(m.prompts, prompt)
	if m.err != nil {
		return "", m.err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if len(m.replies) == 0 {
		return "", nil
	}
	reply := m.replies[0]
	if len(m.replies) > 1 {
		m.replies = m.replies[1:]
	}
	return reply, nil
}

const localReply = `Here are some options:
[
  {"name": "Lost Lake Lodge", "category": "lodging", "latitude": 45.4990, "longitude": -121.8190,
   "rating": 4.6, "review_count": 320, "price_level": 2, "description": "Cabins on the lake."},
  {"name": "", "category": "cafe", "latitude": 45.5, "longitude": -121.8},
  {"name": "Nowhere Diner", "category": "restaurant", "latitude": 0, "longitude": 0},
  {"name": "Bad Coords", "category": "park", "latitude": 123, "longitude": -121.8},
  {"name": "Tamanawas Falls", "category": "waterfall", "latitude": 45.3950, "longitude": -121.5680,
   "rating": 7.2, "review_count": -4, "price_level": 9}
]`

func TestLocalSource_Candidates(t *testing.T) {
	model := &scriptedModel{replies: []string{localReply}}
	src := NewLocalSource(model, logger.Discard())

	pois, err := src.Candidates(context.Background(), SourceQuery{
		Origin:       lostLake,
		Category:     "hotel",
		RadiusMeters: 8000,
		MaxResults:   10,
	})
	require.NoError(t, err)
	require.Len(t, pois, 2)

	lodge := pois[0]
	assert.Equal(t, "Lost Lake Lodge", lodge.Name)
	assert.Equal(t, "hotel", lodge.Category)
	assert.Equal(t, models.SourceLocal, lodge.Source)
	assert.True(t, strings.HasPrefix(lodge.ID, "local-"))
	require.NotNil(t, lodge.PriceLevel)
	assert.Equal(t, 2, *lodge.PriceLevel)

	falls := pois[1]
	assert.Equal(t, 5.0, falls.Rating)
	assert.Equal(t, 0, falls.ReviewCount)
	assert.Nil(t, falls.PriceLevel)
	assert.Equal(t, "Waterfall", falls.Category)

	require.Len(t, model.prompts, 1)
	assert.Contains(t, model.prompts[0], "hotel")
	assert.Contains(t, model.prompts[0], "8 km")
}

func TestLocalSource_RespectsMaxResults(t *testing.T) {
	src := NewLocalSource(&scriptedModel{replies: []string{localReply}}, logger.Discard())
	pois, err := src.Candidates(context.Background(), SourceQuery{Origin: lostLake, RadiusMeters: 8000, MaxResults: 1})
	require.NoError(t, err)
	assert.Len(t, pois, 1)
}

func TestLocalSource_ModelFailure(t *testing.T) {
	src := NewLocalSource(&scriptedModel{err: errors.New("connection reset")}, logger.Discard())
	_, err := src.Candidates(context.Background(), SourceQuery{Origin: lostLake, RadiusMeters: 8000})
	assert.ErrorIs(t, err, ErrSourceUnavailable)

	_, err = NewLocalSource(nil, logger.Discard()).Candidates(context.Background(), SourceQuery{})
	assert.ErrorIs(t, err, ErrSourceUnavailable)
}

func TestLocalSource_UnusableReply(t *testing.T) {
	src := NewLocalSource(&scriptedModel{replies: []string{"I don't know any places there."}}, logger.Discard())
	pois, err := src.Candidates(context.Background(), SourceQuery{Origin: lostLake, RadiusMeters: 8000})
	require.NoError(t, err)
	assert.Empty(t, pois)
}

func TestLocalPOIID_Stable(t *testing.T) {
	a := LocalPOIID("Lost Lake Lodge", 45.49901, -121.81899)
	b := LocalPOIID("  lost lake lodge ", 45.49904, -121.81902)
	c := LocalPOIID("Lost Lake Lodge", 45.6, -121.8)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}
