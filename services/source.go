package services

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"roadtrip-server/models"
)

// ErrSourceUnavailable marks failures of a candidate source (network, missing
// credentials, model errors). The orchestrator absorbs these as "no
// candidates from this source".
var ErrSourceUnavailable = errors.New("candidate source unavailable")

// SourceQuery is what the orchestrator asks every candidate source.
type SourceQuery struct {
	Origin       models.GeoPoint
	Category     string
	RadiusMeters float64
	MaxResults   int
}

// CandidateSource produces raw POI candidates for a query. Implementations
// must honor ctx cancellation and stamp every POI with their Kind.
type CandidateSource interface {
	Name() string
	Kind() models.Source
	Candidates(ctx context.Context, q SourceQuery) ([]models.POI, error)
}

// CombinedSource fans a query out to several sources concurrently and
// concatenates their results in member order.
type CombinedSource struct {
	name    string
	kind    models.Source
	members []CandidateSource
}

// CombineSources groups sources of one kind. It fails only if every member
// fails.
func CombineSources(name string, kind models.Source, members ...CandidateSource) *CombinedSource {
	return &CombinedSource{name: name, kind: kind, members: members}
}

func (c *CombinedSource) Name() string        { return c.name }
func (c *CombinedSource) Kind() models.Source { return c.kind }

func (c *CombinedSource) Candidates(ctx context.Context, q SourceQuery) ([]models.POI, error) {
	if len(c.members) == 0 {
		return nil, fmt.Errorf("%s: no members: %w", c.name, ErrSourceUnavailable)
	}

	results := make([][]models.POI, len(c.members))
	var (
		mu   sync.Mutex
		errs []error
	)

	var g errgroup.Group
	for i, member := range c.members {
		g.Go(func() error {
			pois, err := member.Candidates(ctx, q)
			if err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("%s: %w", member.Name(), err))
				mu.Unlock()
				return nil
			}
			results[i] = pois
			return nil
		})
	}
	_ = g.Wait()

	if len(errs) == len(c.members) {
		return nil, errors.Join(errs...)
	}

	var out []models.POI
	for _, pois := range results {
		for _, p := range pois {
			p.Source = c.kind
			out = append(out, p)
		}
	}
	return out, nil
}
