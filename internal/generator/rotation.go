package generator

import (
	"fmt"
	"math/rand/v2"

	"github.com/ginjaninja78/docbatch/internal/config"
)

// Rotation selects the company for each batch and counts how many
// documents every company has received so far.
type Rotation interface {
	// Next returns the company for the next batch and records its use.
	Next() string
	// Usage returns how many times company has been returned by Next.
	Usage(company string) int
}

// NewRotation builds the strategy named by strategy over companies.
// Companies are de-duplicated keeping the first occurrence.
func NewRotation(strategy string, companies []string, rng *rand.Rand) (Rotation, error) {
	unique := dedupe(companies)
	if len(unique) == 0 {
		return nil, fmt.Errorf("no companies to rotate")
	}

	switch strategy {
	case config.RotationAvoidRepeat, "":
		pool := make([]string, len(unique))
		copy(pool, unique)
		return &avoidRepeat{
			all:   unique,
			pool:  pool,
			usage: make(map[string]int, len(unique)),
			rng:   rng,
		}, nil
	case config.RotationRoundRobin:
		return &roundRobin{
			all:   unique,
			usage: make(map[string]int, len(unique)),
		}, nil
	default:
		return nil, fmt.Errorf("unknown rotation strategy %q", strategy)
	}
}

// avoidRepeat draws uniformly from the companies not used yet. Once every
// company has been used it draws uniformly from all of them.
type avoidRepeat struct {
	all   []string
	pool  []string
	usage map[string]int
	rng   *rand.Rand
}

func (r *avoidRepeat) Next() string {
	var company string
	if len(r.pool) > 0 {
		i := r.rng.IntN(len(r.pool))
		company = r.pool[i]
		r.pool = append(r.pool[:i], r.pool[i+1:]...)
	} else {
		company = r.all[r.rng.IntN(len(r.all))]
	}
	r.usage[company]++
	return company
}

func (r *avoidRepeat) Usage(company string) int { return r.usage[company] }

// roundRobin cycles through the companies in table order.
type roundRobin struct {
	all   []string
	next  int
	usage map[string]int
}

func (r *roundRobin) Next() string {
	company := r.all[r.next]
	r.next = (r.next + 1) % len(r.all)
	r.usage[company]++
	return company
}

func (r *roundRobin) Usage(company string) int { return r.usage[company] }

func dedupe(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
