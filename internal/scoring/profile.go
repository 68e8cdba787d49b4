package scoring

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// Sub-score names.
const (
	Technical    = "technical"
	Bandarmology = "bandarmology"
	Sentiment    = "sentiment"
	Whale        = "whale"
	Liquidity    = "liquidity"
	Momentum     = "momentum"
)

// Weight assigns a share of the total score to one sub-score.
type Weight struct {
	Name   string
	Weight float64
}

// Profile is a named weighting preset. Weights sum to 1 and their order is
// the order of sub-scores in a recommendation.
type Profile struct {
	Name    string
	Weights []Weight
}

var profiles = map[string]Profile{
	"full": {Name: "full", Weights: []Weight{
		{Technical, 0.25},
		{Bandarmology, 0.25},
		{Sentiment, 0.20},
		{Whale, 0.15},
		{Liquidity, 0.15},
	}},
	"sentiment_heavy": {Name: "sentiment_heavy", Weights: []Weight{
		{Technical, 0.20},
		{Bandarmology, 0.20},
		{Sentiment, 0.30},
		{Whale, 0.15},
		{Liquidity, 0.15},
	}},
	"basic": {Name: "basic", Weights: []Weight{
		{Technical, 0.40},
		{Bandarmology, 0.40},
		{Momentum, 0.20},
	}},
}

// ProfileByName returns the preset with the given name.
func ProfileByName(name string) (Profile, error) {
	p, ok := profiles[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Profile{}, fmt.Errorf("unknown scoring profile %q (have %s)", name, strings.Join(ProfileNames(), ", "))
	}
	return p, nil
}

// ProfileNames lists the presets in alphabetical order.
func ProfileNames() []string {
	names := make([]string, 0, len(profiles))
	for n := range profiles {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Validate checks that weights are non-negative, unique and sum to 1.
func (p Profile) Validate() error {
	if len(p.Weights) == 0 {
		return fmt.Errorf("profile %q has no weights", p.Name)
	}
	seen := map[string]bool{}
	sum := 0.0
	for _, w := range p.Weights {
		if w.Weight < 0 {
			return fmt.Errorf("profile %q: negative weight for %s", p.Name, w.Name)
		}
		if seen[w.Name] {
			return fmt.Errorf("profile %q: duplicate weight for %s", p.Name, w.Name)
		}
		seen[w.Name] = true
		sum += w.Weight
	}
	if math.Abs(sum-1) > 1e-9 {
		return fmt.Errorf("profile %q: weights sum to %.4f, want 1", p.Name, sum)
	}
	return nil
}

// Weight returns the weight of a sub-score, zero when the profile ignores it.
func (p Profile) Weight(name string) float64 {
	for _, w := range p.Weights {
		if w.Name == name {
			return w.Weight
		}
	}
	return 0
}
