// Package selection builds eligible challenge pools and runs the two
// selection algorithms: uniform random pick and duration-bounded bundle
// composition.
package selection

import (
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/mrolland/defily/internal/activity"
	"github.com/mrolland/defily/internal/model"
	"github.com/mrolland/defily/internal/store"
)

const (
	// BundleCap is the maximum number of challenges in one bundle.
	BundleCap = 12

	// DefaultLookbackDays is how far back a completion keeps a challenge
	// out of the pool.
	DefaultLookbackDays = 30

	minBundleTries = 6
	maxBundleTries = 24
)

// Config describes one selection request.
type Config struct {
	HouseholdID        model.HouseholdID
	ParticipantIDs     []model.ParticipantID
	Location           string
	Category           string
	PlannedDurationMin *int
	LookbackDays       int // 0 means DefaultLookbackDays
}

// Engine selects challenges for a household under the request constraints.
type Engine struct {
	challenges   *store.ChallengeStore
	history      *store.HistoryStore
	participants *store.ParticipantStore
	events       *activity.Logger
	mu           sync.Mutex
	rng          *rand.Rand
	now          func() time.Time
}

// New creates an Engine. The rng must be non-nil; pass a seeded generator
// for reproducible selections.
func New(cs *store.ChallengeStore, hs *store.HistoryStore, ps *store.ParticipantStore, events *activity.Logger, rng *rand.Rand) *Engine {
	return &Engine{
		challenges:   cs,
		history:      hs,
		participants: ps,
		events:       events,
		rng:          rng,
		now:          time.Now,
	}
}

// *rand.Rand is not safe for concurrent use; all draws go through the mutex
// so overlapping HTTP requests can share one seeded generator.
func (e *Engine) intn(n int) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rng.Intn(n)
}

func (e *Engine) shuffle(n int, swap func(i, j int)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rng.Shuffle(n, swap)
}

// AverageAge returns the mean whole-year age of the given participants,
// rounded to the nearest integer. Zero participants yields 0.
func (e *Engine) AverageAge(ids []model.ParticipantID) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	birthdates, err := e.participants.Birthdates(ids)
	if err != nil {
		return 0, fmt.Errorf("average age: %w", err)
	}
	if len(birthdates) == 0 {
		return 0, nil
	}

	now := e.now()
	sum := 0
	for _, bd := range birthdates {
		sum += wholeYears(bd, now)
	}
	// Round to nearest integer.
	return (sum + len(birthdates)/2) / len(birthdates), nil
}

// wholeYears counts completed years between birthdate and now.
func wholeYears(birthdate, now time.Time) int {
	years := now.Year() - birthdate.Year()
	anniversary := birthdate.AddDate(years, 0, 0)
	if anniversary.After(now) {
		years--
	}
	if years < 0 {
		years = 0
	}
	return years
}

// candidatePool returns shared defaults and household customs merged by id.
// Defaults come first; a custom entry reusing an id replaces the default in
// place, so the list order stays deterministic.
func (e *Engine) candidatePool(householdID model.HouseholdID) ([]model.Challenge, error) {
	defaults, err := e.challenges.ListDefaults()
	if err != nil {
		return nil, fmt.Errorf("candidate pool: %w", err)
	}
	customs, err := e.challenges.ListByHousehold(householdID)
	if err != nil {
		return nil, fmt.Errorf("candidate pool: %w", err)
	}

	pool := make([]model.Challenge, 0, len(defaults)+len(customs))
	index := make(map[model.ChallengeID]int, len(defaults))
	for _, c := range defaults {
		index[c.ID] = len(pool)
		pool = append(pool, c)
	}
	for _, c := range customs {
		if i, ok := index[c.ID]; ok {
			pool[i] = c
			continue
		}
		index[c.ID] = len(pool)
		pool = append(pool, c)
	}
	return pool, nil
}

// excludeRecent drops challenges the household completed within the
// lookback window.
func (e *Engine) excludeRecent(pool []model.Challenge, householdID model.HouseholdID, lookbackDays int) ([]model.Challenge, error) {
	if lookbackDays <= 0 {
		lookbackDays = DefaultLookbackDays
	}
	since := e.now().AddDate(0, 0, -lookbackDays)
	recent, err := e.history.RecentChallengeIDs(householdID, since)
	if err != nil {
		return nil, fmt.Errorf("exclude recent: %w", err)
	}

	kept := pool[:0:0]
	for _, c := range pool {
		if !recent[c.ID] {
			kept = append(kept, c)
		}
	}
	return kept, nil
}

// applyFilters runs the filter pipeline: age range, location, category, max
// duration. Each filter is a no-op when its parameter is absent.
func applyFilters(pool []model.Challenge, avgAge int, hasParticipants bool, location, category string, maxDuration *int) []model.Challenge {
	kept := pool[:0:0]
	loc := Normalize(location)
	cat := Normalize(category)

	for _, c := range pool {
		if hasParticipants {
			ageMin, ageMax := 0, 200
			if c.AgeMin != nil {
				ageMin = *c.AgeMin
			}
			if c.AgeMax != nil {
				ageMax = *c.AgeMax
			}
			if avgAge < ageMin || avgAge > ageMax {
				continue
			}
		}
		if loc != "" && Normalize(c.Location) != loc {
			continue
		}
		if cat != "" && Normalize(c.Category) != cat {
			continue
		}
		if maxDuration != nil {
			// Challenges without a duration only pass when no bound is set.
			if c.DurationMin == nil || *c.DurationMin > *maxDuration {
				continue
			}
		}
		kept = append(kept, c)
	}
	return kept
}

// eligible builds the filtered pool for a request.
func (e *Engine) eligible(cfg Config) ([]model.Challenge, error) {
	pool, err := e.candidatePool(cfg.HouseholdID)
	if err != nil {
		return nil, err
	}
	pool, err = e.excludeRecent(pool, cfg.HouseholdID, cfg.LookbackDays)
	if err != nil {
		return nil, err
	}

	avgAge, err := e.AverageAge(cfg.ParticipantIDs)
	if err != nil {
		return nil, err
	}
	var maxDuration *int
	if cfg.PlannedDurationMin != nil && *cfg.PlannedDurationMin > 0 {
		maxDuration = cfg.PlannedDurationMin
	}
	return applyFilters(pool, avgAge, len(cfg.ParticipantIDs) > 0, cfg.Location, cfg.Category, maxDuration), nil
}

// PickRandom selects one eligible challenge uniformly at random. A nil
// result with a nil error means nothing is eligible.
func (e *Engine) PickRandom(cfg Config) (*model.Challenge, error) {
	pool, err := e.eligible(cfg)
	if err != nil {
		return nil, err
	}
	if len(pool) == 0 {
		e.events.Info(cfg.HouseholdID, "selection_empty", "random pick: none eligible", cfg.ParticipantIDs, "")
		return nil, nil
	}

	chosen := pool[e.intn(len(pool))]
	e.events.Info(cfg.HouseholdID, "selection_random", "random pick", cfg.ParticipantIDs, string(chosen.ID))
	return &chosen, nil
}

// BuildBundle composes a duration-bounded set of challenges. The bounded
// randomized search is an approximate packing heuristic: given a fixed seed
// the result is deterministic, favoring the larger total duration, ties
// broken by item count.
func (e *Engine) BuildBundle(cfg Config) ([]model.Challenge, error) {
	filtered, err := e.eligible(cfg)
	if err != nil {
		return nil, err
	}

	var target *int
	if cfg.PlannedDurationMin != nil && *cfg.PlannedDurationMin > 0 {
		target = cfg.PlannedDurationMin
	}

	timed := filtered[:0:0]
	for _, c := range filtered {
		if c.DurationMin != nil && *c.DurationMin > 0 {
			timed = append(timed, c)
		}
	}

	if target == nil || len(timed) == 0 {
		// Fallback: no duration budget to honor, serve a shuffled slice of
		// whatever passed the filters.
		bundle := make([]model.Challenge, len(filtered))
		copy(bundle, filtered)
		e.shuffle(len(bundle), func(i, j int) {
			bundle[i], bundle[j] = bundle[j], bundle[i]
		})
		if len(bundle) > BundleCap {
			bundle = bundle[:BundleCap]
		}
		e.logBundle(cfg, bundle, "fallback bundle")
		return bundle, nil
	}

	tries := (len(timed) + 1) / 2
	if tries < minBundleTries {
		tries = minBundleTries
	}
	if tries > maxBundleTries {
		tries = maxBundleTries
	}

	var best []model.Challenge
	bestSum := 0

	order := make([]model.Challenge, len(timed))
	for t := 0; t < tries; t++ {
		copy(order, timed)
		if t%3 == 0 {
			sort.SliceStable(order, func(i, j int) bool {
				if *order[i].DurationMin != *order[j].DurationMin {
					return *order[i].DurationMin < *order[j].DurationMin
				}
				return order[i].ID < order[j].ID
			})
		} else {
			e.shuffle(len(order), func(i, j int) {
				order[i], order[j] = order[j], order[i]
			})
		}

		var candidate []model.Challenge
		sum := 0
		for _, c := range order {
			d := *c.DurationMin
			if sum+d > *target || len(candidate) >= BundleCap {
				continue
			}
			candidate = append(candidate, c)
			sum += d
			if sum == *target || len(candidate) == BundleCap {
				break
			}
		}

		if sum > bestSum || (sum == bestSum && len(candidate) > len(best)) {
			best = candidate
			bestSum = sum
		}
		if bestSum == *target || len(best) == BundleCap {
			break
		}
	}

	e.logBundle(cfg, best, fmt.Sprintf("bundle sum %d/%d", bestSum, *target))
	return best, nil
}

func (e *Engine) logBundle(cfg Config, bundle []model.Challenge, context string) {
	ids := make([]string, len(bundle))
	for i, c := range bundle {
		ids[i] = string(c.ID)
	}
	e.events.Log(model.ActivityEvent{
		HouseholdID:    &cfg.HouseholdID,
		ParticipantIDs: cfg.ParticipantIDs,
		Type:           "selection_bundle",
		Level:          activity.LevelInfo,
		Context:        context,
		Details:        fmt.Sprintf("%v", ids),
	})
}
