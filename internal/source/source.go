// Package source produces command intents: built from operator input, sampled
// at random, or generated by scripted scenarios.
package source

import (
	"errors"
	"fmt"
	"math/rand/v2"

	"coach-event-generator/internal/core"
)

var ErrUnknownKind = errors.New("unknown intent kind")

// Params carries the pre-validated arguments of a manual intent. Fields a kind
// does not use are ignored.
type Params struct {
	Cabin       core.CabinID
	On          bool
	Temperature int
}

// Manual builds an intent of the given kind. The parameters are assumed to have
// been range-checked by the caller.
func Manual(kind core.Kind, p Params) (core.Intent, error) {
	switch kind {
	case core.KindLight:
		return core.Light{Cabin: p.Cabin, State: core.LightState(p.On)}, nil
	case core.KindTemperature:
		return core.Temperature{Cabin: p.Cabin, Value: p.Temperature}, nil
	case core.KindEmergency:
		return core.Emergency{Cabin: p.Cabin}, nil
	case core.KindFire:
		return core.Fire{Cabin: p.Cabin}, nil
	case core.KindPowerLow:
		return core.PowerLow{}, nil
	case core.KindChainPull:
		return core.ChainPull{}, nil
	case core.KindStatusRequest:
		return core.StatusRequest{}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
}

// Rand is the subset of *rand.Rand the sampler needs.
type Rand interface {
	IntN(n int) int
}

// globalRand draws from the process-wide source.
type globalRand struct{}

func (globalRand) IntN(n int) int { return rand.IntN(n) }

// randomKinds are the cabin-scoped kinds eligible for random sampling.
// Link-wide events are never produced at random.
var randomKinds = [...]core.Kind{
	core.KindLight,
	core.KindTemperature,
	core.KindEmergency,
	core.KindFire,
}

// RandomIntent samples a cabin uniformly from [0, cabinCount), then a kind from
// randomKinds, then the kind's argument. A nil rng uses the process-wide source.
// cabinCount must be positive.
func RandomIntent(rng Rand, cabinCount int) core.Intent {
	if rng == nil {
		rng = globalRand{}
	}

	cabin := core.CabinID(rng.IntN(cabinCount))
	switch randomKinds[rng.IntN(len(randomKinds))] {
	case core.KindLight:
		return core.Light{Cabin: cabin, State: core.LightState(rng.IntN(2) == 1)}
	case core.KindTemperature:
		v := core.MinTemperature + rng.IntN(core.MaxTemperature-core.MinTemperature+1)
		return core.Temperature{Cabin: cabin, Value: v}
	case core.KindEmergency:
		return core.Emergency{Cabin: cabin}
	default:
		return core.Fire{Cabin: cabin}
	}
}

// Source samples random intents for a fixed coach size.
type Source struct {
	rng    Rand
	cabins int
}

// New creates a Source. A seed of zero uses the process-wide random source;
// any other seed makes the sequence reproducible.
func New(cabinCount int, seed uint64) (*Source, error) {
	if cabinCount < 1 {
		return nil, fmt.Errorf("cabin count must be positive, got %d", cabinCount)
	}
	s := &Source{cabins: cabinCount}
	if seed != 0 {
		s.rng = rand.New(rand.NewPCG(seed, seed))
	}
	return s, nil
}

// NewWithRand creates a Source drawing from rng.
func NewWithRand(cabinCount int, rng Rand) *Source {
	return &Source{rng: rng, cabins: cabinCount}
}

// Random returns one random intent.
func (s *Source) Random() core.Intent {
	return RandomIntent(s.rng, s.cabins)
}

// Cabins returns the coach size the source samples from.
func (s *Source) Cabins() int {
	return s.cabins
}
