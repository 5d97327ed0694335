package ldap

import (
	"math/rand"
	"sync"
)

// Selector chooses the directory endpoint to contact for one attempt.
// Implementations never fail; a misconfigured selector is a startup error,
// not a per-call one.
type Selector interface {
	Next() string
}

// RandomSelector picks uniformly at random among the configured controllers
// on every call. Draws are independent: there is no round-robin memory and a
// controller that just failed may be drawn again immediately. When no
// controllers are configured it always returns the fallback address.
//
// Directory services are commonly deployed with multiple redundant
// controllers that can be individually slow or briefly unreachable; random
// selection per attempt gives effective failover without health tracking.
type RandomSelector struct {
	controllers []string
	fallback    string

	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandomSelector builds a selector over the given controllers with the
// fallback address used when the list is empty. The seed makes endpoint
// order reproducible in tests; production callers seed from the clock.
func NewRandomSelector(controllers []string, fallback string, seed int64) *RandomSelector {
	cs := make([]string, 0, len(controllers))
	for _, c := range controllers {
		if c != "" {
			cs = append(cs, c)
		}
	}
	return &RandomSelector{
		controllers: cs,
		fallback:    fallback,
		rng:         rand.New(rand.NewSource(seed)),
	}
}

// Next returns the endpoint for the next attempt.
func (s *RandomSelector) Next() string {
	if len(s.controllers) == 0 {
		return s.fallback
	}
	s.mu.Lock()
	i := s.rng.Intn(len(s.controllers))
	s.mu.Unlock()
	return s.controllers[i]
}

// Endpoints returns the addresses the selector draws from.
func (s *RandomSelector) Endpoints() []string {
	if len(s.controllers) == 0 {
		return []string{s.fallback}
	}
	out := make([]string, len(s.controllers))
	copy(out, s.controllers)
	return out
}
