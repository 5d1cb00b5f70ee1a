package integrations

import (
	"sync"
	"time"

	"github.com/cenk/backoff"
	circuit "github.com/rubyist/circuitbreaker"
)

// tripThreshold is the number of consecutive failures that opens a breaker.
const tripThreshold = 5

// Breakers holds one circuit breaker per upstream host. A breaker opens after
// tripThreshold consecutive failures and half-opens on an exponential
// schedule starting at 30 seconds.
type Breakers struct {
	mu       sync.RWMutex
	breakers map[string]*circuit.Breaker
}

// NewBreakers creates an empty breaker table.
func NewBreakers() *Breakers {
	return &Breakers{breakers: make(map[string]*circuit.Breaker)}
}

func (b *Breakers) get(host string) *circuit.Breaker {
	b.mu.RLock()
	br, ok := b.breakers[host]
	b.mu.RUnlock()
	if ok {
		return br
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if br, ok := b.breakers[host]; ok {
		return br
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = 30 * time.Second
	eb.MaxInterval = 5 * time.Minute
	eb.Multiplier = 2.0
	eb.Reset()

	br = circuit.NewBreakerWithOptions(&circuit.Options{
		BackOff:    eb,
		ShouldTrip: circuit.ThresholdTripFunc(tripThreshold),
	})
	b.breakers[host] = br
	return br
}

// State reports "open" or "closed" for every host seen so far.
func (b *Breakers) State() map[string]string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	states := make(map[string]string, len(b.breakers))
	for host, br := range b.breakers {
		if br.Tripped() {
			states[host] = "open"
		} else {
			states[host] = "closed"
		}
	}
	return states
}
