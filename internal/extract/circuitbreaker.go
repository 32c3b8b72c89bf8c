package extract

import (
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// providerHealth tracks one provider's recent call outcomes and decides
// whether the dispatcher should still try it or skip straight to the
// next provider in the fallback order. Adapted from the teacher's CLI
// circuit breaker (internal/worker/sdk/processor.go's CircuitBreaker)
// to HTTP provider calls — same trip/cooldown/probe state machine,
// framed around provider availability instead of a generic "circuit".
type providerHealth struct {
	name            string
	consecutiveFail int64
	trippedAt       int64
	failThreshold   int64
	cooldown        int64
	state           int32
	log             zerolog.Logger
}

const (
	providerAvailable   int32 = 0 // taking calls normally
	providerUnavailable int32 = 1 // tripped; calls skipped until cooldown elapses
	providerProbing     int32 = 2 // cooldown elapsed; one call allowed to test recovery
)

func newProviderHealth(name string, failThreshold, cooldownSeconds int64, log zerolog.Logger) *providerHealth {
	return &providerHealth{name: name, failThreshold: failThreshold, cooldown: cooldownSeconds, log: log}
}

// Allow reports whether the dispatcher should still route a call to
// this provider.
func (p *providerHealth) Allow() bool {
	state := atomic.LoadInt32(&p.state)
	if state == providerAvailable {
		return true
	}
	if state == providerUnavailable {
		trippedAt := atomic.LoadInt64(&p.trippedAt)
		if time.Now().Unix()-trippedAt > p.cooldown {
			atomic.CompareAndSwapInt32(&p.state, providerUnavailable, providerProbing)
			return true
		}
		return false
	}
	return true // probing: let the one in-flight call through
}

// RecordSuccess clears the failure count and restores normal routing.
func (p *providerHealth) RecordSuccess() {
	atomic.StoreInt64(&p.consecutiveFail, 0)
	atomic.StoreInt32(&p.state, providerAvailable)
}

// RecordFailure counts a failed call and trips the provider once
// consecutive failures reach failThreshold.
func (p *providerHealth) RecordFailure() {
	fails := atomic.AddInt64(&p.consecutiveFail, 1)
	atomic.StoreInt64(&p.trippedAt, time.Now().Unix())
	if fails >= p.failThreshold {
		if atomic.SwapInt32(&p.state, providerUnavailable) != providerUnavailable {
			p.log.Warn().Str("provider", p.name).Int64("consecutive_failures", fails).Msg("provider tripped, routing around it until cooldown elapses")
		}
	}
}

// State reports the provider's current health as a string, for status
// endpoints and logging.
func (p *providerHealth) State() string {
	switch atomic.LoadInt32(&p.state) {
	case providerUnavailable:
		return "unavailable"
	case providerProbing:
		return "probing"
	default:
		return "available"
	}
}
