package inventory

import (
	"fmt"
	"sort"

	"netinventory/internal/domain"
)

// TopConsumers returns up to n endpoints ordered by total traffic, highest
// first. Ties keep insertion order. Suspensions are refreshed before ranking.
func (inv *Inventory) TopConsumers(n int) []*domain.Endpoint {
	inv.mu.Lock()
	defer inv.mu.Unlock()

	return inv.topLocked(n)
}

// ViewTopConsumers ranks like TopConsumers and passes the ranking to fn
// before the lock is released
func (inv *Inventory) ViewTopConsumers(n int, fn func([]*domain.Endpoint)) {
	inv.mu.Lock()
	defer inv.mu.Unlock()

	fn(inv.topLocked(n))
}

func (inv *Inventory) topLocked(n int) []*domain.Endpoint {
	if n <= 0 {
		return []*domain.Endpoint{}
	}

	inv.refreshLocked()
	eps := inv.endpointsLocked()
	sort.SliceStable(eps, func(i, j int) bool {
		return eps[i].TotalTraffic() > eps[j].TotalTraffic()
	})
	if n < len(eps) {
		eps = eps[:n]
	}
	if eps == nil {
		return []*domain.Endpoint{}
	}
	return eps
}

// ApplyTrafficPolicy suspends every endpoint whose total traffic exceeds
// limitMB and that is not already suspended, for suspendMinutes. It returns
// the endpoints suspended by this call in insertion order. Endpoints that are
// still suspended keep their original expiry.
func (inv *Inventory) ApplyTrafficPolicy(limitMB float64, suspendMinutes int) ([]*domain.Endpoint, error) {
	var affected []*domain.Endpoint
	err := inv.ApplyTrafficPolicyView(limitMB, suspendMinutes, func(eps []*domain.Endpoint) {
		affected = eps
	})
	return affected, err
}

// ApplyTrafficPolicyView runs ApplyTrafficPolicy and hands the suspended
// endpoints to fn under the same lock. fn is not called for a bad duration.
func (inv *Inventory) ApplyTrafficPolicyView(limitMB float64, suspendMinutes int, fn func([]*domain.Endpoint)) error {
	if suspendMinutes <= 0 {
		return fmt.Errorf("%w: %d minutes", domain.ErrInvalidDuration, suspendMinutes)
	}

	inv.mu.Lock()
	defer inv.mu.Unlock()

	now := inv.now()
	affected := []*domain.Endpoint{}
	var err error
	for _, ep := range inv.endpointsLocked() {
		ep.RefreshStatusAt(now)
		if ep.TotalTraffic() > limitMB && !ep.IsSuspendedAt(now) {
			if err = ep.SuspendForAt(suspendMinutes, now); err != nil {
				break
			}
			affected = append(affected, ep)
		}
	}
	fn(affected)
	return err
}
