package engine

import "github.com/pmoerman/quadbot/internal/domain"

// Clash reports whether any leg of the path touches an exchange/market/coin
// combination already claimed in seen, and claims the path's own
// combinations either way. Two paths sharing a combination would race each
// other's balances, so only the first one scheduled in a round may run.
func Clash(p *domain.Path, seen map[domain.LegKey]struct{}) bool {
	clash := false
	for step := 1; step <= 4; step++ {
		key := p.Key(step)
		if _, ok := seen[key]; ok {
			clash = true
			continue
		}
		seen[key] = struct{}{}
	}
	return clash
}

// Paused reports whether any leg of the path is under an active trading
// pause, returning the first paused key found.
func Paused(p *domain.Path, paused map[domain.LegKey]struct{}) (domain.LegKey, bool) {
	for step := 1; step <= 4; step++ {
		key := p.Key(step)
		if _, ok := paused[key]; ok {
			return key, true
		}
	}
	return domain.LegKey{}, false
}
