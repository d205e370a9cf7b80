package workservice

import "github.com/entropyengine/workservice/group"

// MainThreadResult is the outcome of an ExecuteMainThreadWork call.
type MainThreadResult struct {
	// Executed is the total number of main-thread contracts run.
	Executed int
	// GroupsTouched is how many distinct groups yielded at least one
	// executed contract.
	GroupsTouched int
	// MoreAvailable is true if the max budget was used up; otherwise it is
	// true if any group still reports pending main-thread work.
	MoreAvailable bool
}

// ExecuteMainThreadWork drains up to max main-thread-restricted
// contracts across every registered group, in registry order. Must only
// be called from the application's designated main goroutine; it is not
// safe against concurrent calls to itself, but is safe against
// concurrent worker execution.
func (s *Service) ExecuteMainThreadWork(max int) MainThreadResult {
	groups := s.reg.Snapshot()

	remaining := max
	result := MainThreadResult{}

	for _, g := range groups {
		if remaining <= 0 {
			break
		}
		if !g.HasMainThreadWork() {
			continue
		}
		n := g.ExecuteMainThreadWork(remaining)
		if n > 0 {
			result.Executed += n
			result.GroupsTouched++
			remaining -= n
		}
	}

	if remaining <= 0 {
		result.MoreAvailable = true
	} else {
		for _, g := range groups {
			if g.HasMainThreadWork() {
				result.MoreAvailable = true
				break
			}
		}
	}

	return result
}

// ExecuteMainThreadWorkFor drains up to max main-thread-restricted
// contracts from a single group and returns the count executed.
func (s *Service) ExecuteMainThreadWorkFor(g group.Group, max int) int {
	if !g.HasMainThreadWork() {
		return 0
	}
	return g.ExecuteMainThreadWork(max)
}

// HasMainThreadWork reports whether any registered group currently has
// pending main-thread-restricted work.
func (s *Service) HasMainThreadWork() bool {
	for _, g := range s.reg.Snapshot() {
		if g.HasMainThreadWork() {
			return true
		}
	}
	return false
}
