package testgroup

import "github.com/entropyengine/workservice/group"

// Fixed is a fixed-shape group.Group used to exercise scheduler
// strategies in isolation, without any of Group's queueing behavior: its
// ready/executing counts are set directly by the test and never change
// on their own.
type Fixed struct {
	ReadyN     int
	ExecutingN int
	Stopping   bool

	Provider group.ConcurrencyProvider
}

func (f *Fixed) ReadyCount() int     { return f.ReadyN }
func (f *Fixed) ExecutingCount() int { return f.ExecutingN }
func (f *Fixed) IsStopping() bool    { return f.Stopping }

func (f *Fixed) SelectForExecution() (group.Contract, bool) {
	if f.ReadyN <= 0 {
		return nil, false
	}
	f.ReadyN--
	f.ExecutingN++
	return &contract{}, true
}

func (f *Fixed) ExecuteContract(group.Contract) {}

func (f *Fixed) CompleteExecution(group.Contract) {
	f.ExecutingN--
}

func (f *Fixed) HasMainThreadWork() bool            { return false }
func (f *Fixed) ExecuteMainThreadWork(int) int      { return 0 }
func (f *Fixed) SetConcurrencyProvider(p group.ConcurrencyProvider) {
	f.Provider = p
}
