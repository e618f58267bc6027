package testutil

import "testing"

// Given, When and Then label nested subtests so a failing step reads as a
// sentence: "Given an empty store/When a new email arrives/Then ...".
func Given(t *testing.T, desc string, fn func(t *testing.T)) bool {
	t.Helper()
	return t.Run("Given "+desc, fn)
}

func When(t *testing.T, desc string, fn func(t *testing.T)) bool {
	t.Helper()
	return t.Run("When "+desc, fn)
}

func Then(t *testing.T, desc string, fn func(t *testing.T)) bool {
	t.Helper()
	return t.Run("Then "+desc, fn)
}

// Runner is implemented by testify suites (suite.Suite.Run).
type Runner interface {
	T() *testing.T
	Run(name string, subtest func()) bool
}

// Scenario labels suite subtests the same way as Given/When/Then.
type Scenario struct {
	r Runner
}

// NewScenario wraps a suite, typically called as testutil.NewScenario(s).
func NewScenario(r Runner) Scenario {
	return Scenario{r: r}
}

func (sc Scenario) Given(desc string, fn func()) bool { return sc.step("Given ", desc, fn) }
func (sc Scenario) When(desc string, fn func()) bool  { return sc.step("When ", desc, fn) }
func (sc Scenario) Then(desc string, fn func()) bool  { return sc.step("Then ", desc, fn) }

func (sc Scenario) step(prefix, desc string, fn func()) bool {
	sc.r.T().Helper()
	return sc.r.Run(prefix+desc, fn)
}
