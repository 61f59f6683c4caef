package domain

// CheckResult is the outcome of a single validation predicate.
type CheckResult struct {
	Passed  bool
	Message string
}

// Check is a lazily evaluated validation predicate.
type Check func() CheckResult

// Pass is a check that always succeeds.
func Pass() Check {
	return func() CheckResult { return CheckResult{Passed: true} }
}

// Require passes when cond is true and otherwise fails with message.
func Require(cond bool, message string) Check {
	return func() CheckResult {
		if cond {
			return CheckResult{Passed: true}
		}
		return CheckResult{Message: message}
	}
}

// RequireFunc is Require with a deferred condition, for checks that are only
// safe to evaluate after earlier checks have passed.
func RequireFunc(cond func() bool, message string) Check {
	return func() CheckResult {
		if cond() {
			return CheckResult{Passed: true}
		}
		return CheckResult{Message: message}
	}
}

// All passes when every check passes. The first failure wins and later checks
// are not evaluated.
func All(checks ...Check) Check {
	return func() CheckResult {
		for _, c := range checks {
			if r := c(); !r.Passed {
				return r
			}
		}
		return CheckResult{Passed: true}
	}
}

// Any passes as soon as one check passes. When none pass, the first failure's
// message is reported.
func Any(checks ...Check) Check {
	return func() CheckResult {
		var first *CheckResult
		for _, c := range checks {
			r := c()
			if r.Passed {
				return r
			}
			if first == nil {
				first = &r
			}
		}
		if first == nil {
			return CheckResult{Passed: true}
		}
		return *first
	}
}

// Not inverts a check, failing with message when c passes.
func Not(c Check, message string) Check {
	return func() CheckResult {
		if c().Passed {
			return CheckResult{Message: message}
		}
		return CheckResult{Passed: true}
	}
}

// If evaluates then only when cond holds; otherwise it passes.
func If(cond bool, then Check) Check {
	return func() CheckResult {
		if !cond {
			return CheckResult{Passed: true}
		}
		return then()
	}
}

// Validate runs c and converts a failure into a *ValidationError.
func Validate(c Check) error {
	if r := c(); !r.Passed {
		return NewValidationError(r.Message)
	}
	return nil
}
