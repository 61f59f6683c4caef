// Package mocks provides centralized mock implementations for testing.
//
// The store mocks are in-memory implementations of the store interfaces that
// hold cloned entities, so callers never share memory with stored state. Each
// offers FailOn to inject an error into a named method. MockTransactor works
// with them: it snapshots every registered store when the outermost
// transaction begins and restores the snapshot on rollback, which lets service
// tests observe all-or-nothing behavior without a database.
//
// The service mocks are function-field fakes for the api handlers, and
// MockJWTService is a token table for the auth middleware.
//
// Usage:
//
//	rules := mocks.NewMockRuleStore()
//	tasks := mocks.NewMockTaskStore()
//	tx := mocks.NewMockTransactor(rules, tasks)
//
//	tasks.FailOn("CreateMultiple", errors.New("boom"))
//	// ... exercise a service, then assert tx.Rollbacks == 1
//
// When adding a new mock to this package:
//  1. Create a new file named after the interface being mocked
//  2. Add a compile-time assertion that the mock satisfies the interface
//  3. Implement Snapshotter if the mock holds state a transaction may touch
package mocks
