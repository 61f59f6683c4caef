// Package domain contains the core business entities, value objects, and
// domain logic of the application: recurrence rules, the tasks they expand
// into, per-user flow plannings, and the validation primitives shared by the
// services that mutate them.
package domain
