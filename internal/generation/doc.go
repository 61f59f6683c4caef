// Package generation materializes the occurrences of recurring task rules.
//
// A Generator expands a rule over a date range into new tasks, consulting an
// OccurrenceIndex so that repeated expansion over overlapping ranges never
// creates a second task for the same user and date. Shared rules merge users
// into their single per-date task instead of creating one task per user.
//
// A Horizon keeps each rule's generatedUntil high-water mark moving forward by
// a bounded window, persisting the generated tasks and the new mark in one
// transaction per rule.
package generation
