// Package events carries change notifications from services to subscribers.
//
// Services depend on the Publisher port only. The Dispatcher implements it by
// queueing serialized ChangeEvents and delivering them on a small worker pool
// to an EventEmitter, which fans each event out to registered handlers.
// Publishing never waits for delivery, so a slow or failing subscriber cannot
// hold a committed transaction hostage.
package events
