// Package store declares the persistence ports of the task engine and the
// transaction scope shared by every implementation of them.
package store
