// Package scheduler debounces work per key.
//
// Each key owns at most one pending timer. Scheduling a key again cancels
// the pending timer and starts a new one, so a burst of triggers runs the
// last scheduled function once, after the burst has been quiet for the
// delay. Keys are independent.
package scheduler
