// Package poll provides the self-rearming one-shot timer that drives
// periodic configuration fetches.
//
// Unlike a time.Ticker, the scheduler re-arms only after the previous fire
// has dispatched its action, so a slow action cannot accumulate a backlog of
// pending fires, and Stop guarantees no action runs after it returns.
package poll
