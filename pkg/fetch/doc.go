// Package fetch retrieves remote configuration documents and delivers the
// raw response text to a completion callback.
//
// Two built-in strategies share one callback contract: the strict strategy
// (default) delivers only structurally-OK responses, the lenient strategy
// delivers any terminal response with whatever status and body are
// available. A user-supplied Sender overrides both. Network and read
// failures never reach the caller — the callback is simply not invoked.
package fetch
