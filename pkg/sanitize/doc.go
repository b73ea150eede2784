// Package sanitize strips protected keys from an incoming configuration tree
// before it is applied locally.
//
// A peer or remote document may carry any configuration it likes, but keys
// marked protected (by default instrumentationKey, connectionString and
// endpointUrl) are dropped at every nesting level down to MaxLevels — the
// whole subtree under a protected key is omitted, not merged. Deeper
// subtrees are copied verbatim.
package sanitize
