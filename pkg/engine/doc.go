// Package engine implements the configuration-sync state machine.
//
// One Engine per SDK instance. On Initialize it subscribes to host config
// changes and, per the resolved cfgsync extension block, either broadcasts
// local snapshots on the shared bus (auto-sync), listens for peer updates
// (receive mode), or polls a canonical remote document (fetch mode, entered
// once cfgUrl is observed and latched).
//
// First-write-wins fields (auto-sync, receive mode, cfgUrl) are modelled as
// explicit resolve-once latches. The governing error policy: no public
// operation ever panics or returns an error to the host — failures collapse
// to a false return and a log line.
package engine
