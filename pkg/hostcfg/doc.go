// Package hostcfg models the host SDK's live configuration system: a
// mutable tree with change notifications, namespaced extension sub-configs,
// and partial deep-merge updates.
//
// Store is the in-memory tree. OnChange fires once immediately on
// registration and again after every effective mutation; UpdateConfig that
// changes nothing notifies nobody, which breaks broadcast/receive feedback
// loops between instances. Watch feeds a Store from a YAML or JSON file via
// fsnotify, handling the rename→create pattern used by atomic-save editors.
package hostcfg
