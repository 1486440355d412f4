// Package driving provides interfaces for the application's entry points
// (primary/inbound ports): document registration, pipeline stage runs and
// question answering. The CLI and the inbox watcher call these.
package driving
