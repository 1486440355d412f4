// Package driven provides interfaces for infrastructure adapters
// (secondary/outbound ports): the PDF extraction, embedding, completion and
// captioning capabilities, and the durable document store.
package driven
