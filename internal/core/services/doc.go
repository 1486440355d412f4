// Package services implements the pipeline use cases behind the driving
// ports: registration, structuring, captioning, chunking and embedding,
// retrieval and question answering. Services depend only on domain types
// and driven ports; adapters are injected at construction.
package services
