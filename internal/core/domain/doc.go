// Package domain contains the core business entities and rules for the
// document processing pipeline: documents and their owned blocks, chunks and
// assets, the per-document status machine, retrieval results, and the error
// taxonomy shared across services and adapters.
//
// The package has no dependencies on adapters or external services.
package domain
