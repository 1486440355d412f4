package domain

// RetrievedChunk is a single retrieval hit: a chunk together with its
// cosine distance from the query vector. Lower distance is closer.
type RetrievedChunk struct {
	// Chunk is the matched chunk.
	Chunk Chunk

	// Document is the owning document, hydrated for citation.
	Document Document

	// Distance is the cosine distance between the query vector and the
	// chunk embedding (0 identical, 2 opposite).
	Distance float64
}

// RetrievalOptions configures a retrieval query.
type RetrievalOptions struct {
	// TopK is the maximum number of chunks to return. Must be positive.
	TopK int

	// DocumentID restricts candidates to one document when non-empty.
	DocumentID string
}

// Answer is the result of asking a question against the corpus.
type Answer struct {
	// Text is the generated answer. Empty when no completion service is
	// configured.
	Text string

	// Sources are the ranked chunks the answer was grounded on.
	Sources []RetrievedChunk
}
