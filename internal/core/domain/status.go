package domain

import "fmt"

// DocumentStatus is the authoritative pipeline state of a document.
// Statuses form a strict order; a status never regresses except through
// explicit reprocessing of an earlier stage with overwrite.
type DocumentStatus string

// Document statuses, in pipeline order.
const (
	// StatusPending is the initial state, set at registration.
	StatusPending DocumentStatus = "pending"

	// StatusParsed means structuring completed and blocks are stored.
	StatusParsed DocumentStatus = "parsed"

	// StatusCaptioned means asset captioning completed.
	StatusCaptioned DocumentStatus = "captioned"

	// StatusChunked is the terminal success state: chunks and embeddings
	// are stored and the document is searchable.
	StatusChunked DocumentStatus = "chunked"
)

// statusRank orders statuses for prerequisite checks.
var statusRank = map[DocumentStatus]int{
	StatusPending:   0,
	StatusParsed:    1,
	StatusCaptioned: 2,
	StatusChunked:   3,
}

// Valid reports whether s is a member of the closed status enumeration.
func (s DocumentStatus) Valid() bool {
	_, ok := statusRank[s]
	return ok
}

// AtLeast reports whether s is at or beyond other in pipeline order.
func (s DocumentStatus) AtLeast(other DocumentStatus) bool {
	return statusRank[s] >= statusRank[other]
}

// Stage identifies one phase of the ingestion pipeline. Each stage has a
// prerequisite status that must already be reached and a success status it
// advances the document to.
type Stage string

// Pipeline stages.
const (
	StageStructuring Stage = "structuring"
	StageCaptioning  Stage = "captioning"
	StageChunkEmbed  Stage = "chunk_and_embed"
)

// stageRule holds the transition table entry for a stage.
type stageRule struct {
	prerequisite DocumentStatus
	success      DocumentStatus
}

// Chunking requires parsed or later: captioning is optional and may be
// skipped without blocking embedding.
var stageRules = map[Stage]stageRule{
	StageStructuring: {prerequisite: StatusPending, success: StatusParsed},
	StageCaptioning:  {prerequisite: StatusParsed, success: StatusCaptioned},
	StageChunkEmbed:  {prerequisite: StatusParsed, success: StatusChunked},
}

// Prerequisite returns the status a document must have reached before the
// stage may run.
func (s Stage) Prerequisite() DocumentStatus {
	return stageRules[s].prerequisite
}

// Success returns the status the stage advances a document to.
func (s Stage) Success() DocumentStatus {
	return stageRules[s].success
}

// Transition validates that stage may run against a document currently at
// current, and returns the status after a successful run. The result never
// regresses: re-running an earlier stage against a later status keeps the
// later status.
//
// A document in an error state conceptually remains "at" the prerequisite of
// the failed stage, so retries pass the same check as first runs.
func Transition(current DocumentStatus, stage Stage) (DocumentStatus, error) {
	rule, ok := stageRules[stage]
	if !ok {
		return current, fmt.Errorf("%w: unknown stage %q", ErrInvalidArgument, stage)
	}
	if !current.Valid() {
		return current, fmt.Errorf("%w: unknown status %q", ErrInvalidArgument, current)
	}
	if !current.AtLeast(rule.prerequisite) {
		return current, fmt.Errorf("%w: stage %s requires status %s, document is %s",
			ErrPrerequisiteNotMet, stage, rule.prerequisite, current)
	}
	if current.AtLeast(rule.success) {
		return current, nil
	}
	return rule.success, nil
}
