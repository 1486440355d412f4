package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/mnajjaa/tunisie-valeurs-RAG/internal/core/domain"
	"github.com/mnajjaa/tunisie-valeurs-RAG/internal/core/ports/driven"
	"github.com/mnajjaa/tunisie-valeurs-RAG/internal/core/ports/driving"
	"github.com/mnajjaa/tunisie-valeurs-RAG/internal/logger"
)

// Ensure AskService implements the interface.
var _ driving.AskService = (*AskService)(nil)

// answerTemperature keeps generated answers close to the provided context.
const answerTemperature = 0.2

// AskService answers questions by embedding the query, retrieving the
// closest chunks and generating a cited answer from them.
type AskService struct {
	embedder   driven.EmbeddingService
	retrieval  *RetrievalService
	completion driven.CompletionService
}

// NewAskService creates an ask service. completion may be nil: questions
// then return ranked chunks without generated text. embedder may be nil,
// in which case asking fails with ErrEmbeddingUnavailable.
func NewAskService(embedder driven.EmbeddingService, retrieval *RetrievalService, completion driven.CompletionService) *AskService {
	return &AskService{embedder: embedder, retrieval: retrieval, completion: completion}
}

// Ask answers a question from the indexed corpus, optionally restricted to
// one document.
func (s *AskService) Ask(ctx context.Context, question string, topK int, documentID string) (*domain.Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, fmt.Errorf("%w: question is empty", domain.ErrInvalidArgument)
	}
	if s.embedder == nil {
		return nil, domain.ErrEmbeddingUnavailable
	}

	query, err := s.embedder.Embed(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("embed question: %w", err)
	}

	sources, err := s.retrieval.Retrieve(ctx, query, domain.RetrievalOptions{TopK: topK, DocumentID: documentID})
	if err != nil {
		return nil, err
	}

	answer := &domain.Answer{Sources: sources}
	if s.completion == nil || len(sources) == 0 {
		return answer, nil
	}

	text, err := s.completion.Complete(ctx, buildPrompt(question, sources), driven.CompleteOptions{
		Temperature: answerTemperature,
	})
	if err != nil {
		return nil, fmt.Errorf("generate answer: %w", err)
	}
	answer.Text = strings.TrimSpace(text)

	logger.Debug("Answered question with %d source chunks", len(sources))
	return answer, nil
}

// buildPrompt renders retrieved chunks into a grounded, citable prompt.
func buildPrompt(question string, sources []domain.RetrievedChunk) string {
	var context strings.Builder
	for _, src := range sources {
		text := strings.TrimSpace(src.Chunk.Text)
		if text == "" {
			continue
		}
		fmt.Fprintf(&context, "[Doc %s p.%d] %s\n\n", src.Document.ID, src.Chunk.Page, text)
	}

	var b strings.Builder
	b.WriteString("You are a helpful assistant. Answer using only the provided context. ")
	b.WriteString("Cite sources with the format [Doc <id> p.<page>]. ")
	b.WriteString("If the context is insufficient, say you do not know.\n\n")
	fmt.Fprintf(&b, "Question:\n%s\n\nContext:\n%s", question, strings.TrimSpace(context.String()))
	return b.String()
}
