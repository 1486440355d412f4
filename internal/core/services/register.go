package services

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mnajjaa/tunisie-valeurs-RAG/internal/core/domain"
	"github.com/mnajjaa/tunisie-valeurs-RAG/internal/core/ports/driven"
	"github.com/mnajjaa/tunisie-valeurs-RAG/internal/core/ports/driving"
	"github.com/mnajjaa/tunisie-valeurs-RAG/internal/logger"
)

// Ensure RegisterService implements the interface.
var _ driving.RegisterService = (*RegisterService)(nil)

// pdfMagic is the required prefix of a PDF file, after leading whitespace.
var pdfMagic = []byte("%PDF")

// RegisterService registers raw PDFs: it stores the original bytes, records
// metadata and creates the document in the pending state.
type RegisterService struct {
	store   driven.DocumentStore
	dataDir string
}

// NewRegisterService creates a register service writing originals under
// dataDir/raw_pdfs.
func NewRegisterService(store driven.DocumentStore, dataDir string) *RegisterService {
	return &RegisterService{store: store, dataDir: dataDir}
}

// Register stores the PDF and creates a pending document. Bytes whose hash
// is already registered return the existing document ID without side
// effects.
func (s *RegisterService) Register(ctx context.Context, filename string, data []byte, meta driving.RegisterMetadata) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("%w: empty file", domain.ErrInvalidArgument)
	}
	if !bytes.HasPrefix(bytes.TrimLeft(data, " \t\r\n"), pdfMagic) {
		return "", fmt.Errorf("%w: not a PDF file", domain.ErrIntegrity)
	}

	sum := sha256.Sum256(data)
	hash := hex.EncodeToString(sum[:])

	existing, err := s.store.GetDocumentBySHA256(ctx, hash)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return "", fmt.Errorf("check duplicate: %w", err)
	}
	if existing != nil {
		logger.Debug("Duplicate registration of %s (sha256 %s)", filename, hash[:12])
		return existing.ID, nil
	}

	id := uuid.New().String()
	localPath, err := s.writePDF(id, filename, data)
	if err != nil {
		return "", fmt.Errorf("store original: %w", err)
	}

	doc := &domain.Document{
		ID:        id,
		Filename:  filepath.Base(localPath),
		Title:     meta.Title,
		SourceURL: meta.SourceURL,
		PDFURL:    meta.PDFURL,
		SHA256:    hash,
		SizeBytes: int64(len(data)),
		LocalPath: localPath,
		Status:    domain.StatusPending,
		CreatedAt: time.Now().UTC(),
	}
	if meta.PublishedAt != "" {
		if published, err := time.Parse("2006-01-02", meta.PublishedAt); err == nil {
			doc.PublishedAt = &published
		}
	}

	if err := s.store.SaveDocument(ctx, doc); err != nil {
		// Keep the filesystem consistent with the store.
		_ = os.Remove(localPath)
		return "", fmt.Errorf("save document: %w", err)
	}

	logger.Info("Registered %s as %s (%d bytes)", doc.Filename, id, doc.SizeBytes)
	return id, nil
}

// Delete removes a document and everything derived from it, including the
// stored original.
func (s *RegisterService) Delete(ctx context.Context, documentID string) error {
	doc, err := s.store.GetDocument(ctx, documentID)
	if err != nil {
		return fmt.Errorf("get document: %w", err)
	}

	if err := s.store.DeleteDocument(ctx, documentID); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}

	if doc.LocalPath != "" {
		if err := os.Remove(doc.LocalPath); err != nil && !os.IsNotExist(err) {
			logger.Warn("Could not remove original %s: %v", doc.LocalPath, err)
		}
	}
	return nil
}

// writePDF stores the original bytes under dataDir/raw_pdfs with the
// document ID as a collision-free prefix.
func (s *RegisterService) writePDF(id, filename string, data []byte) (string, error) {
	dir := filepath.Join(s.dataDir, "raw_pdfs")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("creating storage directory: %w", err)
	}

	name := sanitizeFilename(filename)
	path := filepath.Join(dir, id[:8]+"_"+name)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", fmt.Errorf("writing file: %w", err)
	}
	return path, nil
}

// sanitizeFilename strips path components and unsafe characters, and
// ensures a .pdf extension.
func sanitizeFilename(filename string) string {
	name := filepath.Base(strings.TrimSpace(filename))
	if name == "." || name == string(filepath.Separator) || name == "" {
		name = "document.pdf"
	}

	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	name = b.String()

	if !strings.HasSuffix(strings.ToLower(name), ".pdf") {
		name += ".pdf"
	}
	return name
}
