// Package sqlite provides the SQLite-backed document store and chunk
// searcher.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/binary"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/mnajjaa/tunisie-valeurs-RAG/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/mnajjaa/tunisie-valeurs-RAG/internal/core/domain"
	"github.com/mnajjaa/tunisie-valeurs-RAG/internal/core/ports/driven"
)

// Ensure Store implements the interfaces.
var (
	_ driven.DocumentStore = (*Store)(nil)
	_ driven.ChunkSearcher = (*Store)(nil)
)

// Store is a SQLite-backed document store. It owns the documents table and
// the dependent blocks, chunks and assets tables, and serves brute-force
// vector search over stored chunk embeddings.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore creates a new SQLite store at the specified data directory.
// If dataDir is empty, defaults to ~/.tvrag/data/documents.db.
func NewStore(dataDir string) (*Store, error) {
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".tvrag", "data")
	}

	// Ensure directory exists
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "documents.db")

	// Open database with WAL mode for better concurrency
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &Store{
		db:   db,
		path: dbPath,
	}

	// Run migrations
	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// migrate applies all pending .up.sql migrations from fsys in order.
func (s *Store) migrate(fsys embed.FS) error {
	// Ensure schema_migrations table exists
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	// Get current version
	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasSuffix(name, ".up.sql") {
			upFiles = append(upFiles, name)
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		// Extract version number (e.g., "001_initial.up.sql" -> 1)
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue // Skip files that don't match pattern
		}

		if version <= currentVersion {
			continue // Already applied
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}

		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}

		if _, err := s.db.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
	}

	return nil
}

// ==================== Documents ====================

// SaveDocument stores or updates a document.
func (s *Store) SaveDocument(ctx context.Context, doc *domain.Document) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (id, filename, title, source_url, pdf_url, published_at,
			sha256, size_bytes, local_path, page_count, status, error_message,
			created_at, processed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			filename = excluded.filename,
			title = excluded.title,
			source_url = excluded.source_url,
			pdf_url = excluded.pdf_url,
			published_at = excluded.published_at,
			sha256 = excluded.sha256,
			size_bytes = excluded.size_bytes,
			local_path = excluded.local_path,
			page_count = excluded.page_count,
			status = excluded.status,
			error_message = excluded.error_message,
			processed_at = excluded.processed_at
	`, doc.ID, doc.Filename, doc.Title, doc.SourceURL, doc.PDFURL, timePtrValue(doc.PublishedAt),
		doc.SHA256, doc.SizeBytes, doc.LocalPath, doc.PageCount, string(doc.Status),
		doc.ErrorMessage, doc.CreatedAt, timePtrValue(doc.ProcessedAt))

	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: document with same sha256 already exists", domain.ErrIntegrity)
		}
		return fmt.Errorf("saving document: %w", err)
	}
	return nil
}

const documentColumns = `id, filename, title, source_url, pdf_url, published_at,
	sha256, size_bytes, local_path, page_count, status, error_message,
	created_at, processed_at`

// GetDocument retrieves a document by ID.
func (s *Store) GetDocument(ctx context.Context, id string) (*domain.Document, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE id = ?`, id)
	return scanDocument(row)
}

// GetDocumentBySHA256 retrieves a document by its integrity hash.
func (s *Store) GetDocumentBySHA256(ctx context.Context, sha256 string) (*domain.Document, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE sha256 = ?`, sha256)
	return scanDocument(row)
}

// ListDocuments returns all documents ordered by creation time.
func (s *Store) ListDocuments(ctx context.Context) ([]domain.Document, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+documentColumns+` FROM documents ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("querying documents: %w", err)
	}
	defer rows.Close()

	var docs []domain.Document //nolint:prealloc // size unknown from query
	for rows.Next() {
		doc, err := scanDocumentRows(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *doc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating documents: %w", err)
	}

	return docs, nil
}

// UpdateStatus records a stage outcome for a document.
func (s *Store) UpdateStatus(ctx context.Context, id string, status domain.DocumentStatus, errMsg string, processedAt time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE documents SET status = ?, error_message = ?, processed_at = ?
		WHERE id = ?
	`, string(status), errMsg, processedAt, id)
	if err != nil {
		return fmt.Errorf("updating status: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking update result: %w", err)
	}
	if affected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// DeleteDocument removes a document; blocks, chunks and assets cascade.
func (s *Store) DeleteDocument(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM documents WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting document: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking delete result: %w", err)
	}
	if affected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ==================== Blocks ====================

// ReplaceBlocks atomically replaces all blocks of a document.
func (s *Store) ReplaceBlocks(ctx context.Context, documentID string, blocks []domain.DocumentBlock) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, "DELETE FROM document_blocks WHERE document_id = ?", documentID); err != nil {
		return fmt.Errorf("clearing blocks: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO document_blocks (id, document_id, position, page, type, text, font_size, bold)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for _, block := range blocks {
		if _, err := stmt.ExecContext(ctx, block.ID, documentID, block.Index, block.Page,
			string(block.Type), block.Text, block.FontSize, block.Bold); err != nil {
			return fmt.Errorf("saving block: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// GetBlocks retrieves all blocks of a document ordered by position.
func (s *Store) GetBlocks(ctx context.Context, documentID string) ([]domain.DocumentBlock, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, document_id, position, page, type, text, font_size, bold
		FROM document_blocks WHERE document_id = ?
		ORDER BY position
	`, documentID)
	if err != nil {
		return nil, fmt.Errorf("querying blocks: %w", err)
	}
	defer rows.Close()

	var blocks []domain.DocumentBlock //nolint:prealloc // size unknown from query
	for rows.Next() {
		var block domain.DocumentBlock
		var blockType string
		if err := rows.Scan(&block.ID, &block.DocumentID, &block.Index, &block.Page,
			&blockType, &block.Text, &block.FontSize, &block.Bold); err != nil {
			return nil, fmt.Errorf("scanning block: %w", err)
		}
		block.Type = domain.BlockType(blockType)
		blocks = append(blocks, block)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating blocks: %w", err)
	}

	return blocks, nil
}

// ==================== Chunks ====================

// ReplaceChunks atomically replaces all chunks of a document. The delete and
// all inserts share one transaction, so concurrent readers see either the
// full old set or the full new set.
func (s *Store) ReplaceChunks(ctx context.Context, documentID string, chunks []domain.Chunk) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, "DELETE FROM chunks WHERE document_id = ?", documentID); err != nil {
		return fmt.Errorf("clearing chunks: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (id, document_id, position, page, content, embedding)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for _, chunk := range chunks {
		embeddingBlob := float32SliceToBytes(chunk.Embedding)
		if _, err := stmt.ExecContext(ctx, chunk.ID, documentID, chunk.Index,
			chunk.Page, chunk.Text, embeddingBlob); err != nil {
			return fmt.Errorf("saving chunk: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// GetChunks retrieves all chunks of a document ordered by position.
func (s *Store) GetChunks(ctx context.Context, documentID string) ([]domain.Chunk, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, document_id, position, page, content, embedding
		FROM chunks WHERE document_id = ?
		ORDER BY position
	`, documentID)
	if err != nil {
		return nil, fmt.Errorf("querying chunks: %w", err)
	}
	defer rows.Close()

	var chunks []domain.Chunk //nolint:prealloc // size unknown from query
	for rows.Next() {
		chunk, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, *chunk)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating chunks: %w", err)
	}

	return chunks, nil
}

// CountChunks returns the number of stored chunks for a document.
func (s *Store) CountChunks(ctx context.Context, documentID string) (int, error) {
	var count int
	row := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM chunks WHERE document_id = ?", documentID)
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("counting chunks: %w", err)
	}
	return count, nil
}

// ==================== Assets ====================

// ReplaceAssets atomically replaces all assets of a document.
func (s *Store) ReplaceAssets(ctx context.Context, documentID string, assets []domain.DocumentAsset) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, "DELETE FROM document_assets WHERE document_id = ?", documentID); err != nil {
		return fmt.Errorf("clearing assets: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO document_assets (id, document_id, page, kind, local_path,
			caption, table_content, status, error_message)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for _, asset := range assets {
		if _, err := stmt.ExecContext(ctx, asset.ID, documentID, asset.Page, string(asset.Kind),
			asset.LocalPath, asset.Caption, asset.TableContent, string(asset.Status),
			asset.ErrorMessage); err != nil {
			return fmt.Errorf("saving asset: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// GetAssets retrieves all assets of a document ordered by page.
func (s *Store) GetAssets(ctx context.Context, documentID string) ([]domain.DocumentAsset, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, document_id, page, kind, local_path, caption, table_content, status, error_message
		FROM document_assets WHERE document_id = ?
		ORDER BY page, id
	`, documentID)
	if err != nil {
		return nil, fmt.Errorf("querying assets: %w", err)
	}
	defer rows.Close()

	var assets []domain.DocumentAsset //nolint:prealloc // size unknown from query
	for rows.Next() {
		var asset domain.DocumentAsset
		var kind, status string
		if err := rows.Scan(&asset.ID, &asset.DocumentID, &asset.Page, &kind,
			&asset.LocalPath, &asset.Caption, &asset.TableContent, &status,
			&asset.ErrorMessage); err != nil {
			return nil, fmt.Errorf("scanning asset: %w", err)
		}
		asset.Kind = domain.AssetKind(kind)
		asset.Status = domain.AssetStatus(status)
		assets = append(assets, asset)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating assets: %w", err)
	}

	return assets, nil
}

// UpdateAsset stores the captioning outcome for one asset.
func (s *Store) UpdateAsset(ctx context.Context, asset *domain.DocumentAsset) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE document_assets
		SET caption = ?, table_content = ?, status = ?, error_message = ?
		WHERE id = ?
	`, asset.Caption, asset.TableContent, string(asset.Status), asset.ErrorMessage, asset.ID)
	if err != nil {
		return fmt.Errorf("updating asset: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking update result: %w", err)
	}
	if affected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ==================== Helper Functions ====================

// float32SliceToBytes converts a []float32 to a byte slice for storage.
func float32SliceToBytes(floats []float32) []byte {
	if len(floats) == 0 {
		return nil
	}
	buf := make([]byte, len(floats)*4)
	for i, f := range floats {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// bytesToFloat32Slice converts a byte slice back to []float32.
func bytesToFloat32Slice(data []byte) []float32 {
	if len(data) == 0 {
		return nil
	}
	floats := make([]float32, len(data)/4)
	for i := range floats {
		floats[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return floats
}

// timePtrValue converts a *time.Time to a driver-friendly value.
func timePtrValue(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}

// isUniqueViolation reports whether err is a SQLite unique constraint error.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// scanDocument scans a single document row.
func scanDocument(row *sql.Row) (*domain.Document, error) {
	var doc domain.Document
	var status string
	var publishedAt, processedAt sql.NullTime

	if err := row.Scan(&doc.ID, &doc.Filename, &doc.Title, &doc.SourceURL, &doc.PDFURL,
		&publishedAt, &doc.SHA256, &doc.SizeBytes, &doc.LocalPath, &doc.PageCount,
		&status, &doc.ErrorMessage, &doc.CreatedAt, &processedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning document: %w", err)
	}

	doc.Status = domain.DocumentStatus(status)
	if publishedAt.Valid {
		doc.PublishedAt = &publishedAt.Time
	}
	if processedAt.Valid {
		doc.ProcessedAt = &processedAt.Time
	}

	return &doc, nil
}

// scanDocumentRows scans a document from *sql.Rows.
func scanDocumentRows(rows *sql.Rows) (*domain.Document, error) {
	var doc domain.Document
	var status string
	var publishedAt, processedAt sql.NullTime

	if err := rows.Scan(&doc.ID, &doc.Filename, &doc.Title, &doc.SourceURL, &doc.PDFURL,
		&publishedAt, &doc.SHA256, &doc.SizeBytes, &doc.LocalPath, &doc.PageCount,
		&status, &doc.ErrorMessage, &doc.CreatedAt, &processedAt); err != nil {
		return nil, fmt.Errorf("scanning document: %w", err)
	}

	doc.Status = domain.DocumentStatus(status)
	if publishedAt.Valid {
		doc.PublishedAt = &publishedAt.Time
	}
	if processedAt.Valid {
		doc.ProcessedAt = &processedAt.Time
	}

	return &doc, nil
}

// scanChunk scans a chunk from *sql.Rows.
func scanChunk(rows *sql.Rows) (*domain.Chunk, error) {
	var chunk domain.Chunk
	var embeddingBlob []byte

	if err := rows.Scan(&chunk.ID, &chunk.DocumentID, &chunk.Index,
		&chunk.Page, &chunk.Text, &embeddingBlob); err != nil {
		return nil, fmt.Errorf("scanning chunk: %w", err)
	}

	chunk.Embedding = bytesToFloat32Slice(embeddingBlob)
	return &chunk, nil
}
