package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/custodia-labs/quarry/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/custodia-labs/quarry/internal/core/domain"
	"github.com/custodia-labs/quarry/internal/core/ports/driven"
)

// Ensure Store implements the interface.
var _ driven.DocumentStore = (*Store)(nil)

// Store is the SQLite-backed document store. One database holds
// documents, chunks (with their FTS index), dataset rows and watermarks
// so that a per-document replace is a single transaction.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore creates a new SQLite store at the specified data directory.
// If dataDir is empty, defaults to ~/.quarry/data/quarry.db.
func NewStore(dataDir string) (*Store, error) {
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".quarry", "data")
	}

	// Ensure directory exists
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "quarry.db")

	// Open database with WAL mode for better concurrency. WAL readers
	// see a stable snapshot, so queries never observe a half-applied
	// replace.
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable foreign keys so document deletion cascades
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

// migrate runs all pending migrations.
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

	// Find all up migrations
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	// Sort and run migrations
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

		// Read and execute migration
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

// ==================== Replace ====================

// Replace atomically upserts the document and swaps in the new chunk and
// row sets, updating the watermark in the same transaction. The FTS
// index is maintained by triggers, so lexical search flips to the new
// version at commit together with everything else.
func (s *Store) Replace(
	ctx context.Context,
	doc *domain.Document,
	chunks []domain.Chunk,
	rows []domain.StructuredRow,
	contentHash string,
) error {
	if doc == nil || doc.ID == "" {
		return domain.ErrInvalidInput
	}

	schemaJSON, err := marshalSchema(doc.Schema)
	if err != nil {
		return fmt.Errorf("marshalling schema: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	now := time.Now().UTC()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	doc.UpdatedAt = now

	_, err = tx.ExecContext(ctx, `
		INSERT INTO documents (id, title, url, schema, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			url = excluded.url,
			schema = excluded.schema,
			updated_at = excluded.updated_at
	`, doc.ID, doc.Title, doc.URL, schemaJSON, doc.CreatedAt, doc.UpdatedAt)
	if err != nil {
		return fmt.Errorf("saving document: %w", err)
	}

	// Full delete-then-insert: chunks and rows are never patched
	// incrementally, which rules out stale fragments from partial
	// re-chunking.
	if _, err := tx.ExecContext(ctx, "DELETE FROM chunks WHERE document_id = ?", doc.ID); err != nil {
		return fmt.Errorf("deleting chunks: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM dataset_rows WHERE dataset_id = ?", doc.ID); err != nil {
		return fmt.Errorf("deleting rows: %w", err)
	}

	chunkStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (document_id, content, position, embedding, extra)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("preparing chunk statement: %w", err)
	}
	defer chunkStmt.Close()

	for i := range chunks {
		extraJSON, err := json.Marshal(chunks[i].Extra)
		if err != nil {
			return fmt.Errorf("marshalling chunk extra: %w", err)
		}

		res, err := chunkStmt.ExecContext(ctx, doc.ID, chunks[i].Content,
			chunks[i].Position, float32SliceToBytes(chunks[i].Embedding), string(extraJSON))
		if err != nil {
			return fmt.Errorf("saving chunk %d: %w", chunks[i].Position, err)
		}

		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("reading chunk id: %w", err)
		}
		chunks[i].ID = id
		chunks[i].DocumentID = doc.ID
	}

	rowStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO dataset_rows (dataset_id, row_data) VALUES (?, ?)
	`)
	if err != nil {
		return fmt.Errorf("preparing row statement: %w", err)
	}
	defer rowStmt.Close()

	for i := range rows {
		dataJSON, err := json.Marshal(rows[i].Data)
		if err != nil {
			return fmt.Errorf("marshalling row data: %w", err)
		}

		res, err := rowStmt.ExecContext(ctx, doc.ID, string(dataJSON))
		if err != nil {
			return fmt.Errorf("saving row %d: %w", i, err)
		}

		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("reading row id: %w", err)
		}
		rows[i].ID = id
		rows[i].DatasetID = doc.ID
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO watermarks (source_id, content_hash, last_ingested)
		VALUES (?, ?, ?)
		ON CONFLICT(source_id) DO UPDATE SET
			content_hash = excluded.content_hash,
			last_ingested = excluded.last_ingested
	`, doc.ID, contentHash, now)
	if err != nil {
		return fmt.Errorf("saving watermark: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// ==================== Document Reads ====================

// GetDocument retrieves a document by ID.
func (s *Store) GetDocument(ctx context.Context, id string) (*domain.Document, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, title, url, schema, created_at, updated_at
		FROM documents WHERE id = ?
	`, id)

	doc, err := scanDocument(row.Scan)
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// ListDocuments returns all documents including schema descriptors.
func (s *Store) ListDocuments(ctx context.Context) ([]domain.Document, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, url, schema, created_at, updated_at
		FROM documents ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("querying documents: %w", err)
	}
	defer rows.Close()

	var docs []domain.Document //nolint:prealloc // size unknown from query
	for rows.Next() {
		doc, err := scanDocument(rows.Scan)
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

// GetFullContent returns the document's chunks joined in chunk-index
// order, separated by blank lines.
func (s *Store) GetFullContent(ctx context.Context, documentID string) (string, error) {
	if _, err := s.GetDocument(ctx, documentID); err != nil {
		return "", err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT content FROM chunks WHERE document_id = ? ORDER BY position
	`, documentID)
	if err != nil {
		return "", fmt.Errorf("querying chunk content: %w", err)
	}
	defer rows.Close()

	var parts []string //nolint:prealloc // size unknown from query
	for rows.Next() {
		var content string
		if err := rows.Scan(&content); err != nil {
			return "", fmt.Errorf("scanning chunk content: %w", err)
		}
		parts = append(parts, content)
	}

	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("iterating chunk content: %w", err)
	}

	return strings.Join(parts, "\n\n"), nil
}

// GetChunks retrieves chunks by ID, preserving input order and omitting
// IDs that no longer exist.
func (s *Store) GetChunks(ctx context.Context, ids []int64) ([]domain.Chunk, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	//nolint:gosec // placeholders are generated, values are bound
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT id, document_id, content, position, embedding, extra
		FROM chunks WHERE id IN (%s)
	`, placeholders), args...)
	if err != nil {
		return nil, fmt.Errorf("querying chunks: %w", err)
	}
	defer rows.Close()

	byID := make(map[int64]domain.Chunk, len(ids))
	for rows.Next() {
		chunk, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		byID[chunk.ID] = *chunk
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating chunks: %w", err)
	}

	chunks := make([]domain.Chunk, 0, len(ids))
	for _, id := range ids {
		if chunk, ok := byID[id]; ok {
			chunks = append(chunks, chunk)
		}
	}

	return chunks, nil
}

// DeleteDocument removes a document and, via cascade, its chunks and
// rows. The watermark goes in the same transaction so a later
// re-appearance of the source is ingested fresh.
func (s *Store) DeleteDocument(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	res, err := tx.ExecContext(ctx, "DELETE FROM documents WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting document: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("reading affected rows: %w", err)
	}
	if affected == 0 {
		return domain.ErrNotFound
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM watermarks WHERE source_id = ?", id); err != nil {
		return fmt.Errorf("deleting watermark: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// Watermark returns the content hash of the last successful ingestion,
// or "" if the source has never been ingested.
func (s *Store) Watermark(ctx context.Context, sourceID string) (string, error) {
	var hash string
	err := s.db.QueryRowContext(ctx,
		"SELECT content_hash FROM watermarks WHERE source_id = ?", sourceID).Scan(&hash)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("scanning watermark: %w", err)
	}
	return hash, nil
}

// ==================== Search Reads ====================

// LexicalSearch ranks chunks by bm25 full-text relevance, best first.
// Query terms are OR-joined so a chunk matching any term is a candidate;
// ties are broken by ascending chunk ID for determinism.
func (s *Store) LexicalSearch(ctx context.Context, query string, limit int) ([]driven.LexicalHit, error) {
	match := ftsMatchExpr(query)
	if match == "" || limit <= 0 {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT rowid, bm25(chunks_fts)
		FROM chunks_fts
		WHERE chunks_fts MATCH ?
		ORDER BY bm25(chunks_fts), rowid
		LIMIT ?
	`, match, limit)
	if err != nil {
		return nil, fmt.Errorf("querying fts index: %w", err)
	}
	defer rows.Close()

	var hits []driven.LexicalHit //nolint:prealloc // size unknown from query
	for rows.Next() {
		var hit driven.LexicalHit
		var rank float64
		if err := rows.Scan(&hit.ChunkID, &rank); err != nil {
			return nil, fmt.Errorf("scanning fts hit: %w", err)
		}
		// bm25() is smaller-is-better; flip so callers see higher-is-better.
		hit.Score = -rank
		hits = append(hits, hit)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating fts hits: %w", err)
	}

	return hits, nil
}

// ChunkVectors returns every stored chunk embedding, ordered by chunk ID.
func (s *Store) ChunkVectors(ctx context.Context) ([]driven.ChunkVector, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, embedding FROM chunks WHERE embedding IS NOT NULL ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("querying embeddings: %w", err)
	}
	defer rows.Close()

	var vectors []driven.ChunkVector //nolint:prealloc // size unknown from query
	for rows.Next() {
		var v driven.ChunkVector
		var blob []byte
		if err := rows.Scan(&v.ChunkID, &blob); err != nil {
			return nil, fmt.Errorf("scanning embedding: %w", err)
		}
		v.Embedding = bytesToFloat32Slice(blob)
		if len(v.Embedding) == 0 {
			continue
		}
		vectors = append(vectors, v)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating embeddings: %w", err)
	}

	return vectors, nil
}

// RowsForDataset returns up to limit structured rows in insertion order.
func (s *Store) RowsForDataset(ctx context.Context, datasetID string, limit int) ([]domain.StructuredRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, dataset_id, row_data
		FROM dataset_rows WHERE dataset_id = ?
		ORDER BY id LIMIT ?
	`, datasetID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying rows: %w", err)
	}
	defer rows.Close()

	var result []domain.StructuredRow //nolint:prealloc // size unknown from query
	for rows.Next() {
		var r domain.StructuredRow
		var dataJSON string
		if err := rows.Scan(&r.ID, &r.DatasetID, &dataJSON); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		if err := json.Unmarshal([]byte(dataJSON), &r.Data); err != nil {
			return nil, fmt.Errorf("unmarshaling row data: %w", err)
		}
		result = append(result, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rows: %w", err)
	}

	return result, nil
}

// ==================== Helper Functions ====================

// ftsMatchExpr builds a disjunctive FTS5 MATCH expression from free
// text. Tokens are lowercased, quoted, and OR-joined.
func ftsMatchExpr(query string) string {
	fields := strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !isWordRune(r)
	})
	if len(fields) == 0 {
		return ""
	}

	quoted := make([]string, len(fields))
	for i, f := range fields {
		quoted[i] = `"` + f + `"`
	}
	return strings.Join(quoted, " OR ")
}

func isWordRune(r rune) bool {
	return r == '_' ||
		(r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
		(r >= '0' && r <= '9') || r > 127
}

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

// marshalSchema encodes a schema descriptor as JSON, or NULL when the
// document is not structured.
func marshalSchema(schema domain.SchemaDescriptor) (any, error) {
	if len(schema) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(schema)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// scanDocument scans a document row via the given scan function.
func scanDocument(scan func(dest ...any) error) (*domain.Document, error) {
	var doc domain.Document
	var schemaJSON sql.NullString

	if err := scan(&doc.ID, &doc.Title, &doc.URL, &schemaJSON,
		&doc.CreatedAt, &doc.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning document: %w", err)
	}

	if schemaJSON.Valid && schemaJSON.String != "" {
		if err := json.Unmarshal([]byte(schemaJSON.String), &doc.Schema); err != nil {
			return nil, fmt.Errorf("unmarshaling schema: %w", err)
		}
	}

	return &doc, nil
}

// scanChunk scans a chunk from *sql.Rows.
func scanChunk(rows *sql.Rows) (*domain.Chunk, error) {
	var chunk domain.Chunk
	var embeddingBlob []byte
	var extraJSON string

	if err := rows.Scan(&chunk.ID, &chunk.DocumentID, &chunk.Content,
		&chunk.Position, &embeddingBlob, &extraJSON); err != nil {
		return nil, fmt.Errorf("scanning chunk: %w", err)
	}

	chunk.Embedding = bytesToFloat32Slice(embeddingBlob)

	if extraJSON != "" && extraJSON != "{}" && extraJSON != "null" {
		if err := json.Unmarshal([]byte(extraJSON), &chunk.Extra); err != nil {
			return nil, fmt.Errorf("unmarshaling chunk extra: %w", err)
		}
	}

	return &chunk, nil
}
