package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/dreamerdocs/document-analysis/internal/core/domain"
)

type DocumentRepository struct {
	db  *sql.DB
	now func() time.Time
}

func NewDocumentRepository(db *sql.DB) *DocumentRepository {
	return &DocumentRepository{db: db, now: time.Now}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (r *DocumentRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026101901)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS documents (
	id TEXT PRIMARY KEY,
	title TEXT NOT NULL,
	filename TEXT NOT NULL,
	mime_type TEXT NOT NULL,
	file_size BIGINT NOT NULL CHECK (file_size > 0),
	char_count INTEGER NOT NULL CHECK (char_count >= 0),
	cost BIGINT NOT NULL CHECK (cost > 0),
	currency TEXT NOT NULL,
	status TEXT NOT NULL,
	payment_intent_id TEXT NOT NULL DEFAULT '',
	analysis_options JSONB NOT NULL DEFAULT '[]'::jsonb,
	analysis_result JSONB,
	storage_path TEXT NOT NULL,
	text_path TEXT NOT NULL,
	error_message TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	status_changed_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_documents_status_changed ON documents(status, status_changed_at);
CREATE INDEX IF NOT EXISTS idx_documents_created_at ON documents(created_at DESC);
CREATE UNIQUE INDEX IF NOT EXISTS idx_documents_payment_intent ON documents(payment_intent_id) WHERE payment_intent_id <> '';
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (r *DocumentRepository) Create(ctx context.Context, doc *domain.Document) error {
	optionsJSON, err := marshalOptions(doc.Options)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO documents (
	id, title, filename, mime_type, file_size, char_count, cost, currency, status,
	analysis_options, storage_path, text_path, created_at, updated_at, status_changed_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$14)
`,
		doc.ID, doc.Title, doc.Filename, doc.MimeType, doc.FileSize, doc.CharCount, doc.Cost, doc.Currency,
		string(doc.Status), optionsJSON, doc.StoragePath, doc.TextPath, doc.CreatedAt, doc.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

const documentColumns = `id, title, filename, mime_type, file_size, char_count, cost, currency, status,
	payment_intent_id, analysis_options, analysis_result, storage_path, text_path, error_message,
	created_at, updated_at`

func (r *DocumentRepository) GetByID(ctx context.Context, id string) (*domain.Document, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT `+documentColumns+`
FROM documents
WHERE id = $1
`, id)

	doc, err := scanDocument(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrDocumentNotFound, "get document", fmt.Errorf("id=%s", id))
		}
		return nil, fmt.Errorf("scan document: %w", err)
	}
	return &doc, nil
}

func (r *DocumentRepository) List(ctx context.Context, limit, offset int) ([]domain.Document, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT `+documentColumns+`
FROM documents
ORDER BY created_at DESC
LIMIT $1 OFFSET $2
`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Document, 0)
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		out = append(out, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return out, nil
}

// Transition moves the document only if it is still in the expected status.
func (r *DocumentRepository) Transition(
	ctx context.Context,
	id string,
	from, to domain.DocumentStatus,
	errMessage string,
) (bool, error) {
	now := r.now().UTC()
	result, err := r.db.ExecContext(ctx, `
UPDATE documents
SET status = $3, error_message = $4, updated_at = $5, status_changed_at = $5
WHERE id = $1 AND status = $2
`, id, string(from), string(to), errMessage, now)
	if err != nil {
		return false, fmt.Errorf("update document status: %w", err)
	}
	return r.affected(ctx, result, id, "update document status")
}

func (r *DocumentRepository) BeginPayment(
	ctx context.Context,
	id, paymentIntentID string,
	options domain.AnalysisOptions,
) (bool, error) {
	optionsJSON, err := marshalOptions(options)
	if err != nil {
		return false, err
	}
	now := r.now().UTC()
	result, err := r.db.ExecContext(ctx, `
UPDATE documents
SET status = $3, payment_intent_id = $4, analysis_options = $5, updated_at = $6, status_changed_at = $6
WHERE id = $1 AND status = $2
`, id, string(domain.StatusUploaded), string(domain.StatusPaymentPending), paymentIntentID, optionsJSON, now)
	if err != nil {
		return false, fmt.Errorf("begin payment: %w", err)
	}
	return r.affected(ctx, result, id, "begin payment")
}

// CompleteAnalysis stores the result and moves analyzing to analyzed in one statement.
func (r *DocumentRepository) CompleteAnalysis(ctx context.Context, id string, analysis *domain.AnalysisResult) (bool, error) {
	resultJSON, err := json.Marshal(analysis)
	if err != nil {
		return false, fmt.Errorf("marshal analysis result: %w", err)
	}
	now := r.now().UTC()
	result, err := r.db.ExecContext(ctx, `
UPDATE documents
SET status = $3, analysis_result = $4, error_message = '', updated_at = $5, status_changed_at = $5
WHERE id = $1 AND status = $2
`, id, string(domain.StatusAnalyzing), string(domain.StatusAnalyzed), resultJSON, now)
	if err != nil {
		return false, fmt.Errorf("complete analysis: %w", err)
	}
	return r.affected(ctx, result, id, "complete analysis")
}

func (r *DocumentRepository) ListStale(
	ctx context.Context,
	status domain.DocumentStatus,
	changedBefore time.Time,
	limit int,
) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id
FROM documents
WHERE status = $1 AND status_changed_at < $2
ORDER BY status_changed_at
LIMIT $3
`, string(status), changedBefore, limit)
	if err != nil {
		return nil, fmt.Errorf("list stale documents: %w", err)
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan stale document: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stale documents: %w", err)
	}
	return ids, nil
}

// affected reports whether a check-and-set matched. A miss on a missing row is
// ErrDocumentNotFound; a miss on a row in another status is (false, nil).
func (r *DocumentRepository) affected(ctx context.Context, result sql.Result, id, op string) (bool, error) {
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s rows affected: %w", op, err)
	}
	if rows > 0 {
		return true, nil
	}

	var exists bool
	if err := r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM documents WHERE id = $1)`, id).Scan(&exists); err != nil {
		return false, fmt.Errorf("%s check existence: %w", op, err)
	}
	if !exists {
		return false, domain.WrapError(domain.ErrDocumentNotFound, op, fmt.Errorf("id=%s", id))
	}
	return false, nil
}

type documentScanner interface {
	Scan(dest ...interface{}) error
}

func scanDocument(row documentScanner) (domain.Document, error) {
	var doc domain.Document
	var status string
	var optionsRaw, resultRaw []byte
	err := row.Scan(
		&doc.ID,
		&doc.Title,
		&doc.Filename,
		&doc.MimeType,
		&doc.FileSize,
		&doc.CharCount,
		&doc.Cost,
		&doc.Currency,
		&status,
		&doc.PaymentIntentID,
		&optionsRaw,
		&resultRaw,
		&doc.StoragePath,
		&doc.TextPath,
		&doc.Error,
		&doc.CreatedAt,
		&doc.UpdatedAt,
	)
	if err != nil {
		return domain.Document{}, err
	}
	doc.Status = domain.DocumentStatus(status)

	if len(optionsRaw) > 0 {
		if err := json.Unmarshal(optionsRaw, &doc.Options); err != nil {
			return domain.Document{}, fmt.Errorf("unmarshal analysis options: %w", err)
		}
	}
	if len(resultRaw) > 0 {
		var result domain.AnalysisResult
		if err := json.Unmarshal(resultRaw, &result); err != nil {
			return domain.Document{}, fmt.Errorf("unmarshal analysis result: %w", err)
		}
		doc.Result = &result
	}
	return doc, nil
}

func marshalOptions(options domain.AnalysisOptions) ([]byte, error) {
	if options == nil {
		options = domain.AnalysisOptions{}
	}
	raw, err := json.Marshal(options)
	if err != nil {
		return nil, fmt.Errorf("marshal analysis options: %w", err)
	}
	return raw, nil
}
