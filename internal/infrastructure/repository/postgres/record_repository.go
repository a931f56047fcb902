package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/hangoclong/fast-ScholarAI-sub000/internal/core/domain"
	"github.com/hangoclong/fast-ScholarAI-sub000/internal/core/ports"
)

const uniqueViolationCode = "23505"

type RecordRepository struct {
	db *sql.DB
}

func NewRecordRepository(db *sql.DB) *RecordRepository {
	return &RecordRepository{db: db}
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

func (r *RecordRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026082501)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS records (
	id TEXT PRIMARY KEY,
	title TEXT NOT NULL,
	abstract TEXT NOT NULL DEFAULT '',
	doi TEXT NOT NULL DEFAULT '',
	dedup_status TEXT NOT NULL DEFAULT 'pending',
	is_duplicate BOOLEAN NOT NULL DEFAULT FALSE,
	duplicate_group_id TEXT NOT NULL DEFAULT '',
	is_primary BOOLEAN NOT NULL DEFAULT FALSE,
	title_status TEXT NOT NULL DEFAULT 'pending',
	title_notes TEXT NOT NULL DEFAULT '',
	abstract_status TEXT NOT NULL DEFAULT 'pending',
	abstract_notes TEXT NOT NULL DEFAULT '',
	extra JSONB NOT NULL DEFAULT '{}'::jsonb,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_records_doi ON records(doi) WHERE doi <> '';
CREATE INDEX IF NOT EXISTS idx_records_title_status ON records(title_status);
CREATE INDEX IF NOT EXISTS idx_records_abstract_status ON records(abstract_status);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

const recordColumns = `
id, title, abstract, doi,
dedup_status, is_duplicate, duplicate_group_id, is_primary,
title_status, title_notes, abstract_status, abstract_notes,
extra, created_at, updated_at`

func (r *RecordRepository) Create(ctx context.Context, rec *domain.Record) error {
	extraJSON, err := json.Marshal(extraOrEmpty(rec.Extra))
	if err != nil {
		return fmt.Errorf("marshal extra: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO records (`+recordColumns+`
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
`,
		rec.ID, rec.Title, rec.Abstract, rec.DOI,
		string(rec.DedupStatus), rec.IsDuplicate, rec.DuplicateGroupID, rec.IsPrimary,
		string(rec.TitleStatus), rec.TitleNotes, string(rec.AbstractStatus), rec.AbstractNotes,
		extraJSON, rec.CreatedAt, rec.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			return domain.WrapError(domain.ErrDuplicateID, "insert record", err)
		}
		return fmt.Errorf("insert record: %w", err)
	}
	return nil
}

func (r *RecordRepository) GetByID(ctx context.Context, id string) (*domain.Record, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM records WHERE id = $1`, id)
	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrRecordNotFound, "get record", fmt.Errorf("id %s", id))
		}
		return nil, fmt.Errorf("scan record: %w", err)
	}
	return rec, nil
}

// ListAll returns every record in stable input order; the duplicate
// detector's tie-breaks depend on it.
func (r *RecordRepository) ListAll(ctx context.Context) ([]domain.Record, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+recordColumns+` FROM records ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	defer rows.Close()

	var records []domain.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return records, nil
}

func (r *RecordRepository) UpdateStageStatus(ctx context.Context, id string, stage domain.Stage, status domain.StageStatus, notes string) error {
	statusCol, notesCol, err := stageColumns(stage)
	if err != nil {
		return err
	}

	var res sql.Result
	if notesCol == "" {
		res, err = r.db.ExecContext(ctx,
			`UPDATE records SET `+statusCol+` = $2, updated_at = $3 WHERE id = $1`,
			id, string(status), time.Now().UTC(),
		)
	} else {
		res, err = r.db.ExecContext(ctx,
			`UPDATE records SET `+statusCol+` = $2, `+notesCol+` = $3, updated_at = $4 WHERE id = $1`,
			id, string(status), notes, time.Now().UTC(),
		)
	}
	if err != nil {
		return fmt.Errorf("update %s status: %w", stage, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.WrapError(domain.ErrRecordNotFound, "update status", fmt.Errorf("id %s", id))
	}
	return nil
}

// ApplyStatusUpdates submits all updates inside one transaction. Missing
// records are reported per id and do not roll back the rest; a SQL-level
// failure aborts the whole transaction.
func (r *RecordRepository) ApplyStatusUpdates(ctx context.Context, updates []ports.StatusUpdate) (ports.BulkUpdateReport, error) {
	if len(updates) == 0 {
		return ports.BulkUpdateReport{}, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return ports.BulkUpdateReport{}, fmt.Errorf("begin update tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	now := time.Now().UTC()
	var report ports.BulkUpdateReport
	for _, u := range updates {
		statusCol, notesCol, err := stageColumns(u.Stage)
		if err != nil {
			report.Failures = append(report.Failures, domain.PersistFailure{RecordID: u.RecordID, Reason: err.Error()})
			continue
		}

		var res sql.Result
		if notesCol == "" {
			res, err = tx.ExecContext(ctx,
				`UPDATE records SET `+statusCol+` = $2, updated_at = $3 WHERE id = $1`,
				u.RecordID, string(u.Status), now,
			)
		} else {
			res, err = tx.ExecContext(ctx,
				`UPDATE records SET `+statusCol+` = $2, `+notesCol+` = $3, updated_at = $4 WHERE id = $1`,
				u.RecordID, string(u.Status), u.Notes, now,
			)
		}
		if err != nil {
			return ports.BulkUpdateReport{}, fmt.Errorf("update record %s: %w", u.RecordID, err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			report.Failures = append(report.Failures, domain.PersistFailure{RecordID: u.RecordID, Reason: "record not found"})
			continue
		}
		report.Applied++
	}

	if err := tx.Commit(); err != nil {
		return ports.BulkUpdateReport{}, fmt.Errorf("commit update tx: %w", err)
	}
	return report, nil
}

func (r *RecordRepository) ApplyDuplicateMarks(ctx context.Context, marks []ports.DuplicateMark) error {
	if len(marks) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin marks tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	now := time.Now().UTC()
	for _, m := range marks {
		_, err := tx.ExecContext(ctx, `
UPDATE records
SET is_duplicate = TRUE, duplicate_group_id = $2, is_primary = $3, updated_at = $4
WHERE id = $1
`, m.RecordID, m.GroupID, m.IsPrimary, now)
		if err != nil {
			return fmt.Errorf("mark record %s: %w", m.RecordID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit marks tx: %w", err)
	}
	return nil
}

func (r *RecordRepository) ResetStageStatus(ctx context.Context, ids []string, stage domain.Stage) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	statusCol, _, err := stageColumns(stage)
	if err != nil {
		return 0, err
	}

	res, err := r.db.ExecContext(ctx,
		`UPDATE records SET `+statusCol+` = $2, updated_at = $3 WHERE id = ANY($1)`,
		ids, string(domain.StatusPending), time.Now().UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("reset %s status: %w", stage, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("reset rows affected: %w", err)
	}
	return n, nil
}

func stageColumns(stage domain.Stage) (statusCol, notesCol string, err error) {
	switch stage {
	case domain.StageDedup:
		return "dedup_status", "", nil
	case domain.StageTitle:
		return "title_status", "title_notes", nil
	case domain.StageAbstract:
		return "abstract_status", "abstract_notes", nil
	default:
		return "", "", domain.WrapError(domain.ErrInvalidInput, "stage columns", fmt.Errorf("unknown stage %q", stage))
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*domain.Record, error) {
	var rec domain.Record
	var extraRaw []byte
	var dedupStatus, titleStatus, abstractStatus string

	err := row.Scan(
		&rec.ID, &rec.Title, &rec.Abstract, &rec.DOI,
		&dedupStatus, &rec.IsDuplicate, &rec.DuplicateGroupID, &rec.IsPrimary,
		&titleStatus, &rec.TitleNotes, &abstractStatus, &rec.AbstractNotes,
		&extraRaw, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(extraRaw) > 0 {
		if err := json.Unmarshal(extraRaw, &rec.Extra); err != nil {
			return nil, fmt.Errorf("unmarshal extra: %w", err)
		}
	}
	rec.DedupStatus = domain.StageStatus(dedupStatus)
	rec.TitleStatus = domain.StageStatus(titleStatus)
	rec.AbstractStatus = domain.StageStatus(abstractStatus)
	return &rec, nil
}

func extraOrEmpty(extra map[string]string) map[string]string {
	if extra == nil {
		return map[string]string{}
	}
	return extra
}
