package postgres

import (
    "context"
    "database/sql"
    "encoding/json"
    "strings"
    "time"

    domain "github.com/bryanwahyu/blobsense/internal/domain/analysis"
)

type AnalysisRepository struct { db *sql.DB }

var _ domain.Repository = (*AnalysisRepository)(nil)

func NewAnalysisRepository(db *sql.DB) *AnalysisRepository { return &AnalysisRepository{db: db} }

const selectColumns = `
SELECT id, object_name, object_size, kind, status, result_json, error_kind,
       error_message, summary, result_url, duration_ms, created_at
FROM blob_analyses`

// Save inserts or updates an analysis record
func (r *AnalysisRepository) Save(ctx context.Context, a *domain.Record) error {
    const q = `
INSERT INTO blob_analyses
(id, object_name, object_size, kind, status, result_json, error_kind,
 error_message, summary, result_url, duration_ms, created_at)
VALUES ($1,$2,$3,$4,$5,$6::jsonb,$7,$8,$9,$10,$11,$12)
ON CONFLICT (id) DO UPDATE SET
 status = EXCLUDED.status,
 result_json = EXCLUDED.result_json,
 error_kind = EXCLUDED.error_kind,
 error_message = EXCLUDED.error_message,
 summary = EXCLUDED.summary,
 result_url = EXCLUDED.result_url,
 duration_ms = EXCLUDED.duration_ms;`

    created := a.CreatedAt
    if created.IsZero() { created = time.Now() }

    _, err := r.db.ExecContext(ctx, q,
        a.ID, stringOrDash(a.ObjectName), a.ObjectSize, stringOrDash(string(a.Kind)), stringOrDash(string(a.Status)),
        jsonOrNull(a.Result), string(a.ErrorKind),
        a.Error, a.Summary, a.ResultURL, a.DurationMS, created,
    )
    return err
}

// Get by ID
func (r *AnalysisRepository) Get(ctx context.Context, id domain.RecordID) (*domain.Record, error) {
    row := r.db.QueryRowContext(ctx, selectColumns+` WHERE id=$1 LIMIT 1;`, id)
    return scanRecord(row)
}

// Latest records, newest first
func (r *AnalysisRepository) Latest(ctx context.Context, limit int) ([]*domain.Record, error) {
    if limit <= 0 { limit = 20 }
    rows, err := r.db.QueryContext(ctx, selectColumns+` ORDER BY created_at DESC, id DESC LIMIT $1;`, limit)
    if err != nil { return nil, err }
    defer rows.Close()

    var out []*domain.Record
    for rows.Next() {
        a, err := scanRecord(rows)
        if err != nil { return nil, err }
        out = append(out, a)
    }
    return out, rows.Err()
}

// Summary counts records per kind and status since N days
func (r *AnalysisRepository) Summary(ctx context.Context, sinceDays int) ([]domain.KindSummary, error) {
    if sinceDays <= 0 { sinceDays = 7 }
    const q = `
SELECT kind, status, COUNT(*)
FROM blob_analyses
WHERE created_at >= NOW() - make_interval(days => $1::int)
GROUP BY kind, status
ORDER BY kind, status;`
    rows, err := r.db.QueryContext(ctx, q, sinceDays)
    if err != nil { return nil, err }
    defer rows.Close()

    var out []domain.KindSummary
    for rows.Next() {
        var s domain.KindSummary
        if err := rows.Scan(&s.Kind, &s.Status, &s.Count); err != nil { return nil, err }
        out = append(out, s)
    }
    return out, rows.Err()
}

type scanner interface{ Scan(dest ...any) error }

func scanRecord(s scanner) (*domain.Record, error) {
    var a domain.Record
    var result []byte // NULL stays nil
    if err := s.Scan(
        &a.ID, &a.ObjectName, &a.ObjectSize, &a.Kind, &a.Status, &result, &a.ErrorKind,
        &a.Error, &a.Summary, &a.ResultURL, &a.DurationMS, &a.CreatedAt,
    ); err != nil {
        return nil, err
    }
    a.Result = result
    return &a, nil
}

func stringOrDash(s string) string {
    if strings.TrimSpace(s) == "" { return "-" }
    return s
}

// jsonOrNull stores missing or invalid results as SQL NULL
func jsonOrNull(raw json.RawMessage) any {
    if len(raw) == 0 || !json.Valid(raw) { return nil }
    return string(raw)
}
