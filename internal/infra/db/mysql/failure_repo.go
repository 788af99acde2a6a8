package mysql

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/annualguard/annualguard/internal/domain/analysis"
)

type FailureRepository struct {
	db *sql.DB
}

func NewFailureRepository(db *sql.DB) *FailureRepository { return &FailureRepository{db: db} }

func (r *FailureRepository) Save(ctx context.Context, f *analysis.Failure) error {
	const q = `
INSERT INTO analysis_failures
  (tenant_id, job_id, stage, message, created_at)
VALUES (?,?,?,?,?)
`
	tenant := stringOrDash(f.TenantID)
	job := stringOrDash(f.JobID)
	stage := stringOrDash(f.Stage)
	msg := f.Message
	if strings.TrimSpace(msg) == "" {
		msg = "-"
	}
	created := f.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	_, err := r.db.ExecContext(ctx, q, tenant, job, stage, msg, created)
	return err
}

func (r *FailureRepository) ListByJob(ctx context.Context, tenant string, jobID string, limit int) ([]*analysis.Failure, error) {
	if limit <= 0 {
		limit = 20
	}
	const q = `
SELECT id, tenant_id, job_id, stage, message, created_at
FROM analysis_failures
WHERE tenant_id = ? AND job_id = ?
ORDER BY created_at DESC, id DESC
LIMIT ?;`
	rows, err := r.db.QueryContext(ctx, q, tenant, jobID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*analysis.Failure
	for rows.Next() {
		var f analysis.Failure
		if err := rows.Scan(&f.ID, &f.TenantID, &f.JobID, &f.Stage, &f.Message, &f.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &f)
	}
	return out, rows.Err()
}

var _ analysis.FailureRepository = (*FailureRepository)(nil)
