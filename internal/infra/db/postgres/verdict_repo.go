package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"github.com/annualguard/annualguard/internal/domain/analysis"
	"github.com/annualguard/annualguard/internal/domain/flags"
	"github.com/annualguard/annualguard/internal/domain/verdict"
)

// Connect opens a postgres pool with the same sizing as the mysql driver.
func Connect(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx2, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx2); err != nil {
		return nil, err
	}
	return db, nil
}

type VerdictRepository struct {
	db *sql.DB
}

func NewVerdictRepository(db *sql.DB) *VerdictRepository { return &VerdictRepository{db: db} }

func (r *VerdictRepository) Save(ctx context.Context, v *verdict.Verdict) error {
	const q = `
INSERT INTO report_verdicts
(id, tenant_id, document_hash, company, fiscal_year,
 overall_score, risk_level,
 critical, high, medium, low, flags_total,
 category_scores_json, red_flags_json, skipped_json,
 thresholds_version, prompt_tokens, completion_tokens, vendor_ocr_calls,
 artifact_url, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,
        $8,$9,$10,$11,$12,
        $13,$14,$15,
        $16,$17,$18,$19,
        $20,$21)
ON CONFLICT (id) DO UPDATE SET
 overall_score = EXCLUDED.overall_score,
 risk_level = EXCLUDED.risk_level,
 critical = EXCLUDED.critical, high = EXCLUDED.high,
 medium = EXCLUDED.medium, low = EXCLUDED.low,
 flags_total = EXCLUDED.flags_total,
 category_scores_json = EXCLUDED.category_scores_json,
 red_flags_json = EXCLUDED.red_flags_json,
 skipped_json = EXCLUDED.skipped_json,
 artifact_url = EXCLUDED.artifact_url;`

	tenant := stringOrDash(v.TenantID)
	created := v.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	scores, err := json.Marshal(v.CategoryScores)
	if err != nil {
		return err
	}
	redFlags, err := json.Marshal(v.Flags)
	if err != nil {
		return err
	}
	skipped, err := json.Marshal(v.SkippedDetectors)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, q,
		v.ID, tenant, v.DocumentHash, v.Company, v.FiscalYear,
		v.OverallScore, v.RiskLevel,
		v.Counts.Critical, v.Counts.High, v.Counts.Medium, v.Counts.Low, v.Counts.Total,
		scores, redFlags, skipped,
		v.ThresholdsVersion, v.PromptTokens, v.CompletionTokens, v.VendorOCRCalls,
		v.ArtifactURL, created,
	)
	return err
}

const selectCols = `
SELECT id, tenant_id, document_hash, company, fiscal_year,
       overall_score, risk_level,
       critical, high, medium, low, flags_total,
       category_scores_json, red_flags_json, skipped_json,
       thresholds_version, prompt_tokens, completion_tokens, vendor_ocr_calls,
       artifact_url, created_at
FROM report_verdicts
`

func (r *VerdictRepository) Get(ctx context.Context, tenant string, id verdict.VerdictID) (*verdict.Verdict, error) {
	row := r.db.QueryRowContext(ctx, selectCols+`WHERE tenant_id=$1 AND id=$2 LIMIT 1;`, tenant, id)
	return scanVerdict(row)
}

func (r *VerdictRepository) FindByHash(ctx context.Context, tenant, hash string) (*verdict.Verdict, error) {
	row := r.db.QueryRowContext(ctx,
		selectCols+`WHERE tenant_id=$1 AND document_hash=$2 ORDER BY created_at DESC LIMIT 1;`,
		tenant, hash)
	v, err := scanVerdict(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, analysis.ErrNoCachedVerdict
	}
	return v, err
}

func (r *VerdictRepository) Latest(ctx context.Context, tenant string, limit int) ([]*verdict.Verdict, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.QueryContext(ctx,
		selectCols+`WHERE tenant_id=$1 ORDER BY created_at DESC LIMIT $2;`,
		tenant, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*verdict.Verdict
	for rows.Next() {
		v, err := scanVerdict(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanVerdict(row rowScanner) (*verdict.Verdict, error) {
	var v verdict.Verdict
	var crit, hi, med, lo, tot int
	var scores, redFlags, skipped []byte
	if err := row.Scan(
		&v.ID, &v.TenantID, &v.DocumentHash, &v.Company, &v.FiscalYear,
		&v.OverallScore, &v.RiskLevel,
		&crit, &hi, &med, &lo, &tot,
		&scores, &redFlags, &skipped,
		&v.ThresholdsVersion, &v.PromptTokens, &v.CompletionTokens, &v.VendorOCRCalls,
		&v.ArtifactURL, &v.CreatedAt,
	); err != nil {
		return nil, err
	}
	v.Counts = flags.SeverityCounts{Critical: crit, High: hi, Medium: med, Low: lo, Total: tot}
	if err := json.Unmarshal(scores, &v.CategoryScores); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(redFlags, &v.Flags); err != nil {
		return nil, err
	}
	if len(skipped) > 0 {
		if err := json.Unmarshal(skipped, &v.SkippedDetectors); err != nil {
			return nil, err
		}
	}
	return &v, nil
}

type FailureRepository struct {
	db *sql.DB
}

func NewFailureRepository(db *sql.DB) *FailureRepository { return &FailureRepository{db: db} }

func (r *FailureRepository) Save(ctx context.Context, f *analysis.Failure) error {
	const q = `
INSERT INTO analysis_failures
  (tenant_id, job_id, stage, message, created_at)
VALUES ($1,$2,$3,$4,$5)
`
	created := f.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	_, err := r.db.ExecContext(ctx, q,
		stringOrDash(f.TenantID), stringOrDash(f.JobID), stringOrDash(f.Stage),
		stringOrDash(f.Message), created)
	return err
}

func (r *FailureRepository) ListByJob(ctx context.Context, tenant string, jobID string, limit int) ([]*analysis.Failure, error) {
	if limit <= 0 {
		limit = 20
	}
	const q = `
SELECT id, tenant_id, job_id, stage, message, created_at
FROM analysis_failures
WHERE tenant_id = $1 AND job_id = $2
ORDER BY created_at DESC, id DESC
LIMIT $3;`
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

func stringOrDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
