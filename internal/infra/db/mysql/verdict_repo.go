package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/annualguard/annualguard/internal/domain/analysis"
	"github.com/annualguard/annualguard/internal/domain/flags"
	"github.com/annualguard/annualguard/internal/domain/verdict"
)

type VerdictRepository struct {
	db *sql.DB
}

func NewVerdictRepository(db *sql.DB) *VerdictRepository {
	return &VerdictRepository{db: db}
}

// Save insert/update Verdict record. Category scores dan red flags disimpan
// sebagai JSON column; severity counts dipecah supaya bisa di-query.
func (r *VerdictRepository) Save(ctx context.Context, v *verdict.Verdict) error {
	const q = `
INSERT INTO report_verdicts
(id, tenant_id, document_hash, company, fiscal_year,
 overall_score, risk_level,
 critical, high, medium, low, flags_total,
 category_scores_json, red_flags_json, skipped_json,
 thresholds_version, prompt_tokens, completion_tokens, vendor_ocr_calls,
 artifact_url, created_at)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
ON DUPLICATE KEY UPDATE
 overall_score=VALUES(overall_score), risk_level=VALUES(risk_level),
 critical=VALUES(critical), high=VALUES(high), medium=VALUES(medium), low=VALUES(low),
 flags_total=VALUES(flags_total),
 category_scores_json=VALUES(category_scores_json),
 red_flags_json=VALUES(red_flags_json),
 skipped_json=VALUES(skipped_json),
 artifact_url=VALUES(artifact_url);
`
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

// Get by ID + Tenant
func (r *VerdictRepository) Get(ctx context.Context, tenant string, id verdict.VerdictID) (*verdict.Verdict, error) {
	row := r.db.QueryRowContext(ctx, selectCols+`WHERE tenant_id=? AND id=? LIMIT 1;`, tenant, id)
	return scanVerdict(row)
}

// FindByHash dedup cache lookup: verdict terbaru untuk satu document hash
func (r *VerdictRepository) FindByHash(ctx context.Context, tenant, hash string) (*verdict.Verdict, error) {
	row := r.db.QueryRowContext(ctx,
		selectCols+`WHERE tenant_id=? AND document_hash=? ORDER BY created_at DESC LIMIT 1;`,
		tenant, hash)
	v, err := scanVerdict(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, analysis.ErrNoCachedVerdict
	}
	return v, err
}

// Latest verdicts per tenant
func (r *VerdictRepository) Latest(ctx context.Context, tenant string, limit int) ([]*verdict.Verdict, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.QueryContext(ctx,
		selectCols+`WHERE tenant_id=? ORDER BY created_at DESC LIMIT ?;`,
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
