package mysql

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annualguard/annualguard/internal/domain/analysis"
	"github.com/annualguard/annualguard/internal/domain/flags"
	"github.com/annualguard/annualguard/internal/domain/verdict"
)

var verdictCols = []string{
	"id", "tenant_id", "document_hash", "company", "fiscal_year",
	"overall_score", "risk_level",
	"critical", "high", "medium", "low", "flags_total",
	"category_scores_json", "red_flags_json", "skipped_json",
	"thresholds_version", "prompt_tokens", "completion_tokens", "vendor_ocr_calls",
	"artifact_url", "created_at",
}

func sampleVerdict() *verdict.Verdict {
	metric := 0.62
	return &verdict.Verdict{
		ID:           "v-1",
		TenantID:     "acme",
		DocumentHash: "deadbeef",
		Company:      "Acme Ltd",
		FiscalYear:   2024,
		OverallScore: 41,
		RiskLevel:    verdict.RiskModerate,
		CategoryScores: map[flags.Category]int{
			flags.CategoryAuditor:  27,
			flags.CategoryPromoter: 66,
		},
		Counts: flags.SeverityCounts{Critical: 1, High: 1, Total: 2},
		Flags: []flags.Result{
			{
				FlagID:      "promoter_pledge_high",
				Category:    flags.CategoryPromoter,
				Severity:    flags.SeverityHigh,
				Triggered:   true,
				Confidence:  0.85,
				Evidence:    "62% of promoter holding pledged",
				Page:        212,
				MetricValue: &metric,
			},
		},
		SkippedDetectors:  []string{"mdna_tone_shift"},
		ThresholdsVersion: "v1",
		PromptTokens:      1200,
		CompletionTokens:  300,
		VendorOCRCalls:    2,
		ArtifactURL:       "https://minio.local/verdicts/v-1.json",
		CreatedAt:         time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC),
	}
}

func verdictRow(t *testing.T, v *verdict.Verdict) *sqlmock.Rows {
	t.Helper()
	scores, err := json.Marshal(v.CategoryScores)
	require.NoError(t, err)
	redFlags, err := json.Marshal(v.Flags)
	require.NoError(t, err)
	skipped, err := json.Marshal(v.SkippedDetectors)
	require.NoError(t, err)
	return sqlmock.NewRows(verdictCols).AddRow(
		string(v.ID), v.TenantID, v.DocumentHash, v.Company, v.FiscalYear,
		v.OverallScore, string(v.RiskLevel),
		v.Counts.Critical, v.Counts.High, v.Counts.Medium, v.Counts.Low, v.Counts.Total,
		scores, redFlags, skipped,
		v.ThresholdsVersion, v.PromptTokens, v.CompletionTokens, v.VendorOCRCalls,
		v.ArtifactURL, v.CreatedAt,
	)
}

func TestVerdictRepositorySave(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	v := sampleVerdict()
	mock.ExpectExec("INSERT INTO report_verdicts").
		WithArgs(
			v.ID, v.TenantID, v.DocumentHash, v.Company, v.FiscalYear,
			v.OverallScore, v.RiskLevel,
			v.Counts.Critical, v.Counts.High, v.Counts.Medium, v.Counts.Low, v.Counts.Total,
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
			v.ThresholdsVersion, v.PromptTokens, v.CompletionTokens, v.VendorOCRCalls,
			v.ArtifactURL, v.CreatedAt,
		).
		WillReturnResult(sqlmock.NewResult(1, 1))

	repo := NewVerdictRepository(db)
	require.NoError(t, repo.Save(context.Background(), v))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVerdictRepositoryGetRoundTrip(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	v := sampleVerdict()
	mock.ExpectQuery("SELECT (.+) FROM report_verdicts").
		WithArgs("acme", v.ID).
		WillReturnRows(verdictRow(t, v))

	repo := NewVerdictRepository(db)
	got, err := repo.Get(context.Background(), "acme", v.ID)
	require.NoError(t, err)

	assert.Equal(t, v.OverallScore, got.OverallScore)
	assert.Equal(t, v.RiskLevel, got.RiskLevel)
	assert.Equal(t, v.CategoryScores, got.CategoryScores)
	assert.Equal(t, v.Counts, got.Counts)
	require.Len(t, got.Flags, 1)
	assert.Equal(t, "promoter_pledge_high", got.Flags[0].FlagID)
	assert.Equal(t, 212, got.Flags[0].Page)
	require.NotNil(t, got.Flags[0].MetricValue)
	assert.InDelta(t, 0.62, *got.Flags[0].MetricValue, 1e-9)
	assert.Equal(t, v.SkippedDetectors, got.SkippedDetectors)
	assert.Equal(t, v.ArtifactURL, got.ArtifactURL)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVerdictRepositoryFindByHashMiss(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT (.+) FROM report_verdicts").
		WithArgs("acme", "deadbeef").
		WillReturnRows(sqlmock.NewRows(verdictCols))

	repo := NewVerdictRepository(db)
	_, err = repo.FindByHash(context.Background(), "acme", "deadbeef")
	assert.ErrorIs(t, err, analysis.ErrNoCachedVerdict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVerdictRepositoryLatest(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	v := sampleVerdict()
	mock.ExpectQuery("SELECT (.+) FROM report_verdicts").
		WithArgs("acme", 20).
		WillReturnRows(verdictRow(t, v))

	repo := NewVerdictRepository(db)
	// limit <=0 dinormalisasi ke default
	out, err := repo.Latest(context.Background(), "acme", 0)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, v.ID, out[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFailureRepositorySaveAndList(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	created := time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)
	mock.ExpectExec("INSERT INTO analysis_failures").
		WithArgs("acme", "job-1", "extraction", "document unreadable: bad xref", created).
		WillReturnResult(sqlmock.NewResult(1, 1))

	repo := NewFailureRepository(db)
	err = repo.Save(context.Background(), &analysis.Failure{
		TenantID:  "acme",
		JobID:     "job-1",
		Stage:     "extraction",
		Message:   "document unreadable: bad xref",
		CreatedAt: created,
	})
	require.NoError(t, err)

	mock.ExpectQuery("SELECT (.+) FROM analysis_failures").
		WithArgs("acme", "job-1", 50).
		WillReturnRows(sqlmock.NewRows([]string{"id", "tenant_id", "job_id", "stage", "message", "created_at"}).
			AddRow(1, "acme", "job-1", "extraction", "document unreadable: bad xref", created))

	rows, err := repo.ListByJob(context.Background(), "acme", "job-1", 50)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "extraction", rows[0].Stage)
	assert.NoError(t, mock.ExpectationsWereMet())
}
