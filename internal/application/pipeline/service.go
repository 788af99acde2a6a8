package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/annualguard/annualguard/internal/application"
	"github.com/annualguard/annualguard/internal/application/detect"
	"github.com/annualguard/annualguard/internal/application/extraction"
	appfin "github.com/annualguard/annualguard/internal/application/financials"
	appsec "github.com/annualguard/annualguard/internal/application/sections"
	"github.com/annualguard/annualguard/internal/domain/analysis"
	"github.com/annualguard/annualguard/internal/domain/document"
	"github.com/annualguard/annualguard/internal/domain/financials"
	"github.com/annualguard/annualguard/internal/domain/flags"
	domsec "github.com/annualguard/annualguard/internal/domain/sections"
	"github.com/annualguard/annualguard/internal/domain/verdict"
	"github.com/annualguard/annualguard/internal/middleware"
)

// ErrJobNotFound unknown job id untuk tenant
var ErrJobNotFound = errors.New("analysis job not found")

// Service orchestrates the whole document-to-verdict run as a linear state
// machine. Designed to be used concurrently and is thread-safe.
type Service struct {
	Repo       analysis.VerdictRepository
	Failures   analysis.FailureRepository
	Store      analysis.DocumentStore
	Usage      analysis.UsageReporter
	Extractor  *extraction.Service
	Locator    *appsec.Locator
	Financials *appfin.Extractor
	Detector   *detect.Runner
	Catalog    []flags.Detector
	Clock      application.Clock

	TokenBudget       int
	StageTimeout      time.Duration
	GlobalTimeout     time.Duration
	ThresholdsVersion string

	mu       sync.Mutex
	jobs     map[analysis.JobID]*analysis.Job
	subs     map[analysis.JobID][]chan analysis.ProgressEvent
	inflight map[string]analysis.JobID // tenant+hash → running job
}

// AnalyzeCommand input untuk satu submission
type AnalyzeCommand struct {
	TenantID   string
	Company    string
	FiscalYear int
	Content    []byte
	SkipCache  bool
}

// Submit registers a job and starts the run in the background. Submission
// returns immediately; progress datang lewat Subscribe / polling Job.
// Dua submission concurrent dengan hash sama di-collapse ke satu run.
func (s *Service) Submit(cmd AnalyzeCommand) (*analysis.Job, error) {
	if len(cmd.Content) == 0 {
		return nil, fmt.Errorf("empty document")
	}
	hash := document.HashContent(cmd.Content)
	key := cmd.TenantID + "/" + hash

	s.mu.Lock()
	if s.jobs == nil {
		s.jobs = make(map[analysis.JobID]*analysis.Job)
		s.subs = make(map[analysis.JobID][]chan analysis.ProgressEvent)
		s.inflight = make(map[string]analysis.JobID)
	}
	if existing, ok := s.inflight[key]; ok {
		job := snapshot(s.jobs[existing])
		s.mu.Unlock()
		return job, nil
	}

	job := &analysis.Job{
		ID:           analysis.JobID(uuid.New().String()),
		TenantID:     cmd.TenantID,
		DocumentHash: hash,
		Company:      cmd.Company,
		FiscalYear:   cmd.FiscalYear,
		State:        analysis.StateQueued,
		SubmittedAt:  s.Clock.Now(),
	}
	s.jobs[job.ID] = job
	s.inflight[key] = job.ID
	s.mu.Unlock()

	s.emit(job.ID, analysis.StateQueued, "queued")

	// context.Background supaya run gak mati bareng request context
	go s.run(job.ID, key, cmd, hash)

	return snapshot(job), nil
}

// Job returns a point-in-time copy of one job.
func (s *Service) Job(tenant string, id analysis.JobID) (*analysis.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok || job.TenantID != tenant {
		return nil, ErrJobNotFound
	}
	return snapshot(job), nil
}

// Subscribe streams progress events for one job, replaying what already
// happened. Channel ditutup saat job terminal; cancel wajib dipanggil caller.
func (s *Service) Subscribe(tenant string, id analysis.JobID) (<-chan analysis.ProgressEvent, func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok || job.TenantID != tenant {
		return nil, nil, ErrJobNotFound
	}

	ch := make(chan analysis.ProgressEvent, 64)
	for _, ev := range job.Events {
		ch <- ev
	}
	if job.State.Terminal() {
		close(ch)
		return ch, func() {}, nil
	}

	s.subs[id] = append(s.subs[id], ch)
	cancel := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		list := s.subs[id]
		for i, c := range list {
			if c == ch {
				s.subs[id] = append(list[:i], list[i+1:]...)
				return
			}
		}
	}
	return ch, cancel, nil
}

// Cached verdict lookup per document hash (cache inspection endpoint).
func (s *Service) Cached(ctx context.Context, tenant, hash string) (*verdict.Verdict, error) {
	return s.Repo.FindByHash(ctx, tenant, hash)
}

// Latest verdicts for a tenant, newest first.
func (s *Service) Latest(ctx context.Context, tenant string, limit int) ([]*verdict.Verdict, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.Repo.Latest(ctx, tenant, limit)
}

// JobFailures audit trail kegagalan stage untuk satu job
func (s *Service) JobFailures(ctx context.Context, tenant string, id analysis.JobID) ([]*analysis.Failure, error) {
	return s.Failures.ListByJob(ctx, tenant, string(id), 50)
}

//
// ==== PIPELINE RUN ====
//

func (s *Service) run(id analysis.JobID, inflightKey string, cmd AnalyzeCommand, hash string) {
	timeout := s.GlobalTimeout
	if timeout <= 0 {
		timeout = 15 * time.Minute
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	middleware.IncrementAnalysesRunning()
	meter := application.NewMeter(s.TokenBudget)
	defer func() {
		middleware.DecrementAnalysesRunning()
		s.mu.Lock()
		delete(s.inflight, inflightKey)
		s.mu.Unlock()
		if s.Usage != nil {
			s.Usage.Report(context.Background(), cmd.TenantID, id, meter.Usage())
		}
	}()

	// dedup cache: hash sama = verdict sama, gak usah jalanin pipeline lagi
	if !cmd.SkipCache {
		if cached, err := s.Repo.FindByHash(ctx, cmd.TenantID, hash); err == nil {
			s.complete(id, cached, true)
			return
		} else if !errors.Is(err, analysis.ErrNoCachedVerdict) {
			log.Printf("job %s: cache lookup failed, running full pipeline: %v", id, err)
		}
	}

	doc := &document.SourceDocument{
		Hash:       hash,
		Content:    cmd.Content,
		Company:    cmd.Company,
		FiscalYear: cmd.FiscalYear,
	}

	// EXTRACTING
	s.emit(id, analysis.StateExtracting, "extracting page text")
	if s.Store != nil {
		if _, err := s.Store.PutDocument(ctx, cmd.TenantID+"/"+hash+".pdf", cmd.Content); err != nil {
			// source archiving gagal bukan alasan gagalin analysis
			s.recordFailure(cmd.TenantID, id, "archive", err)
		}
	}
	var pages []document.Page
	err := s.stage(ctx, func(ctx context.Context) error {
		var err error
		pages, err = s.Extractor.Extract(ctx, meter, doc)
		return err
	})
	if err != nil {
		s.fail(cmd.TenantID, id, "extraction", err)
		return
	}
	doc.PageCount = len(pages)

	// LOCATING_SECTIONS
	s.emit(id, analysis.StateLocatingSections, "locating report sections")
	var set domsec.Set
	err = s.stage(ctx, func(ctx context.Context) error {
		var err error
		set, err = s.Locator.Locate(ctx, meter, pages)
		return err
	})
	if err != nil {
		s.fail(cmd.TenantID, id, "sections", err)
		return
	}

	// EXTRACTING_FINANCIALS
	s.emit(id, analysis.StateExtractingFinancials, "parsing financial statements")
	var facts *financials.FactSet
	err = s.stage(ctx, func(ctx context.Context) error {
		var err error
		facts, err = s.Financials.Extract(ctx, pages, set)
		return err
	})
	if err != nil {
		s.fail(cmd.TenantID, id, "financials", err)
		return
	}

	// DETECTING_FLAGS
	s.emit(id, analysis.StateDetectingFlags, "running red flag detectors")
	in := flags.Inputs{Facts: facts, Sections: set, Pages: pages, FiscalYear: cmd.FiscalYear}
	var results []flags.Result
	var skipped []string
	err = s.stage(ctx, func(ctx context.Context) error {
		var err error
		results, skipped, err = s.Detector.Run(ctx, meter, s.Catalog, in)
		return err
	})
	if err != nil {
		s.fail(cmd.TenantID, id, "detection", err)
		return
	}

	// SCORING — pure, no timeout needed
	s.emit(id, analysis.StateScoring, "computing risk score")
	overall, level, categoryScores, counts := verdict.Score(results, s.Catalog)

	usage := meter.Usage()
	v := &verdict.Verdict{
		ID:                verdict.VerdictID(uuid.New().String()),
		TenantID:          cmd.TenantID,
		DocumentHash:      hash,
		Company:           cmd.Company,
		FiscalYear:        cmd.FiscalYear,
		OverallScore:      overall,
		RiskLevel:         level,
		CategoryScores:    categoryScores,
		Counts:            counts,
		Flags:             triggered(results),
		SkippedDetectors:  skipped,
		ThresholdsVersion: s.ThresholdsVersion,
		PromptTokens:      usage.PromptTokens,
		CompletionTokens:  usage.CompletionTokens,
		VendorOCRCalls:    usage.VendorOCRCalls,
		CreatedAt:         s.Clock.Now(),
	}

	if s.Store != nil {
		payload, merr := json.Marshal(v)
		if merr == nil {
			url, uerr := s.Store.PutVerdictJSON(ctx, cmd.TenantID+"/"+string(v.ID)+".json", payload)
			if uerr != nil {
				s.recordFailure(cmd.TenantID, id, "artifact", uerr)
			} else {
				v.ArtifactURL = url
			}
		}
	}

	if err := s.Repo.Save(ctx, v); err != nil {
		s.fail(cmd.TenantID, id, "persist", err)
		return
	}
	s.complete(id, v, false)
}

// stage wraps one pipeline step with the per-stage timeout and the
// between-stage cancellation check.
func (s *Service) stage(ctx context.Context, fn func(context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.StageTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.StageTimeout)
		defer cancel()
	}
	return fn(ctx)
}

// triggered filters the detector output down to fired flags; non-triggers
// stay out of the stored verdict.
func triggered(results []flags.Result) []flags.Result {
	out := make([]flags.Result, 0, len(results))
	for _, r := range results {
		if r.Triggered {
			out = append(out, r)
		}
	}
	return out
}

//
// ==== STATE / EVENTS ====
//

// emit transitions the job and fans the event out to subscribers.
func (s *Service) emit(id analysis.JobID, st analysis.State, step string) {
	ev := analysis.ProgressEvent{Percent: st.Percent(), Step: step, State: st, At: s.Clock.Now()}

	s.mu.Lock()
	job, ok := s.jobs[id]
	if !ok {
		s.mu.Unlock()
		return
	}
	job.State = st
	job.Events = append(job.Events, ev)

	list := s.subs[id]
	for _, ch := range list {
		select {
		case ch <- ev:
		default: // subscriber lambat, drop daripada blokir pipeline
		}
	}
	if st.Terminal() {
		for _, ch := range list {
			close(ch)
		}
		delete(s.subs, id)
	}
	s.mu.Unlock()
}

func (s *Service) complete(id analysis.JobID, v *verdict.Verdict, cacheHit bool) {
	s.mu.Lock()
	if job, ok := s.jobs[id]; ok {
		job.Verdict = v
		job.CacheHit = cacheHit
	}
	s.mu.Unlock()
	step := "completed"
	if cacheHit {
		step = "completed (cached verdict)"
	}
	s.emit(id, analysis.StateCompleted, step)
}

func (s *Service) fail(tenant string, id analysis.JobID, stage string, err error) {
	log.Printf("job %s: stage %s failed: %v", id, stage, err)
	middleware.IncrementAnalysesFailed()
	s.recordFailure(tenant, id, stage, err)
	s.mu.Lock()
	if job, ok := s.jobs[id]; ok {
		job.FailureReason = fmt.Sprintf("%s: %v", stage, err)
	}
	s.mu.Unlock()
	s.emit(id, analysis.StateFailed, "failed at "+stage)
}

func (s *Service) recordFailure(tenant string, id analysis.JobID, stage string, err error) {
	if s.Failures == nil {
		return
	}
	f := &analysis.Failure{
		TenantID:  tenant,
		JobID:     string(id),
		Stage:     stage,
		Message:   err.Error(),
		CreatedAt: s.Clock.Now(),
	}
	if serr := s.Failures.Save(context.Background(), f); serr != nil {
		log.Printf("job %s: failure audit write failed: %v", id, serr)
	}
}

// snapshot copy supaya caller gak lihat mutasi berikutnya
func snapshot(job *analysis.Job) *analysis.Job {
	cp := *job
	cp.Events = append([]analysis.ProgressEvent(nil), job.Events...)
	return &cp
}
