package detect

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/annualguard/annualguard/internal/application"
	domai "github.com/annualguard/annualguard/internal/domain/ai"
	"github.com/annualguard/annualguard/internal/domain/financials"
	"github.com/annualguard/annualguard/internal/domain/flags"
	"github.com/annualguard/annualguard/internal/infra/ai/prompt"
)

// Runner executes the detector catalog. Detectors are independent — no
// ordering dependency — jadi dieksekusi paralel di bounded pool; kegagalan
// satu detector tidak pernah memblokir yang lain.
type Runner struct {
	AI          domai.Client
	Workers     int
	CallTimeout time.Duration
	Retry       application.RetryPolicy
}

// Run returns one result per detector in catalog order, plus the ids of
// detectors that degraded (skipped) for observability. Hanya budget
// exhaustion dan cancellation yang menghentikan run.
func (r *Runner) Run(ctx context.Context, meter *application.Meter, catalog []flags.Detector, in flags.Inputs) ([]flags.Result, []string, error) {
	results := make([]flags.Result, len(catalog))

	var mu sync.Mutex
	var skipped []string

	workers := r.Workers
	if workers <= 0 {
		workers = 4
	}
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(workers)

	for i, d := range catalog {
		i, d := i, d
		eg.Go(func() error {
			switch d.Kind {
			case flags.KindRule:
				results[i] = d.Rule.Eval(in, d)
			case flags.KindModel:
				res, err := r.evalModel(egCtx, meter, d, in)
				if err != nil {
					if egCtx.Err() != nil || errors.Is(err, domai.ErrBudgetExceeded) {
						return err
					}
					// degrade, jangan gagalkan run
					log.Printf("detector %s: degraded to non-trigger: %v", d.ID, err)
					mu.Lock()
					skipped = append(skipped, d.ID)
					mu.Unlock()
					res = d.NotTriggered()
				}
				results[i] = res
			default:
				results[i] = d.NotTriggered()
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, nil, err
	}
	return results, skipped, nil
}

func (r *Runner) evalModel(ctx context.Context, meter *application.Meter, d flags.Detector, in flags.Inputs) (flags.Result, error) {
	text := in.SectionText(d.Prompt.Section)
	if text == "" {
		// section absent = insufficient data, non-triggering
		return d.NotTriggered(), nil
	}
	if len(text) > d.Prompt.MaxChars {
		text = text[:d.Prompt.MaxChars]
	}

	var facts []financials.Fact
	if d.Prompt.IncludeFacts {
		facts = in.Facts.All()
	}
	user := prompt.NarrativeUser(d, text, facts)

	timeout := r.CallTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	var raw string
	err := application.Retry(ctx, r.Retry, func(ctx context.Context) error {
		cctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		out, usage, err := r.AI.Complete(cctx, prompt.NarrativeSystem(), user)
		if err != nil {
			return err
		}
		if err := meter.AddTokens(usage); err != nil {
			return err
		}
		raw = out
		return nil
	})
	if err != nil {
		return flags.Result{}, err
	}

	var v prompt.NarrativeVerdict
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return flags.Result{}, fmt.Errorf("parse detector response: %w", err)
	}

	res := d.NotTriggered()
	res.Triggered = v.Triggered
	res.Confidence = clamp01(v.Confidence)
	res.Evidence = v.Evidence
	if ranges := in.Sections.ByName(d.Prompt.Section); len(ranges) > 0 {
		res.Page = ranges[0].Start
	}
	return res, nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
