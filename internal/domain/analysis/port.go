package analysis

import (
	"context"
	"errors"

	"github.com/annualguard/annualguard/internal/domain/verdict"
)

// ErrNoCachedVerdict cache lookup miss
var ErrNoCachedVerdict = errors.New("no cached verdict for document hash")

// VerdictRepository port (interface untuk persistence)
type VerdictRepository interface {
	Save(ctx context.Context, v *verdict.Verdict) error
	Get(ctx context.Context, tenant string, id verdict.VerdictID) (*verdict.Verdict, error)
	// FindByHash is the dedup cache lookup; returns ErrNoCachedVerdict on miss.
	FindByHash(ctx context.Context, tenant, hash string) (*verdict.Verdict, error)
	Latest(ctx context.Context, tenant string, limit int) ([]*verdict.Verdict, error)
}

// FailureRepository port untuk audit trail kegagalan stage
type FailureRepository interface {
	Save(ctx context.Context, f *Failure) error
	ListByJob(ctx context.Context, tenant, jobID string, limit int) ([]*Failure, error)
}

// DocumentStore port untuk penyimpanan source PDF dan verdict artifact
type DocumentStore interface {
	PutDocument(ctx context.Context, key string, content []byte) (string, error)
	PutVerdictJSON(ctx context.Context, key string, payload []byte) (string, error)
}

// UsageReporter port: cost/usage callback untuk billing collaborator
type UsageReporter interface {
	Report(ctx context.Context, tenant string, job JobID, u Usage)
}
