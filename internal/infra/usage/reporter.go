package usage

import (
	"context"
	"log"

	"github.com/annualguard/annualguard/internal/domain/analysis"
)

// LogReporter emits per-job usage to the process log. Billing sistemnya
// eksternal; ini titik integrasinya — ganti dengan reporter lain kalau
// collaborator-nya sudah ada.
type LogReporter struct{}

func (LogReporter) Report(_ context.Context, tenant string, job analysis.JobID, u analysis.Usage) {
	log.Printf("usage tenant=%s job=%s prompt_tokens=%d completion_tokens=%d vendor_ocr_calls=%d",
		tenant, job, u.PromptTokens, u.CompletionTokens, u.VendorOCRCalls)
}

var _ analysis.UsageReporter = LogReporter{}
