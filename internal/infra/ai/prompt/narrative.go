package prompt

import (
	"fmt"
	"strings"

	"github.com/annualguard/annualguard/internal/domain/financials"
	"github.com/annualguard/annualguard/internal/domain/flags"
)

// Prompts untuk model-assisted detectors. Jawaban selalu JSON dengan schema
// tetap supaya bisa diparse deterministik.

func NarrativeSystem() string {
	return "You are a forensic analyst reading excerpts from a corporate annual report. " +
		"Apply exactly the one check described by the user. Be conservative: only flag when the text itself supports it. " +
		"Respond with JSON only: " +
		`{"triggered":true|false,"confidence":0.0-1.0,"evidence":"<short quote or paraphrase from the text>"}`
}

func NarrativeUser(d flags.Detector, excerpt string, facts []financials.Fact) string {
	var b strings.Builder
	b.WriteString("Check: ")
	b.WriteString(d.Prompt.Instruction)
	b.WriteString("\n\n")
	if d.Prompt.IncludeFacts && len(facts) > 0 {
		b.WriteString("Extracted financial figures (crore; percentages as fractions):\n")
		for _, f := range facts {
			b.WriteString(fmt.Sprintf("- %s FY%d = %.2f\n", f.Metric, f.Year, f.Value))
		}
		b.WriteString("\n")
	}
	b.WriteString("Report excerpt:\n\n")
	b.WriteString(excerpt)
	return b.String()
}

// NarrativeVerdict respons model untuk satu detector call
type NarrativeVerdict struct {
	Triggered  bool    `json:"triggered"`
	Confidence float64 `json:"confidence"`
	Evidence   string  `json:"evidence"`
}
