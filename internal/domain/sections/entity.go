package sections

import (
	"sort"
	"strings"

	"github.com/annualguard/annualguard/internal/domain/document"
)

// Name enum untuk logical section dari annual report
type Name string

const (
	AuditorsReport        Name = "auditors_report"
	BalanceSheet          Name = "balance_sheet"
	ProfitAndLoss         Name = "profit_and_loss"
	CashFlowStatement     Name = "cash_flow_statement"
	NotesToAccounts       Name = "notes_to_accounts"
	DirectorsReport       Name = "directors_report"
	MDNA                  Name = "mdna"
	CorporateGovernance   Name = "corporate_governance_report"
	ShareholdingPattern   Name = "shareholding_pattern"
	RelatedPartyDisclosed Name = "related_party_disclosures"
	SecretarialAudit      Name = "secretarial_audit_report"
)

// Variant membedakan standalone vs consolidated statements. Auditor reports
// umum muncul dua kali dalam satu dokumen.
const (
	VariantStandalone   = "standalone"
	VariantConsolidated = "consolidated"
)

// Descriptor satu entri catalog
type Descriptor struct {
	Name     Name
	Synonyms []string
	// Mandatory sections below the locator confidence threshold are marked
	// absent, never guessed.
	Mandatory bool
	// Quantitative sections feed the structured data extractor.
	Quantitative bool
	// Duplicated sections may appear once per statement variant.
	Duplicated bool
}

// Range satu section berada pada halaman Start..End (inclusive, 1-based)
type Range struct {
	Section    Name    `json:"section"`
	Variant    string  `json:"variant,omitempty"`
	Start      int     `json:"start"`
	End        int     `json:"end"`
	Confidence float64 `json:"confidence"`
}

// Set kumpulan range hasil locator
type Set []Range

// Catalog returns the fixed section catalog. Callers must not mutate the
// returned slice.
func Catalog() []Descriptor {
	return []Descriptor{
		{Name: AuditorsReport, Synonyms: []string{"independent auditor's report", "auditors' report", "report of the independent auditors"}, Mandatory: true, Duplicated: true},
		{Name: BalanceSheet, Synonyms: []string{"statement of assets and liabilities", "statement of financial position"}, Mandatory: true, Quantitative: true, Duplicated: true},
		{Name: ProfitAndLoss, Synonyms: []string{"statement of profit and loss", "income statement", "p&l"}, Mandatory: true, Quantitative: true, Duplicated: true},
		{Name: CashFlowStatement, Synonyms: []string{"statement of cash flows", "cash flow"}, Mandatory: true, Quantitative: true, Duplicated: true},
		{Name: NotesToAccounts, Synonyms: []string{"notes forming part of the financial statements", "notes to the financial statements"}, Mandatory: true, Quantitative: true},
		{Name: DirectorsReport, Synonyms: []string{"board's report", "report of the board of directors"}, Mandatory: true},
		{Name: MDNA, Synonyms: []string{"management discussion and analysis", "md&a"}, Mandatory: false},
		{Name: CorporateGovernance, Synonyms: []string{"report on corporate governance", "corporate governance"}, Mandatory: false, Quantitative: true},
		{Name: ShareholdingPattern, Synonyms: []string{"shareholding pattern", "distribution of shareholding", "shares held by promoters"}, Mandatory: true, Quantitative: true},
		{Name: RelatedPartyDisclosed, Synonyms: []string{"related party transactions", "related party disclosures", "aoc-2"}, Mandatory: false, Quantitative: true},
		{Name: SecretarialAudit, Synonyms: []string{"secretarial audit report", "form mr-3"}, Mandatory: false},
	}
}

// Describe lookup descriptor by name, nil kalau tidak dikenal
func Describe(n Name) *Descriptor {
	for _, d := range Catalog() {
		if d.Name == n {
			dd := d
			return &dd
		}
	}
	return nil
}

// Clamp memastikan range tidak keluar batas dokumen
func (r Range) Clamp(pageCount int) Range {
	if r.Start < 1 {
		r.Start = 1
	}
	if r.End > pageCount {
		r.End = pageCount
	}
	if r.End < r.Start {
		r.End = r.Start
	}
	return r
}

// ByName returns all ranges for one section, ordered by start page.
func (s Set) ByName(n Name) []Range {
	var out []Range
	for _, r := range s {
		if r.Section == n {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start < out[j].Start })
	return out
}

// Has reports whether at least one range exists for the section.
func (s Set) Has(n Name) bool {
	for _, r := range s {
		if r.Section == n {
			return true
		}
	}
	return false
}

// Text menggabungkan teks halaman dalam satu range
func (r Range) Text(pages []document.Page) string {
	var b strings.Builder
	for _, p := range pages {
		if p.Number >= r.Start && p.Number <= r.End {
			b.WriteString(p.Text)
			b.WriteString("\n")
		}
	}
	return b.String()
}

// JoinText concatenates every range of one section, standalone first.
func (s Set) JoinText(n Name, pages []document.Page) string {
	var b strings.Builder
	for _, r := range s.ByName(n) {
		b.WriteString(r.Text(pages))
	}
	return b.String()
}
