package financials

import (
	"math"
	"sort"

	"github.com/annualguard/annualguard/internal/domain/sections"
)

// Metric canonical metric name
type Metric string

const (
	MetricRevenue          Metric = "revenue"
	MetricPAT              Metric = "pat"
	MetricCFO              Metric = "cfo"
	MetricReceivables      Metric = "receivables"
	MetricInventory        Metric = "inventory"
	MetricTotalDebt        Metric = "total_debt"
	MetricShortTermDebt    Metric = "short_term_debt"
	MetricCash             Metric = "cash"
	MetricNetWorth         Metric = "net_worth"
	MetricOtherIncome      Metric = "other_income"
	MetricIntangibles      Metric = "intangibles"
	MetricCWIP             Metric = "cwip"
	MetricContingent       Metric = "contingent_liabilities"
	MetricRPTAmount        Metric = "rpt_amount"
	MetricLoansToRelated   Metric = "loans_to_related"
	MetricPromoterHolding  Metric = "promoter_holding_pct"
	MetricPromoterPledge   Metric = "promoter_pledge_pct"
	MetricAuditFees        Metric = "audit_fees"
	MetricBoardAttendance  Metric = "board_attendance_pct"
	MetricIndepDirectors   Metric = "independent_directors_pct"
)

// Percentage metrics disimpan sebagai fraction 0..1, bukan 0..100
func (m Metric) IsFraction() bool {
	switch m {
	case MetricPromoterHolding, MetricPromoterPledge, MetricBoardAttendance, MetricIndepDirectors:
		return true
	}
	return false
}

// Fact satu nilai metrik untuk satu fiscal year, dengan provenance
type Fact struct {
	Metric     Metric        `json:"metric"`
	Year       int           `json:"year"` // fiscal year ending, e.g. 2024
	Value      float64       `json:"value"`
	Confidence float64       `json:"confidence"`
	Section    sections.Name `json:"section,omitempty"`
	Page       int           `json:"page,omitempty"`
}

// Key identitas fact: (metric, year)
type Key struct {
	Metric Metric
	Year   int
}

// FactSet facts keyed by (metric, year). Conflicting facts resolve by
// confidence: yang lebih rendah tidak pernah menimpa yang lebih tinggi.
type FactSet struct {
	facts map[Key]Fact
}

func NewFactSet() *FactSet {
	return &FactSet{facts: make(map[Key]Fact)}
}

// Add merges a fact into the set. Equal confidence: later extraction wins.
// Returns true when the fact was stored.
func (fs *FactSet) Add(f Fact) bool {
	k := Key{Metric: f.Metric, Year: f.Year}
	if prev, ok := fs.facts[k]; ok && prev.Confidence > f.Confidence {
		return false
	}
	fs.facts[k] = f
	return true
}

// Get lookup by metric + year
func (fs *FactSet) Get(m Metric, year int) (Fact, bool) {
	f, ok := fs.facts[Key{Metric: m, Year: year}]
	return f, ok
}

// Len jumlah facts
func (fs *FactSet) Len() int { return len(fs.facts) }

// All returns facts ordered by metric then year, for deterministic output.
func (fs *FactSet) All() []Fact {
	out := make([]Fact, 0, len(fs.facts))
	for _, f := range fs.facts {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Metric != out[j].Metric {
			return out[i].Metric < out[j].Metric
		}
		return out[i].Year < out[j].Year
	})
	return out
}

// Series ordered-by-year values untuk satu metric
type Series struct {
	Metric Metric    `json:"metric"`
	Years  []int     `json:"years"`
	Values []float64 `json:"values"`
}

// Series builds the multi-year series for a metric. Years chronologically
// ordered and de-duplicated (FactSet keying already guarantees uniqueness).
func (fs *FactSet) Series(m Metric) Series {
	var years []int
	for k := range fs.facts {
		if k.Metric == m {
			years = append(years, k.Year)
		}
	}
	sort.Ints(years)
	s := Series{Metric: m, Years: years}
	for _, y := range years {
		s.Values = append(s.Values, fs.facts[Key{Metric: m, Year: y}].Value)
	}
	return s
}

// Len jumlah tahun yang tersedia
func (s Series) Len() int { return len(s.Years) }

// Latest returns the most recent value, ok=false when empty.
func (s Series) Latest() (year int, value float64, ok bool) {
	if len(s.Years) == 0 {
		return 0, 0, false
	}
	i := len(s.Years) - 1
	return s.Years[i], s.Values[i], true
}

// CAGR over the whole series. ok=false when fewer than 2 years or the base
// value is not strictly positive.
func (s Series) CAGR() (float64, bool) {
	if len(s.Values) < 2 {
		return 0, false
	}
	first, last := s.Values[0], s.Values[len(s.Values)-1]
	if first <= 0 {
		return 0, false
	}
	n := float64(len(s.Values) - 1)
	return math.Pow(last/first, 1/n) - 1, true
}

// YoYChange perubahan tahun terakhir vs tahun sebelumnya (fraction)
func (s Series) YoYChange() (float64, bool) {
	n := len(s.Values)
	if n < 2 || s.Values[n-2] == 0 {
		return 0, false
	}
	return (s.Values[n-1] - s.Values[n-2]) / math.Abs(s.Values[n-2]), true
}
