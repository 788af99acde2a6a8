package financials

import (
	"regexp"
	"strconv"
	"strings"

	domfin "github.com/annualguard/annualguard/internal/domain/financials"
)

// Baris tabel laporan keuangan: label di kiri, satu kolom angka per fiscal
// year. Parser baris di sini sengaja longgar — sumbernya teks hasil
// ekstraksi/OCR, bukan tabel rapi.

// label → canonical metric. Daftar terurut; needle pertama yang match
// menang, jadi sinonim spesifik ditaruh sebelum yang generik.
var metricSynonyms = []struct {
	needle string
	metric domfin.Metric
}{
	{"revenue from operations", domfin.MetricRevenue},
	{"net cash generated from operating", domfin.MetricCFO},
	{"net cash from operating activities", domfin.MetricCFO},
	{"cash generated from operations", domfin.MetricCFO},
	{"profit after tax", domfin.MetricPAT},
	{"profit for the year", domfin.MetricPAT},
	{"net profit for the year", domfin.MetricPAT},
	{"trade receivables", domfin.MetricReceivables},
	{"sundry debtors", domfin.MetricReceivables},
	{"inventories", domfin.MetricInventory},
	{"total borrowings", domfin.MetricTotalDebt},
	{"total debt", domfin.MetricTotalDebt},
	{"short-term borrowings", domfin.MetricShortTermDebt},
	{"current borrowings", domfin.MetricShortTermDebt},
	{"cash and cash equivalents", domfin.MetricCash},
	{"net worth", domfin.MetricNetWorth},
	{"total equity", domfin.MetricNetWorth},
	{"shareholders' funds", domfin.MetricNetWorth},
	{"other income", domfin.MetricOtherIncome},
	{"intangible assets", domfin.MetricIntangibles},
	{"capital work-in-progress", domfin.MetricCWIP},
	{"contingent liabilities", domfin.MetricContingent},
	{"transactions with related parties", domfin.MetricRPTAmount},
	{"total related party transactions", domfin.MetricRPTAmount},
	{"loans and advances to related parties", domfin.MetricLoansToRelated},
	{"loans to related parties", domfin.MetricLoansToRelated},
	{"promoter and promoter group", domfin.MetricPromoterHolding},
	{"promoter shareholding", domfin.MetricPromoterHolding},
	{"pledged or otherwise encumbered", domfin.MetricPromoterPledge},
	{"shares pledged", domfin.MetricPromoterPledge},
	{"payment to auditors", domfin.MetricAuditFees},
	{"auditor's remuneration", domfin.MetricAuditFees},
	{"audit fees", domfin.MetricAuditFees},
	{"average attendance", domfin.MetricBoardAttendance},
	{"independent directors", domfin.MetricIndepDirectors},
}

func matchMetric(label string) (domfin.Metric, bool) {
	l := strings.ToLower(label)
	for _, s := range metricSynonyms {
		if strings.Contains(l, s.needle) {
			return s.metric, true
		}
	}
	return "", false
}

var (
	fyRangeRe  = regexp.MustCompile(`\b(20\d{2})\s*[-–]\s*(\d{2})\b`)
	fyPrefixRe = regexp.MustCompile(`\bFY\s?(20\d{2})\b`)
	fyDateRe   = regexp.MustCompile(`(?i)(?:march\s+31,?\s*|31[.\-/]03[.\-/])(20\d{2})`)
	fyBareRe   = regexp.MustCompile(`\b(20\d{2})\b`)
)

// parseYearHeader detects a table header row listing fiscal-year columns,
// left-to-right as printed. Returns nil kalau bukan header.
func parseYearHeader(line string) []int {
	var years []int
	add := func(y int) {
		for _, e := range years {
			if e == y {
				return
			}
		}
		years = append(years, y)
	}

	rest := line
	for _, m := range fyRangeRe.FindAllStringSubmatch(rest, -1) {
		start, _ := strconv.Atoi(m[1])
		// "2023-24" berarti fiscal year berakhir 2024
		add(start + 1)
	}
	rest = fyRangeRe.ReplaceAllString(rest, "")
	for _, m := range fyPrefixRe.FindAllStringSubmatch(rest, -1) {
		y, _ := strconv.Atoi(m[1])
		add(y)
	}
	rest = fyPrefixRe.ReplaceAllString(rest, "")
	for _, m := range fyDateRe.FindAllStringSubmatch(rest, -1) {
		y, _ := strconv.Atoi(m[1])
		add(y)
	}
	rest = fyDateRe.ReplaceAllString(rest, "")
	if len(years) == 0 {
		// plain "2024  2023" style header butuh minimal dua tahun supaya
		// tidak ketukar dengan angka biasa
		bare := fyBareRe.FindAllStringSubmatch(rest, -1)
		if len(bare) >= 2 {
			for _, m := range bare {
				y, _ := strconv.Atoi(m[1])
				add(y)
			}
		}
	}
	if len(years) == 0 {
		return nil
	}
	return years
}

// Paren harus balanced, supaya "(note 12)" tidak kebaca sebagai cell "12)"
var cellRe = regexp.MustCompile(`\([\d,]+(?:\.\d+)?\)%?|-?[\d,]+(?:\.\d+)?%?`)

// parseRow splits a line into label + numeric cells. Cells adalah deretan
// angka di EKOR baris; angka di tengah label (misal nomor note) tidak ikut.
func parseRow(line string) (label string, cells []string, ok bool) {
	line = strings.TrimSpace(line)
	if line == "" {
		return "", nil, false
	}
	locs := cellRe.FindAllStringIndex(line, -1)
	if len(locs) == 0 {
		return "", nil, false
	}
	if strings.TrimSpace(line[locs[len(locs)-1][1]:]) != "" {
		return "", nil, false // baris tidak diakhiri angka, bukan row tabel
	}
	first := len(locs) - 1
	for first > 0 {
		gap := line[locs[first-1][1]:locs[first][0]]
		if strings.TrimSpace(gap) != "" {
			break
		}
		first--
	}
	label = strings.TrimSpace(line[:locs[first][0]])
	if len(label) < 3 || !hasLetter(label) {
		return "", nil, false
	}
	for _, l := range locs[first:] {
		cells = append(cells, line[l[0]:l[1]])
	}
	return label, cells, true
}

func hasLetter(s string) bool {
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
			return true
		}
	}
	return false
}
