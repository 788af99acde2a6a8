package financials

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annualguard/annualguard/internal/domain/document"
	domfin "github.com/annualguard/annualguard/internal/domain/financials"
	domsec "github.com/annualguard/annualguard/internal/domain/sections"
)

func TestParseYearHeader(t *testing.T) {
	assert.Equal(t, []int{2024, 2023}, parseYearHeader("Particulars    2023-24    2022-23"))
	assert.Equal(t, []int{2024, 2023}, parseYearHeader("   FY2024   FY2023"))
	assert.Equal(t, []int{2024, 2023}, parseYearHeader("As at March 31, 2024   As at March 31, 2023"))
	assert.Equal(t, []int{2024, 2023}, parseYearHeader("Particulars  2024  2023"))
	// satu bare year doang bisa jadi angka biasa, bukan header
	assert.Nil(t, parseYearHeader("Note 2024 contains details"))
	assert.Nil(t, parseYearHeader("Revenue from operations 1,234.56"))
}

func TestParseRow(t *testing.T) {
	label, cells, ok := parseRow("Revenue from operations        12,345.67    10,234.56")
	require.True(t, ok)
	assert.Equal(t, "Revenue from operations", label)
	assert.Equal(t, []string{"12,345.67", "10,234.56"}, cells)

	// nomor note di tengah label tidak ikut jadi cell
	label, cells, ok = parseRow("Trade receivables (note 12)   950.00   800.00")
	require.True(t, ok)
	assert.Contains(t, label, "Trade receivables")
	assert.Equal(t, []string{"950.00", "800.00"}, cells)

	// parenthesised negatives
	_, cells, ok = parseRow("Net cash from operating activities   (312.40)   145.00")
	require.True(t, ok)
	assert.Equal(t, []string{"(312.40)", "145.00"}, cells)

	// baris narasi tidak diakhiri angka
	_, _, ok = parseRow("The company recognises revenue when control transfers")
	assert.False(t, ok)
	_, _, ok = parseRow("")
	assert.False(t, ok)
}

func TestExtractSingleTable(t *testing.T) {
	pages := []document.Page{
		{Number: 1, Confidence: 1, Method: document.MethodNative, Text: "cover"},
		{Number: 2, Confidence: 0.95, Method: document.MethodNative, Text: "Statement of Profit and Loss (₹ in crore)\n" +
			"Particulars    2023-24    2022-23\n" +
			"Revenue from operations    1,200.50    1,000.00\n" +
			"Other income    45.00    30.00\n" +
			"Profit for the year    150.25    120.00\n"},
	}
	set := domsec.Set{{Section: domsec.ProfitAndLoss, Start: 2, End: 2, Confidence: 0.9}}

	e := &Extractor{}
	facts, err := e.Extract(context.Background(), pages, set)
	require.NoError(t, err)

	f, ok := facts.Get(domfin.MetricRevenue, 2024)
	require.True(t, ok)
	assert.InDelta(t, 1200.50, f.Value, 1e-9)
	assert.Equal(t, 2, f.Page)
	assert.Equal(t, domsec.ProfitAndLoss, f.Section)
	assert.InDelta(t, 0.95, f.Confidence, 1e-9)

	f, ok = facts.Get(domfin.MetricRevenue, 2023)
	require.True(t, ok)
	assert.InDelta(t, 1000.0, f.Value, 1e-9)

	f, ok = facts.Get(domfin.MetricPAT, 2024)
	require.True(t, ok)
	assert.InDelta(t, 150.25, f.Value, 1e-9)
}

func TestExtractMultiPageStitching(t *testing.T) {
	// tabel menyambung ke halaman berikutnya; header diulang dan satu baris
	// (revenue) dicetak ulang — tidak boleh menduplikasi atau menimpa
	pages := []document.Page{
		{Number: 3, Confidence: 1, Method: document.MethodNative, Text: "Balance Sheet (₹ in crore)\n" +
			"Particulars    2023-24    2022-23\n" +
			"Trade receivables    950.00    800.00\n"},
		{Number: 4, Confidence: 1, Method: document.MethodNative, Text: "Trade receivables    950.00    800.00\n" +
			"Total borrowings    2,400.00    1,500.00\n" +
			"Cash and cash equivalents    120.00    310.00\n"},
	}
	set := domsec.Set{{Section: domsec.BalanceSheet, Start: 3, End: 4, Confidence: 0.9}}

	e := &Extractor{}
	facts, err := e.Extract(context.Background(), pages, set)
	require.NoError(t, err)

	assert.Equal(t, 6, facts.Len())
	f, ok := facts.Get(domfin.MetricTotalDebt, 2024)
	require.True(t, ok)
	assert.InDelta(t, 2400.0, f.Value, 1e-9)
	assert.Equal(t, 4, f.Page)
	// baris receivables yang dicetak ulang di halaman lanjutan di-skip:
	// fact asli dari halaman 3 dipertahankan
	f, ok = facts.Get(domfin.MetricReceivables, 2023)
	require.True(t, ok)
	assert.InDelta(t, 800.0, f.Value, 1e-9)
	assert.Equal(t, 3, f.Page)
}

func TestExtractScaleNormalization(t *testing.T) {
	pages := []document.Page{
		{Number: 5, Confidence: 1, Method: document.MethodNative, Text: "Notes to accounts (all amounts in lakhs)\n" +
			"Particulars    2023-24    2022-23\n" +
			"Payment to auditors    85.00    80.00\n"},
	}
	set := domsec.Set{{Section: domsec.NotesToAccounts, Start: 5, End: 5, Confidence: 0.9}}

	e := &Extractor{}
	facts, err := e.Extract(context.Background(), pages, set)
	require.NoError(t, err)

	f, ok := facts.Get(domfin.MetricAuditFees, 2024)
	require.True(t, ok)
	// 85 lakh = 0.85 crore
	assert.InDelta(t, 0.85, f.Value, 1e-9)
}

func TestExtractPercentageFacts(t *testing.T) {
	pages := []document.Page{
		{Number: 7, Confidence: 0.9, Method: document.MethodOCR, Text: "Shareholding Pattern\n" +
			"Category    2023-24    2022-23\n" +
			"Promoter and promoter group holding    51.2%    54.8%\n" +
			"Shares pledged    62.4%    48.0%\n"},
	}
	set := domsec.Set{{Section: domsec.ShareholdingPattern, Start: 7, End: 7, Confidence: 0.85}}

	e := &Extractor{}
	facts, err := e.Extract(context.Background(), pages, set)
	require.NoError(t, err)

	f, ok := facts.Get(domfin.MetricPromoterPledge, 2024)
	require.True(t, ok)
	assert.InDelta(t, 0.624, f.Value, 1e-9)
	f, ok = facts.Get(domfin.MetricPromoterHolding, 2023)
	require.True(t, ok)
	assert.InDelta(t, 0.548, f.Value, 1e-9)
}

func TestExtractSkipsLowConfidencePages(t *testing.T) {
	pages := []document.Page{
		{Number: 2, Confidence: 0.05, Method: document.MethodFailed, Text: "Particulars 2023-24 2022-23\nRevenue from operations 999 888\n"},
	}
	set := domsec.Set{{Section: domsec.ProfitAndLoss, Start: 2, End: 2, Confidence: 0.9}}

	e := &Extractor{}
	facts, err := e.Extract(context.Background(), pages, set)
	require.NoError(t, err)
	assert.Zero(t, facts.Len())
}

func TestExtractIgnoresNonQuantitativeSections(t *testing.T) {
	pages := []document.Page{
		{Number: 9, Confidence: 1, Method: document.MethodNative, Text: "Particulars 2023-24 2022-23\nRevenue from operations 100 90\n"},
	}
	// MDNA bukan section kuantitatif
	set := domsec.Set{{Section: domsec.MDNA, Start: 9, End: 9, Confidence: 0.9}}

	e := &Extractor{}
	facts, err := e.Extract(context.Background(), pages, set)
	require.NoError(t, err)
	assert.Zero(t, facts.Len())
}
