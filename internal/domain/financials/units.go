package financials

import (
	"regexp"
	"strconv"
	"strings"
)

// Semua angka moneter dinormalisasi ke basis crore sebelum disimpan,
// karena tabel sumber mencampur satuan.
type Scale float64

const (
	ScaleCrore    Scale = 1
	ScaleLakh     Scale = 0.01
	ScaleMillion  Scale = 0.1    // 1 million = 0.1 crore
	ScaleThousand Scale = 0.0001 // 1 thousand = 0.0001 crore
	ScaleUnit     Scale = 1e-7
)

var scaleHints = []struct {
	needle string
	scale  Scale
}{
	{"in crore", ScaleCrore},
	{"in cr", ScaleCrore},
	{"₹ crore", ScaleCrore},
	{"rs. crore", ScaleCrore},
	{"in lakh", ScaleLakh},
	{"in lacs", ScaleLakh},
	{"in million", ScaleMillion},
	{"in mn", ScaleMillion},
	{"in thousand", ScaleThousand},
	{"in '000", ScaleThousand},
}

// DetectScale scans table header text for a unit hint. Defaults to crore —
// listed-company statements overwhelmingly report in crore.
func DetectScale(header string) Scale {
	if s, ok := DetectScaleHint(header); ok {
		return s
	}
	return ScaleCrore
}

// DetectScaleHint reports whether the line carries an explicit unit hint.
// Caption biasanya di atas header tahun, jadi caller perlu tahu bedanya
// "tidak ada hint" dan "hint crore".
func DetectScaleHint(line string) (Scale, bool) {
	h := strings.ToLower(line)
	for _, hint := range scaleHints {
		if strings.Contains(h, hint.needle) {
			return hint.scale, true
		}
	}
	return ScaleCrore, false
}

var amountRe = regexp.MustCompile(`^\(?-?[\d,]+(?:\.\d+)?\)?%?$`)

// ParseAmount parses one numeric table cell: thousand separators, trailing
// percent signs, and accountant-style parenthesised negatives.
func ParseAmount(cell string) (value float64, percent bool, ok bool) {
	s := strings.TrimSpace(cell)
	if s == "" || s == "-" || s == "–" {
		return 0, false, false
	}
	if !amountRe.MatchString(s) {
		return 0, false, false
	}
	neg := false
	if strings.HasPrefix(s, "(") {
		neg = true
		s = strings.Trim(s, "()")
	}
	if strings.HasSuffix(s, "%") {
		percent = true
		s = strings.TrimSuffix(s, "%")
		s = strings.Trim(s, "()")
	}
	s = strings.ReplaceAll(s, ",", "")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false, false
	}
	if neg {
		v = -v
	}
	return v, percent, true
}

// Normalize converts a raw cell value to storage units: crore for money,
// 0..1 fraction for percentage metrics.
func Normalize(m Metric, raw float64, percent bool, scale Scale) float64 {
	if m.IsFraction() {
		if percent || raw > 1 {
			return raw / 100
		}
		return raw
	}
	return raw * float64(scale)
}
