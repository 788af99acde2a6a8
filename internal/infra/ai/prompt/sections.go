package prompt

import (
	"fmt"
	"sort"
	"strings"

	"github.com/annualguard/annualguard/internal/domain/sections"
)

// Prompts untuk section locator. Pass 1 melihat sampled pages dan menebak
// start page per section; pass 2 mempersempit boundary dalam window kecil.

func LocateSystem() string {
	var b strings.Builder
	b.WriteString("You locate sections inside Indian corporate annual reports. ")
	b.WriteString("You are given numbered page excerpts. Identify on which page each of the following sections BEGINS. ")
	b.WriteString("Sections and accepted synonyms:\n")
	for _, d := range sections.Catalog() {
		b.WriteString(fmt.Sprintf("- %s (also appears as: %s)\n", d.Name, strings.Join(d.Synonyms, "; ")))
	}
	b.WriteString("\nAuditor reports and financial statements commonly appear TWICE, once standalone and once consolidated; report both occurrences with variant set accordingly. ")
	b.WriteString("Only report sections you actually see evidence for. ")
	b.WriteString(`Respond with JSON only: {"sections":[{"name":"...","variant":"standalone|consolidated|","page":N,"confidence":0.0-1.0}]}`)
	return b.String()
}

func LocateUser(samples map[int]string) string {
	var b strings.Builder
	b.WriteString("Page excerpts (sparse sample):\n\n")
	for _, page := range sortedKeys(samples) {
		b.WriteString(fmt.Sprintf("--- page %d ---\n%s\n\n", page, samples[page]))
	}
	return b.String()
}

func RefineSystem() string {
	return "You pinpoint the exact page where one annual-report section begins. " +
		"Given consecutive page excerpts, answer with JSON only: " +
		`{"page":N,"confidence":0.0-1.0}. Use page 0 when the section does not start in this window.`
}

func RefineUser(section sections.Name, window map[int]string) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("Section to pin down: %s\n\nPage excerpts:\n\n", section))
	for _, page := range sortedKeys(window) {
		b.WriteString(fmt.Sprintf("--- page %d ---\n%s\n\n", page, window[page]))
	}
	return b.String()
}

func sortedKeys(m map[int]string) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}
