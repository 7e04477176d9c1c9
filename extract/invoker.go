// Package extract provides offline collaborators for the contract analysis
// pipeline: a rule-based model invoker and an afero-backed document
// extractor. They make the pipeline runnable end to end without network
// access, and stand in for hosted model and OCR services in tests and the
// CLI's offline mode.
package extract

import (
	"context"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/clearcontract-ai/pipeline"
)

var (
	amountPattern  = regexp.MustCompile(`\$\s?([\d][\d,]*)(?:\.\d{2})?`)
	isoDatePattern = regexp.MustCompile(`\b(\d{4}-\d{2}-\d{2})\b`)
	// "1 March 2025" style.
	longDatePattern = regexp.MustCompile(`\b(\d{1,2})\s+(January|February|March|April|May|June|July|August|September|October|November|December)\s+(\d{4})\b`)
	sectionPattern  = regexp.MustCompile(`(?i)\b(?:s\.?\s?|section\s+)(\d+[A-Za-z]*)\b`)
	vendorPattern   = regexp.MustCompile(`(?im)^\s*(?:vendor|seller)\s*:\s*(.+?)\s*$`)
	buyerPattern    = regexp.MustCompile(`(?im)^\s*(?:purchaser|buyer)\s*:\s*(.+?)\s*$`)
	waiverPattern   = regexp.MustCompile(`(?i)cooling[\s-]?off[^.\n]*waiv|66W certificate`)
)

// OfflineInvoker is a rule-based ModelInvoker. It scans the rendered prompt
// (which embeds the document text) with pattern matching and returns the
// same structured shape a hosted model would. Confidence reflects how many
// term groups the patterns recovered, so thin documents gate exactly like
// uncertain model replies.
type OfflineInvoker struct {
	// MinConfidence floors the reported confidence. Useful in tests that
	// need a run to pass or fail the gate deterministically.
	MinConfidence float64
}

func (v *OfflineInvoker) Invoke(ctx context.Context, prompt string, schema pipeline.Schema) (*pipeline.ModelOutput, error) {
	if err := ctx.Err(); err != nil {
		return nil, pipeline.NewTransientInvocationError(err)
	}

	parties := extractParties(prompt)
	amounts := extractAmounts(prompt)
	dates := extractDates(prompt)
	conditions := extractConditions(prompt)
	refs := extractLegalRefs(prompt)

	structured := map[string]any{
		"parties":            parties,
		"amounts":            amounts,
		"dates":              dates,
		"conditions":         conditions,
		"legal_references":   refs,
		"property_address":   extractAddress(prompt),
		"cooling_off_waived": waiverPattern.MatchString(prompt),
	}

	groups := 0
	if len(parties) > 0 {
		groups++
	}
	if len(amounts) > 0 {
		groups++
	}
	if len(dates) > 0 {
		groups++
	}
	if len(conditions) > 0 || len(refs) > 0 {
		groups++
	}
	confidence := 0.5 + 0.125*float64(groups)
	if confidence < v.MinConfidence {
		confidence = v.MinConfidence
	}

	return &pipeline.ModelOutput{
		Structured: structured,
		Confidence: confidence,
	}, nil
}

func extractParties(text string) []map[string]any {
	var parties []map[string]any
	for _, m := range vendorPattern.FindAllStringSubmatch(text, -1) {
		parties = append(parties, map[string]any{"name": m[1], "role": "seller"})
	}
	for _, m := range buyerPattern.FindAllStringSubmatch(text, -1) {
		parties = append(parties, map[string]any{"name": m[1], "role": "buyer"})
	}
	return parties
}

func extractAmounts(text string) []map[string]any {
	var amounts []map[string]any
	for _, line := range strings.Split(text, "\n") {
		for _, m := range amountPattern.FindAllStringSubmatch(line, -1) {
			value, err := strconv.ParseInt(strings.ReplaceAll(m[1], ",", ""), 10, 64)
			if err != nil {
				continue
			}
			amounts = append(amounts, map[string]any{
				"amount":   value,
				"currency": "AUD",
				"type":     classifyAmount(line),
			})
		}
	}
	return amounts
}

func classifyAmount(line string) string {
	lower := strings.ToLower(line)
	switch {
	case strings.Contains(lower, "deposit"):
		return string(pipeline.AmountTypeDeposit)
	case strings.Contains(lower, "purchase price"), strings.Contains(lower, "price"):
		return string(pipeline.AmountTypePurchasePrice)
	default:
		return string(pipeline.AmountTypeOther)
	}
}

func extractDates(text string) []map[string]any {
	var dates []map[string]any
	seen := map[string]bool{}
	add := func(line, iso string) {
		key := classifyDate(line) + "|" + iso
		if seen[key] {
			return
		}
		seen[key] = true
		dates = append(dates, map[string]any{
			"type":  classifyDate(line),
			"value": iso,
		})
	}
	for _, line := range strings.Split(text, "\n") {
		for _, m := range isoDatePattern.FindAllStringSubmatch(line, -1) {
			add(line, m[1])
		}
		for _, m := range longDatePattern.FindAllStringSubmatch(line, -1) {
			parsed, err := time.Parse("2 January 2006", m[0])
			if err != nil {
				continue
			}
			add(line, parsed.Format("2006-01-02"))
		}
	}
	return dates
}

func classifyDate(line string) string {
	lower := strings.ToLower(line)
	switch {
	case strings.Contains(lower, "settlement"), strings.Contains(lower, "completion"):
		return string(pipeline.DateTypeSettlement)
	case strings.Contains(lower, "cooling"):
		return string(pipeline.DateTypeCoolingOffExpiry)
	case strings.Contains(lower, "contract"), strings.Contains(lower, "dated"):
		return string(pipeline.DateTypeContract)
	default:
		return string(pipeline.DateTypeOther)
	}
}

func extractConditions(text string) []map[string]any {
	lower := strings.ToLower(text)
	var conditions []map[string]any
	if strings.Contains(lower, "subject to finance") {
		conditions = append(conditions, map[string]any{
			"type":        string(pipeline.ConditionFinance),
			"description": "purchase subject to finance approval",
		})
	}
	if strings.Contains(lower, "building and pest") || strings.Contains(lower, "building inspection") {
		conditions = append(conditions, map[string]any{
			"type":        string(pipeline.ConditionInspection),
			"description": "purchase subject to building and pest inspection",
		})
	}
	return conditions
}

func extractLegalRefs(text string) []string {
	var refs []string
	seen := map[string]bool{}
	for _, m := range sectionPattern.FindAllStringSubmatch(text, -1) {
		ref := "s" + m[1]
		if seen[ref] {
			continue
		}
		seen[ref] = true
		refs = append(refs, ref)
	}
	return refs
}

var addressPattern = regexp.MustCompile(`(?im)^\s*(?:property|address)\s*:\s*(.+?)\s*$`)

func extractAddress(text string) string {
	if m := addressPattern.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	return ""
}
