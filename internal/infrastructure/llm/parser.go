package llm

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"paperagent/internal/domain"
)

// The model is asked for JSON but does not always comply. Parsing is an
// ordered chain of strategies; the first one that succeeds wins. The field
// extractor is tolerant of individual missing fields; a reply where nothing
// matches at all falls through to the fixed default.
var parseStrategies = []struct {
	name string
	fn   func(string) (domain.Analysis, bool)
}{
	{"json", parseJSONAnalysis},
	{"fields", parseFieldAnalysis},
}

var (
	jsonObjectExpr  = regexp.MustCompile(`(?s)\{.*\}`)
	tagsExpr        = regexp.MustCompile(`(?i)tags.*?:\s*(.+)`)
	scoreExpr       = regexp.MustCompile(`(?i)relevance.*?score.*?:\s*(\d+(?:\.\d+)?)`)
	insightsExpr    = regexp.MustCompile(`(?is)key.insights.*?:\s*(.+?)(?:\n\n|\n[A-Z]|$)`)
	methodologyExpr = regexp.MustCompile(`(?i)methodology.*?:\s*(.+?)(?:\n|$)`)
	bulletSplitExpr = regexp.MustCompile(`[•\-\*]\s*`)
	tagSplitExpr    = regexp.MustCompile(`[,;]`)
)

// ParseAnalysis decodes the model's reply into a structured analysis.
func ParseAnalysis(text string, logger *zap.Logger) domain.Analysis {
	for _, strategy := range parseStrategies {
		if analysis, ok := strategy.fn(text); ok {
			return analysis
		}
		if logger != nil {
			logger.Warn("analysis parse strategy failed", zap.String("strategy", strategy.name))
		}
	}
	if logger != nil {
		logger.Warn("all analysis parse strategies failed, using default")
	}
	return DefaultAnalysis()
}

// DefaultAnalysis is the fixed fallback used when analysis fails entirely.
func DefaultAnalysis() domain.Analysis {
	return domain.Analysis{
		Tags:           defaultTags(),
		RelevanceScore: 0.0,
		KeyInsights:    []string{"Manual review needed"},
		Methodology:    "Unknown",
	}
}

func defaultTags() []string {
	return []string{"AI", "Research"}
}

// parseJSONAnalysis locates the first brace-delimited object in the reply and
// decodes it. Values are coerced loosely: the model sometimes returns the
// score as a string or insights as a single blob.
func parseJSONAnalysis(text string) (domain.Analysis, bool) {
	match := jsonObjectExpr.FindString(stripCodeFence(text))
	if match == "" {
		return domain.Analysis{}, false
	}

	var data map[string]any
	if err := json.Unmarshal([]byte(match), &data); err != nil {
		return domain.Analysis{}, false
	}

	return domain.Analysis{
		Tags:           toStringList(data["tags"]),
		RelevanceScore: toFloat(data["relevance_score"]),
		KeyInsights:    toStringList(data["key_insights"]),
		Methodology:    toString(data["methodology"]),
	}, true
}

// parseFieldAnalysis extracts each field independently with regexes. Missing
// fields default to zero values; the strategy only fails when no field
// matched at all.
func parseFieldAnalysis(text string) (domain.Analysis, bool) {
	analysis := domain.Analysis{
		Tags:           extractTags(text),
		RelevanceScore: extractScore(text),
		KeyInsights:    extractListField(text, insightsExpr),
		Methodology:    repairExplodedText(extractField(text, methodologyExpr)),
	}
	matched := len(analysis.Tags) > 0 || analysis.RelevanceScore != 0 ||
		len(analysis.KeyInsights) > 0 || analysis.Methodology != ""
	return analysis, matched
}

func extractTags(text string) []string {
	match := tagsExpr.FindStringSubmatch(text)
	if match == nil {
		return nil
	}
	var tags []string
	for _, tag := range tagSplitExpr.Split(match[1], -1) {
		if tag = strings.TrimSpace(tag); tag != "" {
			tags = append(tags, tag)
		}
	}
	return tags
}

func extractScore(text string) float64 {
	match := scoreExpr.FindStringSubmatch(text)
	if match == nil {
		return 0.0
	}
	score, err := strconv.ParseFloat(match[1], 64)
	if err != nil {
		return 0.0
	}
	return score
}

func extractListField(text string, expr *regexp.Regexp) []string {
	match := expr.FindStringSubmatch(text)
	if match == nil {
		return nil
	}
	items := repairExplodedText(match[1])

	var out []string
	for _, item := range bulletSplitExpr.Split(items, -1) {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func extractField(text string, expr *regexp.Regexp) string {
	match := expr.FindStringSubmatch(text)
	if match == nil {
		return ""
	}
	return strings.TrimSpace(match[1])
}

// repairExplodedText reassembles a known malformed output shape where the
// model emits every character followed by a semicolon ("T;h;e; ;p;...").
func repairExplodedText(text string) string {
	if strings.Count(text, ";") < 10 {
		return text
	}
	joined := strings.Join(strings.Split(text, ";"), "")
	return strings.TrimSpace(strings.ReplaceAll(joined, "  ", " "))
}

func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(s, "```")
	}
	return strings.TrimSpace(s)
}

func toString(v any) string {
	s, _ := v.(string)
	return s
}

func toStringList(v any) []string {
	switch val := v.(type) {
	case []any:
		out := make([]string, 0, len(val))
		for _, item := range val {
			if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
				out = append(out, s)
			}
		}
		return out
	case string:
		if strings.TrimSpace(val) == "" {
			return nil
		}
		return []string{val}
	default:
		return nil
	}
}

func toFloat(v any) float64 {
	switch val := v.(type) {
	case float64:
		return val
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil {
			return 0.0
		}
		return f
	default:
		return 0.0
	}
}
