package report

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"html"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode"

	"paperagent/internal/domain"
)

// Format selects the output rendering.
type Format string

const (
	FormatMarkdown Format = "markdown"
	FormatHTML     Format = "html"
	FormatCSV      Format = "csv"
)

// Default output paths per format.
const (
	MarkdownFile = "README.md"
	HTMLFile     = "report.html"
	CSVFile      = "papers.csv"
)

const insightsLimit = 160

// row is one rendered report line.
type row struct {
	Rank     int
	Title    string
	ArxivURL string
	Tags     []string
	Date     string
	Insights string
}

// Render produces a report over the records for the given topic. A record
// qualifies when one of its tags equals the topic (case-insensitive) or its
// relevance score is above seven. Rows are ordered newest first; records with
// an unparseable date sort last. Output is deterministic for a given input.
func Render(records []domain.RecordView, topic string, format Format) (string, error) {
	rows := buildRows(records, topic)

	switch format {
	case FormatMarkdown:
		return renderMarkdown(rows, topic), nil
	case FormatHTML:
		return renderHTML(rows, topic), nil
	case FormatCSV:
		return renderCSV(rows)
	default:
		return "", fmt.Errorf("unknown report format %q", format)
	}
}

// OutputFile returns the fixed output path for a format.
func OutputFile(format Format) (string, error) {
	switch format {
	case FormatMarkdown:
		return MarkdownFile, nil
	case FormatHTML:
		return HTMLFile, nil
	case FormatCSV:
		return CSVFile, nil
	default:
		return "", fmt.Errorf("unknown report format %q", format)
	}
}

// WriteReport renders the report and overwrites the format's output file.
func WriteReport(records []domain.RecordView, topic string, format Format) (string, error) {
	content, err := Render(records, topic, format)
	if err != nil {
		return "", err
	}
	path, err := OutputFile(format)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("write report %s: %w", path, err)
	}
	return path, nil
}

func buildRows(records []domain.RecordView, topic string) []row {
	var kept []domain.RecordView
	for _, record := range records {
		if matchesTopic(record, topic) {
			kept = append(kept, record)
		}
	}

	sort.SliceStable(kept, func(i, j int) bool {
		di, iok := parseDate(kept[i].PublishedDate)
		dj, jok := parseDate(kept[j].PublishedDate)
		if iok != jok {
			return iok
		}
		if !iok {
			return false
		}
		return di.After(dj)
	})

	rows := make([]row, 0, len(kept))
	for i, record := range kept {
		rows = append(rows, row{
			Rank:     i + 1,
			Title:    record.Title,
			ArxivURL: record.ArxivURL,
			Tags:     record.Tags,
			Date:     record.PublishedDate,
			Insights: truncate(record.KeyInsights, insightsLimit),
		})
	}
	return rows
}

func matchesTopic(record domain.RecordView, topic string) bool {
	if record.RelevanceScore > 7 {
		return true
	}
	lowerTopic := strings.ToLower(topic)
	for _, tag := range record.Tags {
		if strings.ToLower(tag) == lowerTopic {
			return true
		}
	}
	return false
}

func parseDate(value string) (time.Time, bool) {
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func truncate(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return strings.TrimSpace(string(runes[:limit])) + "..."
}

func renderMarkdown(rows []row, topic string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# Awesome %s Papers\n\n", titleCase(topic))
	fmt.Fprintf(&sb, "A curated list of recent papers on %s, updated automatically.\n\n", topic)
	sb.WriteString("| # | Title | Tags | Published | Key Insights |\n")
	sb.WriteString("|---|-------|------|-----------|-------------|\n")
	for _, r := range rows {
		title := r.Title
		if r.ArxivURL != "" {
			title = fmt.Sprintf("[%s](%s)", r.Title, r.ArxivURL)
		}
		fmt.Fprintf(&sb, "| %d | %s | %s | %s | %s |\n",
			r.Rank, escapePipes(title), escapePipes(strings.Join(r.Tags, ", ")),
			r.Date, escapePipes(r.Insights))
	}
	return sb.String()
}

func renderHTML(rows []row, topic string) string {
	var sb strings.Builder
	sb.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n")
	heading := html.EscapeString(titleCase(topic))
	fmt.Fprintf(&sb, "<title>%s Papers</title>\n</head>\n<body>\n", heading)
	fmt.Fprintf(&sb, "<h1>%s Papers</h1>\n", heading)
	sb.WriteString("<table>\n<tr><th>#</th><th>Title</th><th>Tags</th><th>Published</th><th>Key Insights</th></tr>\n")
	for _, r := range rows {
		title := html.EscapeString(r.Title)
		if r.ArxivURL != "" {
			title = fmt.Sprintf("<a href=\"%s\">%s</a>", html.EscapeString(r.ArxivURL), title)
		}
		fmt.Fprintf(&sb, "<tr><td>%d</td><td>%s</td><td>%s</td><td>%s</td><td>%s</td></tr>\n",
			r.Rank, title, html.EscapeString(strings.Join(r.Tags, ", ")),
			html.EscapeString(r.Date), html.EscapeString(r.Insights))
	}
	sb.WriteString("</table>\n</body>\n</html>\n")
	return sb.String()
}

func renderCSV(rows []row) (string, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write([]string{"rank", "title", "url", "tags", "published", "key_insights"}); err != nil {
		return "", fmt.Errorf("write csv header: %w", err)
	}
	for _, r := range rows {
		record := []string{
			strconv.Itoa(r.Rank), r.Title, r.ArxivURL,
			strings.Join(r.Tags, ", "), r.Date, r.Insights,
		}
		if err := w.Write(record); err != nil {
			return "", fmt.Errorf("write csv row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("flush csv: %w", err)
	}
	return buf.String(), nil
}

func escapePipes(s string) string {
	return strings.ReplaceAll(s, "|", "\\|")
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, word := range words {
		runes := []rune(word)
		runes[0] = unicode.ToUpper(runes[0])
		words[i] = string(runes)
	}
	return strings.Join(words, " ")
}
