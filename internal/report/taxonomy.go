package report

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"paperagent/internal/domain"
	"paperagent/internal/ports"
)

// TaxonomyFile is where the generated taxonomy is written.
const TaxonomyFile = "taxonomy.md"

// GenerateTaxonomy asks the text model to organize the collection's tags into
// a thematic hierarchy and writes the result as Markdown.
func GenerateTaxonomy(ctx context.Context, records []domain.RecordView, topic string, gen ports.TextGenerator) (string, error) {
	prompt := TaxonomyPrompt(records, topic)
	text, err := gen.Generate(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("generate taxonomy: %w", err)
	}

	content := fmt.Sprintf("# %s Taxonomy\n\n%s\n", titleCase(topic), strings.TrimSpace(text))
	if err := os.WriteFile(TaxonomyFile, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("write taxonomy: %w", err)
	}
	return TaxonomyFile, nil
}

// TaxonomyPrompt builds the prompt from the distinct tags and paper titles in
// the collection. Tags are sorted so the prompt is stable across runs.
func TaxonomyPrompt(records []domain.RecordView, topic string) string {
	seen := map[string]struct{}{}
	var tags []string
	for _, record := range records {
		for _, tag := range record.Tags {
			if _, ok := seen[tag]; ok {
				continue
			}
			seen[tag] = struct{}{}
			tags = append(tags, tag)
		}
	}
	sort.Strings(tags)

	var titles []string
	for _, record := range records {
		titles = append(titles, "- "+record.Title)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Organize the following research tags about %s into a two-level thematic taxonomy.\n", topic)
	sb.WriteString("Group related tags under concise theme headings and render the result as a Markdown outline.\n\n")
	sb.WriteString("Tags: " + strings.Join(tags, ", ") + "\n\n")
	sb.WriteString("Papers in the collection:\n")
	sb.WriteString(strings.Join(titles, "\n"))
	return sb.String()
}
