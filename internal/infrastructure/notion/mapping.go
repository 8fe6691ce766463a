package notion

import (
	"fmt"
	"strings"

	"paperagent/internal/domain"
)

// page is the wire shape of a database row: an id plus a bag of typed
// properties.
type page struct {
	ID         string         `json:"id"`
	Properties map[string]any `json:"properties"`
}

// MappingError reports a property whose wire shape did not match the schema.
// Mapping fails fast on unexpected shapes instead of silently defaulting.
type MappingError struct {
	Property string
	Reason   string
}

func (e *MappingError) Error() string {
	return fmt.Sprintf("map property %q: %s", e.Property, e.Reason)
}

// mapRecordView flattens a database row into a RecordView: rich-text runs are
// concatenated, multi-selects become name lists.
func mapRecordView(pg page) (domain.RecordView, error) {
	title, err := textProperty(pg.Properties, "Title")
	if err != nil {
		return domain.RecordView{}, err
	}
	arxivID, err := textProperty(pg.Properties, "ArXiv ID")
	if err != nil {
		return domain.RecordView{}, err
	}

	authors, err := textProperty(pg.Properties, "Authors")
	if err != nil {
		return domain.RecordView{}, err
	}
	abstract, err := textProperty(pg.Properties, "Abstract")
	if err != nil {
		return domain.RecordView{}, err
	}
	insights, err := textProperty(pg.Properties, "Key Insights")
	if err != nil {
		return domain.RecordView{}, err
	}
	methodology, err := textProperty(pg.Properties, "Methodology")
	if err != nil {
		return domain.RecordView{}, err
	}

	published, err := dateProperty(pg.Properties, "Published Date")
	if err != nil {
		return domain.RecordView{}, err
	}
	categories, err := multiSelectProperty(pg.Properties, "Categories")
	if err != nil {
		return domain.RecordView{}, err
	}
	tags, err := multiSelectProperty(pg.Properties, "Tags")
	if err != nil {
		return domain.RecordView{}, err
	}
	arxivURL, err := urlProperty(pg.Properties, "ArXiv URL")
	if err != nil {
		return domain.RecordView{}, err
	}
	score, err := numberProperty(pg.Properties, "Relevance Score")
	if err != nil {
		return domain.RecordView{}, err
	}
	status, err := selectProperty(pg.Properties, "Status")
	if err != nil {
		return domain.RecordView{}, err
	}
	if status == "" {
		status = string(domain.StatusNew)
	}

	return domain.RecordView{
		ID:             pg.ID,
		Title:          title,
		Authors:        authors,
		Abstract:       abstract,
		ArxivID:        arxivID,
		PublishedDate:  published,
		Categories:     categories,
		ArxivURL:       arxivURL,
		Tags:           tags,
		RelevanceScore: score,
		KeyInsights:    insights,
		Methodology:    methodology,
		Status:         domain.Status(status),
	}, nil
}

// textProperty concatenates the plain text of a title or rich_text property.
func textProperty(props map[string]any, name string) (string, error) {
	prop, ok := props[name].(map[string]any)
	if !ok {
		return "", &MappingError{Property: name, Reason: "property missing or not an object"}
	}

	runs, ok := prop["rich_text"].([]any)
	if !ok {
		runs, ok = prop["title"].([]any)
	}
	if !ok {
		return "", &MappingError{Property: name, Reason: "expected rich_text or title payload"}
	}

	var sb strings.Builder
	for _, run := range runs {
		obj, ok := run.(map[string]any)
		if !ok {
			return "", &MappingError{Property: name, Reason: "text run is not an object"}
		}
		if plain, ok := obj["plain_text"].(string); ok {
			sb.WriteString(plain)
			continue
		}
		text, ok := obj["text"].(map[string]any)
		if !ok {
			return "", &MappingError{Property: name, Reason: "text run has no plain_text or text.content"}
		}
		content, ok := text["content"].(string)
		if !ok {
			return "", &MappingError{Property: name, Reason: "text content is not a string"}
		}
		sb.WriteString(content)
	}
	return sb.String(), nil
}

func multiSelectProperty(props map[string]any, name string) ([]string, error) {
	prop, ok := props[name].(map[string]any)
	if !ok {
		return nil, &MappingError{Property: name, Reason: "property missing or not an object"}
	}
	options, ok := prop["multi_select"].([]any)
	if !ok {
		return nil, &MappingError{Property: name, Reason: "expected multi_select payload"}
	}

	names := make([]string, 0, len(options))
	for _, opt := range options {
		obj, ok := opt.(map[string]any)
		if !ok {
			return nil, &MappingError{Property: name, Reason: "option is not an object"}
		}
		optName, ok := obj["name"].(string)
		if !ok {
			return nil, &MappingError{Property: name, Reason: "option name is not a string"}
		}
		names = append(names, optName)
	}
	return names, nil
}

func selectProperty(props map[string]any, name string) (string, error) {
	prop, ok := props[name].(map[string]any)
	if !ok {
		return "", &MappingError{Property: name, Reason: "property missing or not an object"}
	}
	sel, ok := prop["select"].(map[string]any)
	if !ok {
		if prop["select"] == nil {
			return "", nil
		}
		return "", &MappingError{Property: name, Reason: "expected select payload"}
	}
	selName, ok := sel["name"].(string)
	if !ok {
		return "", &MappingError{Property: name, Reason: "select name is not a string"}
	}
	return selName, nil
}

func dateProperty(props map[string]any, name string) (string, error) {
	prop, ok := props[name].(map[string]any)
	if !ok {
		return "", &MappingError{Property: name, Reason: "property missing or not an object"}
	}
	date, ok := prop["date"].(map[string]any)
	if !ok {
		if prop["date"] == nil {
			return "", nil
		}
		return "", &MappingError{Property: name, Reason: "expected date payload"}
	}
	start, ok := date["start"].(string)
	if !ok {
		return "", &MappingError{Property: name, Reason: "date start is not a string"}
	}
	return start, nil
}

func urlProperty(props map[string]any, name string) (string, error) {
	prop, ok := props[name].(map[string]any)
	if !ok {
		return "", &MappingError{Property: name, Reason: "property missing or not an object"}
	}
	if prop["url"] == nil {
		return "", nil
	}
	u, ok := prop["url"].(string)
	if !ok {
		return "", &MappingError{Property: name, Reason: "url is not a string"}
	}
	return u, nil
}

func numberProperty(props map[string]any, name string) (float64, error) {
	prop, ok := props[name].(map[string]any)
	if !ok {
		return 0, &MappingError{Property: name, Reason: "property missing or not an object"}
	}
	if prop["number"] == nil {
		return 0, nil
	}
	n, ok := prop["number"].(float64)
	if !ok {
		return 0, &MappingError{Property: name, Reason: "number is not numeric"}
	}
	return n, nil
}
