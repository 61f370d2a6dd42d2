package gateway

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/lehigh-university-libraries/wagner/internal/models"
)

// trimFences strips markdown code fences models like to wrap their output in
func trimFences(response string) string {
	response = strings.TrimSpace(response)
	response = strings.TrimPrefix(response, "```json")
	response = strings.TrimPrefix(response, "```text")
	response = strings.TrimPrefix(response, "```")
	response = strings.TrimSuffix(response, "```")
	return strings.TrimSpace(response)
}

// extractJSON returns the JSON value embedded in a model response: the span from the first
// opening brace or bracket to the last matching closer, so fences and prose around it are dropped.
func extractJSON(response string) string {
	response = trimFences(response)

	start := strings.IndexAny(response, "{[")
	if start == -1 {
		return response
	}
	closer := "}"
	if response[start] == '[' {
		closer = "]"
	}
	end := strings.LastIndex(response, closer)
	if end <= start {
		return response
	}
	return response[start : end+1]
}

// parseSentences accepts {"sentences": [...]} or a bare array
func parseSentences(response string) ([]models.Sentence, error) {
	raw := extractJSON(response)

	var wrapped struct {
		Sentences []models.Sentence `json:"sentences"`
	}
	if err := json.Unmarshal([]byte(raw), &wrapped); err == nil {
		return cleanSentences(wrapped.Sentences), nil
	}

	var bare []models.Sentence
	if err := json.Unmarshal([]byte(raw), &bare); err != nil {
		return nil, fmt.Errorf("failed to parse sentences from model response: %w", err)
	}
	return cleanSentences(bare), nil
}

func cleanSentences(in []models.Sentence) []models.Sentence {
	out := make([]models.Sentence, 0, len(in))
	for _, s := range in {
		s.De = strings.TrimSpace(s.De)
		s.Ko = strings.TrimSpace(s.Ko)
		s.En = strings.TrimSpace(s.En)
		if s.De == "" && s.Ko == "" && s.En == "" {
			continue
		}
		out = append(out, s)
	}
	return out
}

type mergeResponse struct {
	MergedFromPrevious string            `json:"merged_from_previous"`
	CleanGerman        string            `json:"clean_german"`
	Sentences          []models.Sentence `json:"sentences"`
}

func parseMerge(response string) (*mergeResponse, error) {
	var out mergeResponse
	if err := json.Unmarshal([]byte(extractJSON(response)), &out); err != nil {
		return nil, fmt.Errorf("failed to parse merge result from model response: %w", err)
	}
	out.Sentences = cleanSentences(out.Sentences)
	out.CleanGerman = strings.TrimSpace(out.CleanGerman)
	out.MergedFromPrevious = strings.TrimSpace(out.MergedFromPrevious)
	return &out, nil
}

type layoutResponse struct {
	PageType string `json:"page_type"`
	Blocks   []struct {
		Type        string  `json:"type"`
		Content     string  `json:"content"`
		Description string  `json:"description"`
		Top         float64 `json:"top"`
		Bottom      float64 `json:"bottom"`
	} `json:"blocks"`
}

var pageTypes = map[string]bool{
	models.BlockText:         true,
	models.BlockMusicScore:   true,
	models.BlockIllustration: true,
	"mixed":                  true,
}

func parseLayout(response string) (*Layout, error) {
	var raw layoutResponse
	if err := json.Unmarshal([]byte(extractJSON(response)), &raw); err != nil {
		return nil, fmt.Errorf("failed to parse layout from model response: %w", err)
	}

	layout := &Layout{PageType: strings.ToLower(strings.TrimSpace(raw.PageType))}
	if !pageTypes[layout.PageType] {
		layout.PageType = "text"
	}

	for _, b := range raw.Blocks {
		block := models.ContentBlock{Type: strings.ToLower(strings.TrimSpace(b.Type))}
		switch block.Type {
		case models.BlockMusicScore, models.BlockIllustration:
			block.Description = strings.TrimSpace(b.Description)
			top, bottom := clampPercent(b.Top), clampPercent(b.Bottom)
			if bottom <= top {
				top, bottom = 0, 100
			}
			block.CropPercent = &models.CropPercent{Top: top, Bottom: bottom}
		default:
			block.Type = models.BlockText
			block.Content = strings.TrimSpace(b.Content)
		}
		layout.Blocks = append(layout.Blocks, block)
	}
	return layout, nil
}

func clampPercent(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
