package enrichment

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dvloznov/money-mirror/internal/domain"
	"github.com/dvloznov/money-mirror/internal/taxonomy"
	"google.golang.org/genai"
)

// DefaultModelName is used when no model is configured.
const DefaultModelName = "gemini-2.5-flash"

// contentGenerator is the part of genai.Models the classifier uses.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// CategorySource supplies the taxonomy shown to the model.
type CategorySource interface {
	Active(ctx context.Context) ([]domain.Category, error)
}

// GeminiConfig selects the Gemini backend.
type GeminiConfig struct {
	APIKey      string
	Model       string
	UseVertexAI bool
	Project     string
	Location    string
}

// GeminiClassifier classifies descriptions with a Gemini model.
type GeminiClassifier struct {
	models     contentGenerator
	model      string
	categories CategorySource
}

// NewGeminiClassifier creates a GenAI client for cfg.
func NewGeminiClassifier(ctx context.Context, cfg GeminiConfig, categories CategorySource) (*GeminiClassifier, error) {
	cc := &genai.ClientConfig{
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	}
	if cfg.UseVertexAI {
		cc.Backend = genai.BackendVertexAI
		cc.Project = cfg.Project
		cc.Location = cfg.Location
	} else {
		cc.Backend = genai.BackendGeminiAPI
		cc.APIKey = cfg.APIKey
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("NewGeminiClassifier: create genai client: %w", err)
	}
	return newGeminiClassifier(client.Models, cfg.Model, categories), nil
}

func newGeminiClassifier(models contentGenerator, model string, categories CategorySource) *GeminiClassifier {
	if model == "" {
		model = DefaultModelName
	}
	return &GeminiClassifier{models: models, model: model, categories: categories}
}

// ModelVersion returns the configured model name.
func (c *GeminiClassifier) ModelVersion() string {
	return c.model
}

// Classify sends one numbered batch to the model and maps the answers back
// to descriptions by number.
func (c *GeminiClassifier) Classify(ctx context.Context, descriptions []string) ([]domain.Classification, error) {
	if len(descriptions) == 0 {
		return nil, nil
	}

	categories, err := c.categories.Active(ctx)
	if err != nil {
		return nil, fmt.Errorf("GeminiClassifier.Classify: loading categories: %w", err)
	}

	contents := []*genai.Content{
		{
			Role:  "user",
			Parts: []*genai.Part{{Text: buildPrompt(descriptions, taxonomy.PromptText(categories))}},
		},
	}

	resp, err := c.models.GenerateContent(ctx, c.model, contents, nil)
	if err != nil {
		return nil, fmt.Errorf("GeminiClassifier.Classify: generate content: %w", err)
	}

	rawText := resp.Text()
	if rawText == "" {
		return nil, fmt.Errorf("GeminiClassifier.Classify: empty response from model")
	}

	return parseClassifications(rawText, descriptions)
}

func buildPrompt(descriptions []string, taxonomyText string) string {
	var list strings.Builder
	for i, d := range descriptions {
		fmt.Fprintf(&list, "%d. %s\n", i+1, d)
	}

	return "You are a financial transaction categorization expert. Categorize each of the " +
		"following transaction descriptions into one of the predefined categories.\n\n" +
		"Available categories:\n" + taxonomyText +
		"Transaction descriptions to categorize:\n" + list.String() + "\n" +
		"Instructions:\n" +
		"1. For each description, choose the most appropriate general_category and detailed_category from the list above.\n" +
		"2. The general_category must be one of the main categories (bold headers).\n" +
		"3. The detailed_category must be one of the subcategories under the chosen general_category.\n" +
		"4. If a transaction doesn't clearly fit any category, use the closest general_category with \"Uncategorized\" as the detailed_category.\n" +
		"5. Provide a confidence_score between 0.0 and 1.0.\n\n" +
		"Respond with a JSON array in this exact format:\n" +
		"[\n" +
		"  {\n" +
		"    \"description_number\": 1,\n" +
		"    \"general_category\": \"Dining & Restaurants\",\n" +
		"    \"detailed_category\": \"Sit-down Restaurants\",\n" +
		"    \"confidence_score\": 0.95\n" +
		"  }\n" +
		"]\n\n" +
		"Respond ONLY with the JSON array, no additional text.\n"
}

type modelAnswer struct {
	DescriptionNumber int     `json:"description_number"`
	GeneralCategory   string  `json:"general_category"`
	DetailedCategory  string  `json:"detailed_category"`
	ConfidenceScore   float64 `json:"confidence_score"`
}

// parseClassifications decodes the model reply. A reply that is not a JSON
// array fails the whole batch; answers with unknown numbers are ignored and
// the first answer per number wins.
func parseClassifications(raw string, descriptions []string) ([]domain.Classification, error) {
	clean := cleanModelJSON(raw)

	var answers []modelAnswer
	if err := json.Unmarshal([]byte(clean), &answers); err != nil {
		return nil, fmt.Errorf("parseClassifications: unmarshal JSON: %w\nraw response: %s", err, raw)
	}

	seen := make(map[int]bool, len(answers))
	out := make([]domain.Classification, 0, len(answers))
	for _, a := range answers {
		if a.DescriptionNumber < 1 || a.DescriptionNumber > len(descriptions) || seen[a.DescriptionNumber] {
			continue
		}
		seen[a.DescriptionNumber] = true
		out = append(out, domain.Classification{
			Description:      descriptions[a.DescriptionNumber-1],
			GeneralCategory:  strings.TrimSpace(a.GeneralCategory),
			DetailedCategory: strings.TrimSpace(a.DetailedCategory),
			ConfidenceScore:  a.ConfidenceScore,
		})
	}
	return out, nil
}

func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)

	// ```json ... ``` or ``` ... ```
	if strings.HasPrefix(s, "```") {
		idx := strings.Index(s, "\n")
		if idx == -1 {
			return s
		}
		s = strings.TrimSpace(s[idx+1:])
	}
	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}
	s = strings.TrimSpace(s)

	// Keep only the outermost array if the model added prose around it.
	if start := strings.Index(s, "["); start != -1 {
		if end := strings.LastIndex(s, "]"); end > start {
			s = strings.TrimSpace(s[start : end+1])
		}
	}
	return s
}
