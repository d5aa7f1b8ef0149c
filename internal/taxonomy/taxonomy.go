package taxonomy

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dvloznov/money-mirror/internal/domain"
	"gopkg.in/yaml.v3"
)

//go:embed categories.yaml
var seedYAML []byte

type seedFile struct {
	Categories []struct {
		General  string   `yaml:"general"`
		Detailed []string `yaml:"detailed"`
	} `yaml:"categories"`
}

// Seed returns the built-in taxonomy with sequential ids (cat_001, ...).
func Seed(now time.Time) ([]domain.Category, error) {
	return parseSeed(seedYAML, now)
}

func parseSeed(data []byte, now time.Time) ([]domain.Category, error) {
	var f seedFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parseSeed: unmarshal: %w", err)
	}

	var out []domain.Category
	for _, g := range f.Categories {
		general := strings.TrimSpace(g.General)
		if general == "" {
			return nil, fmt.Errorf("parseSeed: category without general name")
		}
		for _, d := range g.Detailed {
			out = append(out, domain.Category{
				CategoryID:       fmt.Sprintf("cat_%03d", len(out)+1),
				GeneralCategory:  general,
				DetailedCategory: strings.TrimSpace(d),
				IsActive:         true,
				CreatedAt:        now,
			})
		}
	}
	return out, nil
}

// Group returns general categories in first-seen order with their detailed
// categories.
func Group(categories []domain.Category) ([]string, map[string][]string) {
	var order []string
	grouped := make(map[string][]string)
	for _, c := range categories {
		if !c.IsActive {
			continue
		}
		if _, ok := grouped[c.GeneralCategory]; !ok {
			order = append(order, c.GeneralCategory)
		}
		grouped[c.GeneralCategory] = append(grouped[c.GeneralCategory], c.DetailedCategory)
	}
	return order, grouped
}

// PromptText renders the taxonomy as the bullet list used in classifier
// prompts.
func PromptText(categories []domain.Category) string {
	order, grouped := Group(categories)
	var b strings.Builder
	for _, general := range order {
		fmt.Fprintf(&b, "**%s:**\n", general)
		for _, d := range grouped[general] {
			fmt.Fprintf(&b, "  - %s\n", d)
		}
		b.WriteString("\n")
	}
	return b.String()
}

// Validator checks classifier output against the active taxonomy.
type Validator struct {
	general  map[string]string            // normalized -> canonical
	detailed map[string]map[string]string // normalized general -> normalized detailed -> canonical
}

// NewValidator builds lookup maps from the active categories.
func NewValidator(categories []domain.Category) *Validator {
	v := &Validator{
		general:  make(map[string]string),
		detailed: make(map[string]map[string]string),
	}
	for _, c := range categories {
		if !c.IsActive {
			continue
		}
		g := normalizeCategory(c.GeneralCategory)
		v.general[g] = c.GeneralCategory
		if v.detailed[g] == nil {
			v.detailed[g] = make(map[string]string)
		}
		v.detailed[g][normalizeCategory(c.DetailedCategory)] = c.DetailedCategory
	}
	return v
}

// Canonicalize validates a (general, detailed) pair and returns it with the
// taxonomy's spelling. A detailed value of "Uncategorized" is accepted under
// any general category.
func (v *Validator) Canonicalize(general, detailed string) (string, string, error) {
	g := normalizeCategory(general)
	canonGeneral, ok := v.general[g]
	if !ok {
		return "", "", fmt.Errorf("invalid category: %q (normalized: %q)", general, g)
	}

	d := normalizeCategory(detailed)
	if d == normalizeCategory(domain.UncategorizedLabel) {
		return canonGeneral, domain.UncategorizedLabel, nil
	}
	canonDetailed, ok := v.detailed[g][d]
	if !ok {
		valid := make([]string, 0, len(v.detailed[g]))
		for _, name := range v.detailed[g] {
			valid = append(valid, name)
		}
		sort.Strings(valid)
		return "", "", fmt.Errorf("invalid detailed category %q for %q. Valid detailed categories: %v", detailed, general, valid)
	}
	return canonGeneral, canonDetailed, nil
}

// normalizeCategory normalizes a category name for comparison.
func normalizeCategory(name string) string {
	return strings.ToUpper(strings.TrimSpace(name))
}
