package catalog

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode"

	_ "embed"

	"github.com/spf13/viper"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

//go:embed categories.yaml
var defaultCategories []byte

type CostRange struct {
	Min float64 `mapstructure:"min" json:"min"`
	Max float64 `mapstructure:"max" json:"max"`
}

// Category describes one service category and the data used to recognise it.
type Category struct {
	Name              string    `mapstructure:"name" json:"name"`
	Keywords          []string  `mapstructure:"keywords" json:"keywords"`
	CostRange         CostRange `mapstructure:"cost-range" json:"costRange"`
	DefaultComplexity int       `mapstructure:"default-complexity" json:"defaultComplexity"`
}

// Catalog is an immutable, ordered set of categories.
type Catalog struct {
	categories []Category
	byName     map[string]int
}

// New validates the categories and builds a catalog. Keywords are lower-cased.
func New(categories []Category) (*Catalog, error) {
	c := &Catalog{
		categories: make([]Category, 0, len(categories)),
		byName:     make(map[string]int, len(categories)),
	}

	for _, category := range categories {
		name := strings.TrimSpace(category.Name)
		if name == "" {
			return nil, fmt.Errorf("category without a name")
		}
		key := Fold(name)
		if _, ok := c.byName[key]; ok {
			return nil, fmt.Errorf("duplicate category %q", name)
		}
		if category.CostRange.Max < category.CostRange.Min {
			return nil, fmt.Errorf("category %q: cost range max is below min", name)
		}
		// Zero leaves the complexity unset.
		if category.DefaultComplexity < 0 || category.DefaultComplexity > 10 {
			return nil, fmt.Errorf("category %q: default complexity %d must be 0 (unset) or within 1..10", name, category.DefaultComplexity)
		}

		keywords := make([]string, 0, len(category.Keywords))
		for _, keyword := range category.Keywords {
			keyword = Fold(keyword)
			if keyword != "" {
				keywords = append(keywords, keyword)
			}
		}

		category.Name = name
		category.Keywords = keywords
		c.byName[key] = len(c.categories)
		c.categories = append(c.categories, category)
	}

	return c, nil
}

// Default returns the built-in catalog.
func Default() *Catalog {
	c, err := Read(bytes.NewReader(defaultCategories))
	if err != nil {
		panic(fmt.Sprintf("built-in category catalog is broken: %v", err))
	}
	return c
}

// LoadFile reads a catalog from a YAML file with a top-level categories list.
func LoadFile(path string) (*Catalog, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	c, err := Read(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// Read parses catalog YAML.
func Read(r io.Reader) (*Catalog, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	if err := v.ReadConfig(r); err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}

	var categories []Category
	if err := v.UnmarshalKey("categories", &categories); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}

	return New(categories)
}

func (c *Catalog) Categories() []Category {
	out := make([]Category, len(c.categories))
	copy(out, c.categories)
	return out
}

// Lookup finds a category by name, ignoring case.
func (c *Catalog) Lookup(name string) (Category, bool) {
	idx, ok := c.byName[Fold(name)]
	if !ok {
		return Category{}, false
	}
	return c.categories[idx], true
}

// DetectKeywords returns catalog keywords found in text, in catalog order and
// without duplicates.
func (c *Catalog) DetectKeywords(text string) []string {
	words := Words(text)
	if len(words) == 0 {
		return nil
	}

	seen := make(map[string]struct{})
	var found []string
	for _, category := range c.categories {
		for _, keyword := range category.Keywords {
			if _, ok := seen[keyword]; ok {
				continue
			}
			if containsPhrase(words, Words(keyword)) {
				seen[keyword] = struct{}{}
				found = append(found, keyword)
			}
		}
	}
	return found
}

// InferCategory picks the category with the most keyword hits in text. Ties
// go to the category listed first; no hits yield "".
func (c *Catalog) InferCategory(text string) string {
	words := Words(text)
	best, bestHits := "", 0
	for _, category := range c.categories {
		hits := 0
		for _, keyword := range category.Keywords {
			if containsPhrase(words, Words(keyword)) {
				hits++
			}
		}
		if hits > bestHits {
			best, bestHits = category.Name, hits
		}
	}
	return best
}

// JobKeywords returns the services a job asks for: keywords detected in the
// description, or the category's own keywords when nothing is detected.
func (c *Catalog) JobKeywords(category, description string) []string {
	if detected := c.DetectKeywords(description); len(detected) > 0 {
		return detected
	}
	if cat, ok := c.Lookup(category); ok {
		out := make([]string, len(cat.Keywords))
		copy(out, cat.Keywords)
		return out
	}
	return nil
}

// Overlap returns the job keywords covered by any of the provider's keywords.
// A keyword is covered when either side contains the other as whole words.
func Overlap(jobKeywords, providerKeywords []string) []string {
	normalized := make([][]string, 0, len(providerKeywords))
	for _, keyword := range providerKeywords {
		if words := Words(keyword); len(words) > 0 {
			normalized = append(normalized, words)
		}
	}

	var matched []string
	for _, jobKeyword := range jobKeywords {
		words := Words(jobKeyword)
		if len(words) == 0 {
			continue
		}
		for _, providerWords := range normalized {
			if containsPhrase(providerWords, words) || containsPhrase(words, providerWords) {
				matched = append(matched, Fold(jobKeyword))
				break
			}
		}
	}
	return matched
}

// inflections are the endings a text word may add to a keyword and still
// count as that keyword, so "plumb" covers "plumbing" but "wall" misses "wallet".
var inflections = map[string]struct{}{
	"": {}, "s": {}, "es": {}, "d": {}, "ed": {}, "ing": {}, "e": {}, "y": {},
	"er": {}, "ers": {}, "or": {}, "ors": {}, "ry": {}, "al": {}, "en": {},
	"ian": {}, "ians": {}, "ion": {}, "ions": {}, "ity": {},
}

// Words folds s and splits it into words on anything that is not a letter
// or digit.
func Words(s string) []string {
	return strings.FieldsFunc(Fold(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}

// containsPhrase reports whether phrase occurs in words as consecutive whole
// words. Only the last word of the phrase may be inflected.
func containsPhrase(words, phrase []string) bool {
	if len(phrase) == 0 || len(phrase) > len(words) {
		return false
	}
	last := len(phrase) - 1
	for start := 0; start+len(phrase) <= len(words); start++ {
		ok := true
		for i, want := range phrase {
			got := words[start+i]
			if i < last && got != want || i == last && !inflectionOf(got, want) {
				ok = false
				break
			}
		}
		if ok {
			return true
		}
	}
	return false
}

// inflectionOf reports whether word is stem with an allowed ending. A doubled
// final consonant is accepted, as in "clog" and "clogged".
func inflectionOf(word, stem string) bool {
	if !strings.HasPrefix(word, stem) {
		return false
	}
	rest := word[len(stem):]
	if _, ok := inflections[rest]; ok {
		return true
	}
	if rest != "" && stem != "" && rest[0] == stem[len(stem)-1] {
		_, ok := inflections[rest[1:]]
		return ok && rest[1:] != ""
	}
	return false
}

// Fold lower-cases s, strips diacritics and collapses whitespace, so
// "Orión " and "orion" compare equal.
func Fold(s string) string {
	// Transformers keep state, so each call builds its own chain.
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if folded, _, err := transform.String(t, s); err == nil {
		s = folded
	}
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// SameName reports whether two names are equal after folding. Blank names
// never match.
func SameName(a, b string) bool {
	a = Fold(a)
	return a != "" && a == Fold(b)
}
