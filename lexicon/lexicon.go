package lexicon

import (
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"gopkg.in/yaml.v3"
)

// Lexicon holds the static detection configuration: abbreviation aliases,
// instrument keyword phrases, and per-domain keyword sets. It is loaded once
// at startup and passed into the detection service; nothing mutates it after
// construction.
type Lexicon struct {
	// Aliases maps jurisdiction-specific short forms to canonical
	// abbreviations, keys uppercased (e.g. "LPD-VD" -> "LPrD").
	Aliases map[string]string `yaml:"aliases"`

	// Keywords maps verbatim phrases (lowercased) to canonical
	// abbreviations, e.g. "loi sur l'enseignement obligatoire" -> "LEO".
	Keywords map[string]string `yaml:"keywords"`

	// Domains lists the topic keyword sets used for domain inference.
	Domains []Domain `yaml:"domains"`
}

// Domain is one topic label with its keyword set. A domain counts as
// detected when at least MinMatches distinct keywords appear in the text.
type Domain struct {
	Name       string   `yaml:"name"`
	Keywords   []string `yaml:"keywords"`
	MinMatches int      `yaml:"min_matches"`
}

// Citation shapes recognized by the detector. Locators accept an optional
// paragraph ("al. N") or letter ("let. a") qualifier.
var (
	// "art. 17 LEO", "art. 45b al. 2 RLEO"
	patternArtFirst = regexp.MustCompile(`(?i)\bart\.?\s*(\d+[a-z]?(?:\s+al\.\s*\d+)?(?:\s+let\.\s*[a-z])?)\s+([A-Z][A-Za-z]{1,9}(?:-[A-Z]{1,4})?)\b`)

	// "LEO art. 17"
	patternAbbrFirst = regexp.MustCompile(`\b([A-Z][A-Za-z]{1,9}(?:-[A-Z]{1,4})?)\s+art\.?\s*(\d+[a-z]?(?:\s+al\.\s*\d+)?(?:\s+let\.\s*[a-z])?)`)

	// "§17", "§ 17a": locator without an abbreviation
	patternSection = regexp.MustCompile(`§\s*(\d+[a-z]?)`)
)

// Citation is one raw match of a citation shape in the text
type Citation struct {
	Abbreviation string // may be empty for bare "§N" matches
	Locator      string // e.g. "17", "45b al. 2"
	MatchText    string
	Position     int // rune offset
}

// ExtractCitations applies the fixed citation shapes over the text and
// returns candidates ordered by position. The same span is reported once;
// "art. N ABBR" wins over overlapping "ABBR art. N" matches.
func ExtractCitations(text string) []Citation {
	var out []Citation
	seen := make(map[int]bool)

	for _, m := range patternArtFirst.FindAllStringSubmatchIndex(text, -1) {
		out = append(out, Citation{
			Abbreviation: text[m[4]:m[5]],
			Locator:      collapseSpaces(text[m[2]:m[3]]),
			MatchText:    text[m[0]:m[1]],
			Position:     runeOffset(text, m[0]),
		})
		markRange(seen, m[0], m[1])
	}

	for _, m := range patternAbbrFirst.FindAllStringSubmatchIndex(text, -1) {
		// Skip spans already claimed by an "art. N ABBR" match
		if overlapsSeen(seen, m[0], m[1]) {
			continue
		}
		out = append(out, Citation{
			Abbreviation: text[m[2]:m[3]],
			Locator:      collapseSpaces(text[m[4]:m[5]]),
			MatchText:    text[m[0]:m[1]],
			Position:     runeOffset(text, m[0]),
		})
		markRange(seen, m[0], m[1])
	}

	for _, m := range patternSection.FindAllStringSubmatchIndex(text, -1) {
		if overlapsSeen(seen, m[0], m[1]) {
			continue
		}
		out = append(out, Citation{
			Abbreviation: "",
			Locator:      text[m[2]:m[3]],
			MatchText:    text[m[0]:m[1]],
			Position:     runeOffset(text, m[0]),
		})
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out
}

// Normalize maps a raw abbreviation through the alias table. The second
// return reports whether an alias rewrite happened (as opposed to the
// abbreviation already being canonical).
func (l *Lexicon) Normalize(abbreviation string) (string, bool) {
	key := strings.ToUpper(strings.TrimSpace(abbreviation))
	canonical, ok := l.Aliases[key]
	if !ok {
		return abbreviation, false
	}
	return canonical, !strings.EqualFold(canonical, abbreviation)
}

// KeywordMatch is a verbatim instrument phrase found in the text
type KeywordMatch struct {
	Phrase       string
	Abbreviation string
	Position     int
}

// FindKeywordPhrases scans the text for configured instrument phrases. The
// match is located in the lowercase fold but reported from the original text;
// ToLower maps rune for rune, so rune offsets agree between the two even
// where byte offsets do not.
func (l *Lexicon) FindKeywordPhrases(text string) []KeywordMatch {
	lower := strings.ToLower(text)
	runes := []rune(text)
	var out []KeywordMatch
	for phrase, abbr := range l.Keywords {
		idx := strings.Index(lower, phrase)
		if idx < 0 {
			continue
		}
		start := utf8.RuneCountInString(lower[:idx])
		end := start + utf8.RuneCountInString(phrase)
		if end > len(runes) {
			continue
		}
		out = append(out, KeywordMatch{
			Phrase:       string(runes[start:end]),
			Abbreviation: abbr,
			Position:     start,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out
}

// DomainScore is the keyword-overlap result for one domain
type DomainScore struct {
	Name     string
	Matched  []string
	Total    int
	Detected bool
}

// ScoreDomains scores the text against every domain keyword set. A domain is
// detected when at least MinMatches (default 2) distinct keywords appear.
func (l *Lexicon) ScoreDomains(text string) []DomainScore {
	lower := strings.ToLower(text)
	scores := make([]DomainScore, 0, len(l.Domains))
	for _, d := range l.Domains {
		min := d.MinMatches
		if min <= 0 {
			min = 2
		}
		var matched []string
		for _, kw := range d.Keywords {
			if strings.Contains(lower, strings.ToLower(kw)) {
				matched = append(matched, kw)
			}
		}
		scores = append(scores, DomainScore{
			Name:     d.Name,
			Matched:  matched,
			Total:    len(d.Keywords),
			Detected: len(matched) >= min,
		})
	}
	return scores
}

// Confidence returns the domain-inference confidence for a score, scaled by
// keyword overlap into the 0.3–0.7 band.
func (s DomainScore) Confidence() float64 {
	if s.Total == 0 {
		return 0.3
	}
	frac := float64(len(s.Matched)) / float64(s.Total)
	if frac > 1 {
		frac = 1
	}
	return 0.3 + 0.4*frac
}

// Load reads a lexicon YAML file and validates it
func Load(path string) (*Lexicon, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read lexicon file: %w", err)
	}
	var lex Lexicon
	if err := yaml.Unmarshal(data, &lex); err != nil {
		return nil, fmt.Errorf("failed to parse lexicon file: %w", err)
	}
	lex.normalize()
	return &lex, nil
}

// Default returns the built-in lexicon covering the Vaud school-law corpus
func Default() *Lexicon {
	lex := &Lexicon{
		Aliases: map[string]string{
			"LEO":    "LEO",
			"RLEO":   "RLEO",
			"LPD-VD": "LPrD",
			"LPRD":   "LPrD",
			"LS":     "LS",
			"CC":     "CC",
			"CO":     "CO",
			"CST":    "Cst",
			"CST-VD": "Cst-VD",
			"LPGA":   "LPGA",
			"LIFD":   "LIFD",
		},
		Keywords: map[string]string{
			"loi sur l'enseignement obligatoire":   "LEO",
			"règlement d'application de la leo":    "RLEO",
			"loi sur la protection des données":    "LPrD",
			"loi scolaire":                         "LS",
			"code civil":                           "CC",
			"code des obligations":                 "CO",
			"constitution vaudoise":                "Cst-VD",
		},
		Domains: []Domain{
			{
				Name:     "education",
				Keywords: []string{"école", "élève", "enseignant", "scolaire", "classe", "directeur", "établissement"},
			},
			{
				Name:     "data_protection",
				Keywords: []string{"données personnelles", "protection des données", "dossier", "confidentialité", "accès au dossier"},
			},
			{
				Name:     "administrative_procedure",
				Keywords: []string{"décision", "recours", "délai", "autorité", "procédure", "notification"},
			},
			{
				Name:     "child_protection",
				Keywords: []string{"protection de l'enfant", "signalement", "curatelle", "autorité parentale", "mineur"},
			},
		},
	}
	lex.normalize()
	return lex
}

func (l *Lexicon) normalize() {
	aliases := make(map[string]string, len(l.Aliases))
	for k, v := range l.Aliases {
		aliases[strings.ToUpper(strings.TrimSpace(k))] = v
	}
	l.Aliases = aliases

	keywords := make(map[string]string, len(l.Keywords))
	for k, v := range l.Keywords {
		keywords[strings.ToLower(strings.TrimSpace(k))] = v
	}
	l.Keywords = keywords
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func runeOffset(text string, byteIdx int) int {
	return len([]rune(text[:byteIdx]))
}

func overlapsSeen(seen map[int]bool, start, end int) bool {
	for i := start; i < end; i++ {
		if seen[i] {
			return true
		}
	}
	return false
}

func markRange(seen map[int]bool, start, end int) {
	for i := start; i < end; i++ {
		seen[i] = true
	}
}
