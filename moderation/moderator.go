package moderation

import (
	"log/slog"
	"unicode"

	"github.com/abadojack/whatlanggo"
	goahocorasick "github.com/anknown/ahocorasick"
)

// Moderator masks censored words in chat content and tags the content language.
// It is read-only once built and safe for concurrent use.
type Moderator struct {
	machine *goahocorasick.Machine
	mask    rune
	log     *slog.Logger
}

// lookalikes maps leet speak characters to the letter they imitate.
var lookalikes = map[rune]rune{
	'4': 'a', '@': 'a',
	'3': 'e', '€': 'e',
	'1': 'i', '!': 'i', '|': 'i',
	'0': 'o',
	'5': 's', '$': 's',
}

// folded is a lowercased, noise-free copy of a text. origin[i] is the
// position in the source runes of folded rune i.
type folded struct {
	runes  []rune
	origin []int
}

func fold(text string) folded {
	source := []rune(text)
	f := folded{runes: make([]rune, 0, len(source)), origin: make([]int, 0, len(source))}
	for i, r := range source {
		if alias, ok := lookalikes[r]; ok {
			r = alias
		}
		if unicode.IsPunct(r) || unicode.IsSpace(r) || unicode.IsSymbol(r) {
			continue
		}
		f.runes = append(f.runes, unicode.ToLower(r))
		f.origin = append(f.origin, i)
	}
	return f
}

// NewModerator builds the Aho-Corasick automaton over the folded words.
// Words that fold to nothing, like pure punctuation, are skipped.
func NewModerator(words []string, mask rune, log *slog.Logger) (*Moderator, error) {
	moderator := &Moderator{mask: mask, log: log}
	var patterns [][]rune
	for _, word := range words {
		pattern := fold(word).runes
		if len(pattern) == 0 {
			log.Debug("Skipping empty censored pattern", "word", word)
			continue
		}
		patterns = append(patterns, pattern)
	}
	if len(patterns) == 0 {
		return moderator, nil
	}

	moderator.machine = new(goahocorasick.Machine)
	if err := moderator.machine.Build(patterns); err != nil {
		return nil, err
	}
	return moderator, nil
}

// Censor masks every rune of the source text covered by a censored word,
// punctuation hidden inside the word included. Spacing around it is kept.
// The matched words come back in text order.
func (m *Moderator) Censor(content string) (string, []string) {
	if m.machine == nil {
		return content, nil
	}
	text := fold(content)
	if len(text.runes) == 0 {
		return content, nil
	}
	hits := m.machine.MultiPatternSearch(text.runes, false)
	if len(hits) == 0 {
		return content, nil
	}

	masked := []rune(content)
	words := make([]string, 0, len(hits))
	for _, hit := range hits {
		end := hit.Pos + len(hit.Word)
		if hit.Pos < 0 || end > len(text.origin) {
			continue
		}
		for i := text.origin[hit.Pos]; i <= text.origin[end-1]; i++ {
			masked[i] = m.mask
		}
		words = append(words, string(hit.Word))
	}
	return string(masked), words
}

// Detect returns the ISO 639-1 code of the content language,
// or an empty string when the detection isn't reliable.
func (m *Moderator) Detect(content string) string {
	info := whatlanggo.Detect(content)
	if !info.IsReliable() {
		return ""
	}
	return info.Lang.Iso6391()
}
