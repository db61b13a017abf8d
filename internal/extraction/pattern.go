package extraction

import (
	"context"
	"regexp"
	"strings"
	"time"
	"unicode"

	"cloud.google.com/go/civil"
	"github.com/samber/lo"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"

	"travel-agent/internal/domain"
)

// tokenRE matches numeric dates first so "20.07" stays one token, then
// words with inner hyphens or apostrophes ("Ростов-на-Дону").
var tokenRE = regexp.MustCompile(`\d{1,4}(?:[./-]\d{1,4}){1,2}|[\p{L}\p{N}]+(?:[-'’][\p{L}\p{N}]+)*`)

type token struct {
	text  string
	lower string
}

func (t token) isNumericDate() bool {
	return strings.ContainsAny(t.text, "./-") && t.text[0] >= '0' && t.text[0] <= '9'
}

func (t token) isCapitalized() bool {
	for _, r := range t.text {
		return unicode.IsUpper(r)
	}
	return false
}

func (t token) hasLetter() bool {
	return strings.IndexFunc(t.text, unicode.IsLetter) >= 0
}

// Pattern extracts entities with deterministic rules. It never returns an
// error and only looks at the latest message; Request.Known is consulted
// only to decide which unmarked place names may fill a missing route end.
type Pattern struct {
	vocab *vocabIndex
	loc   *time.Location
	now   func() time.Time
}

var _ Extractor = (*Pattern)(nil)

type PatternOption func(*Pattern)

// WithVocabulary replaces the built-in word lists.
func WithVocabulary(v Vocabulary) PatternOption {
	return func(p *Pattern) {
		p.vocab = compileVocabulary(v)
	}
}

// WithLocation sets the time zone "today" is computed in.
func WithLocation(loc *time.Location) PatternOption {
	return func(p *Pattern) {
		if loc != nil {
			p.loc = loc
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) PatternOption {
	return func(p *Pattern) {
		if now != nil {
			p.now = now
		}
	}
}

func NewPattern(opts ...PatternOption) *Pattern {
	p := &Pattern{
		vocab: compileVocabulary(DefaultVocabulary()),
		loc:   time.UTC,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Pattern) Extract(_ context.Context, req Request) (domain.TravelEntities, error) {
	now := req.Now
	if now.IsZero() {
		now = p.now()
	}
	return p.extract(req.Text, now, req.Known), nil
}

// ExtractText applies every rule to text as the first message of a
// conversation. now is read once and anchors all relative dates in the
// result.
func (p *Pattern) ExtractText(text string, now time.Time) domain.TravelEntities {
	return p.extract(text, now, domain.TravelEntities{})
}

func (p *Pattern) extract(text string, now time.Time, known domain.TravelEntities) domain.TravelEntities {
	toks := p.tokenize(text)
	today := civil.DateOf(now.In(p.loc))

	var out domain.TravelEntities
	if d, ok := p.findDate(toks, today); ok {
		out.DepartureDate = &d
	}
	out.TransportPriority = p.findTransport(toks)
	inferred := p.findPlaces(toks, &out)
	applyInferred(known, inferred, &out)
	return out
}

func (p *Pattern) tokenize(text string) []token {
	text = norm.NFC.String(text)
	lower := cases.Lower(language.Und)
	words := tokenRE.FindAllString(text, -1)
	toks := make([]token, 0, len(words))
	for _, w := range words {
		toks = append(toks, token{text: w, lower: strings.ReplaceAll(lower.String(w), "ё", "е")})
	}
	return toks
}

// findDate returns the first date mentioned in toks.
func (p *Pattern) findDate(toks []token, today civil.Date) (civil.Date, bool) {
	for i := range toks {
		if d, ok := p.dateAt(toks, i, today); ok {
			return d, true
		}
	}
	return civil.Date{}, false
}

func (p *Pattern) dateAt(toks []token, i int, today civil.Date) (civil.Date, bool) {
	tok := toks[i]
	if tok.isNumericDate() {
		return parseNumericDate(tok.text, today)
	}

	// "15 июня", "15th of June"
	if day, ok := parseDayNumber(tok.lower); ok {
		j := i + 1
		if j < len(toks) && toks[j].lower == "of" {
			j++
		}
		if j < len(toks) {
			if month, ok := p.vocab.months[toks[j].lower]; ok {
				return dayMonth(today, month, day, lookahead(toks, j+1))
			}
		}
		return civil.Date{}, false
	}

	// "June 15"
	if month, ok := p.vocab.months[tok.lower]; ok && i+1 < len(toks) {
		if day, ok := parseDayNumber(toks[i+1].lower); ok {
			return dayMonth(today, month, day, lookahead(toks, i+2))
		}
	}

	if off, n := matchPhrase(toks, i, p.vocab.relative); n > 0 {
		return today.AddDays(off), true
	}
	if wd, ok := p.vocab.weekdays[tok.lower]; ok {
		return nextWeekday(today, wd), true
	}
	return civil.Date{}, false
}

func lookahead(toks []token, i int) string {
	if i < len(toks) {
		return toks[i].text
	}
	return ""
}

// matchPhrase returns the value of the longest phrase starting at toks[i]
// and the number of tokens it spans, or zero when none match.
func matchPhrase[T any](toks []token, i int, phrases []phraseEntry[T]) (T, int) {
	for _, ph := range phrases {
		if wordsAt(toks, i, ph.words) {
			return ph.value, len(ph.words)
		}
	}
	var zero T
	return zero, 0
}

func wordsAt(toks []token, i int, words []string) bool {
	if i+len(words) > len(toks) {
		return false
	}
	for k, w := range words {
		if toks[i+k].lower != w {
			return false
		}
	}
	return true
}

// findTransport returns transport types in first-mention order.
func (p *Pattern) findTransport(toks []token) []domain.TransportType {
	var out []domain.TransportType
	for i := 0; i < len(toks); i++ {
		if t, n := matchPhrase(toks, i, p.vocab.transportPhrase); n > 0 {
			out = append(out, t)
			i += n - 1
			continue
		}
		if t, ok := p.vocab.transportOf(toks[i].lower); ok {
			out = append(out, t)
		}
	}
	return lo.Uniq(out)
}
