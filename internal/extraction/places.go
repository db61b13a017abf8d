package extraction

import (
	"strings"
	"unicode"

	"github.com/samber/lo"

	"travel-agent/internal/domain"
)

type placeRole int

const (
	roleFrom placeRole = iota
	roleTo
	roleVia
)

// maxPlaceWords bounds a place name like "Нижний Новгород" or "New York City".
const maxPlaceWords = 3

// findPlaces fills origin, destination and waypoints from marker phrases.
// The first marked span of each kind wins. When no marker introduces a
// place, a message made only of capitalized names is read as a bare route
// and returned separately as inferred, since nothing in it states which end
// each name is.
func (p *Pattern) findPlaces(toks []token, out *domain.TravelEntities) (inferred domain.TravelEntities) {
	marked := false
	for i := 0; i < len(toks); {
		role, form, n := p.markerAt(toks, i)
		if n == 0 {
			i++
			continue
		}
		span := p.placeSpan(toks, i+n)
		if len(span) == 0 {
			i += n
			continue
		}
		marked = true
		name := p.placeName(span, form)
		switch role {
		case roleFrom:
			if out.Origin == "" && name != out.Destination {
				out.Origin = name
			}
		case roleTo:
			if out.Destination == "" && name != out.Origin {
				out.Destination = name
			}
		case roleVia:
			if !lo.Contains(out.Waypoints, name) {
				out.Waypoints = append(out.Waypoints, name)
			}
		}
		i += n + len(span)
	}
	if !marked {
		p.bareRoute(toks, &inferred)
	}
	return inferred
}

// applyInferred copies a bare-route reading into out for the route ends the
// conversation does not know yet. Known ends are only replaced by marked
// mentions.
func applyInferred(known, inferred domain.TravelEntities, out *domain.TravelEntities) {
	if inferred.Origin == "" {
		return
	}
	switch {
	case known.Origin == "" && known.Destination == "":
		out.Origin = inferred.Origin
		out.Destination = inferred.Destination
		out.Waypoints = append(out.Waypoints, inferred.Waypoints...)
	case known.Origin == "":
		if inferred.Origin != known.Destination {
			out.Origin = inferred.Origin
		}
	case known.Destination == "":
		if inferred.Destination != known.Origin {
			out.Destination = inferred.Destination
		}
	}
}

// markerAt returns the longest marker starting at toks[i] across all roles.
func (p *Pattern) markerAt(toks []token, i int) (placeRole, Inflection, int) {
	var (
		bestRole placeRole
		bestForm Inflection
		bestLen  int
	)
	groups := []struct {
		role    placeRole
		markers []compiledMarker
	}{
		{roleVia, p.vocab.via},
		{roleFrom, p.vocab.from},
		{roleTo, p.vocab.to},
	}
	for _, g := range groups {
		for _, m := range g.markers {
			if len(m.words) > bestLen && wordsAt(toks, i, m.words) {
				bestRole, bestForm, bestLen = g.role, m.form, len(m.words)
			}
		}
	}
	return bestRole, bestForm, bestLen
}

// placeSpan collects the capitalized non-keyword words starting at toks[i].
func (p *Pattern) placeSpan(toks []token, i int) []token {
	var span []token
	for j := i; j < len(toks) && len(span) < maxPlaceWords; j++ {
		t := toks[j]
		if t.isNumericDate() || !t.hasLetter() || !t.isCapitalized() || p.vocab.isKeyword(t.lower) {
			break
		}
		span = append(span, t)
	}
	return span
}

func (p *Pattern) placeName(span []token, form Inflection) string {
	words := lo.Map(span, func(t token, _ int) string { return t.text })
	last := len(words) - 1
	for i := 0; i < last; i++ {
		words[i] = p.adjective(words[i], form)
	}
	words[last] = p.nominative(words[last], form)
	return strings.Join(words, " ")
}

// bareRoute handles messages like "Москва Сочи 20.07": first name is the
// origin, last the destination, anything between a waypoint.
func (p *Pattern) bareRoute(toks []token, out *domain.TravelEntities) {
	var names []string
	for _, t := range toks {
		if t.isNumericDate() || !t.hasLetter() || p.vocab.isKeyword(t.lower) {
			continue
		}
		if _, ok := parseDayNumber(t.lower); ok {
			continue
		}
		if !t.isCapitalized() {
			return
		}
		if !lo.Contains(names, t.text) {
			names = append(names, t.text)
		}
	}
	if len(names) < 2 {
		return
	}
	out.Origin = names[0]
	out.Destination = names[len(names)-1]
	for _, w := range names[1 : len(names)-1] {
		out.Waypoints = append(out.Waypoints, w)
	}
}

// nominative undoes the common Russian case endings a marker implies, e.g.
// "Москвы" and "Москву" become "Москва", "Петербурга" becomes "Петербург".
func (p *Pattern) nominative(word string, form Inflection) string {
	if form == InflectionNone {
		return word
	}
	if _, ok := p.vocab.indeclinable[fold(word)]; ok {
		return word
	}
	runes := []rune(word)
	n := len(runes)
	if n < 3 || !isCyrillicWord(runes) {
		return word
	}
	last := unicode.ToLower(runes[n-1])
	prev := unicode.ToLower(runes[n-2])

	switch form {
	case InflectionGenitive:
		switch {
		case last == 'ы':
			runes[n-1] = withCaseOf('а', runes[n-1])
		case last == 'а' && isConsonant(prev):
			runes = runes[:n-1]
		case last == 'и' && strings.ContainsRune("нрлмт", prev):
			runes[n-1] = withCaseOf('ь', runes[n-1])
		case last == 'я' && prev == 'л':
			runes[n-1] = withCaseOf('ь', runes[n-1])
		}
	case InflectionAccusative:
		switch last {
		case 'у':
			runes[n-1] = withCaseOf('а', runes[n-1])
		case 'ю':
			runes[n-1] = withCaseOf('я', runes[n-1])
		}
	}
	return string(runes)
}

type endingRule struct {
	from, to string
}

var adjectiveEndings = map[Inflection][]endingRule{
	InflectionGenitive:   {{"его", "ий"}, {"ого", "ый"}, {"ой", "ая"}, {"ей", "яя"}},
	InflectionAccusative: {{"ую", "ая"}, {"юю", "яя"}},
}

// adjective undoes the case ending of a leading adjective in a multi-word
// name, e.g. "Нижнего Новгорода" becomes "Нижний Новгород". Words that do
// not end like an adjective are kept as written.
func (p *Pattern) adjective(word string, form Inflection) string {
	if _, ok := p.vocab.indeclinable[fold(word)]; ok {
		return word
	}
	runes := []rune(word)
	if len(runes) < 5 || !isCyrillicWord(runes) {
		return word
	}
	lower := []rune(strings.ToLower(word))
	for _, r := range adjectiveEndings[form] {
		if !strings.HasSuffix(string(lower), r.from) {
			continue
		}
		stem := runes[:len(runes)-len([]rune(r.from))]
		to := r.to
		// Velar and sibilant stems take -ий: "Великого" is "Великий".
		if r.from == "ого" && strings.ContainsRune("кгхжшчщ", unicode.ToLower(stem[len(stem)-1])) {
			to = "ий"
		}
		return string(stem) + to
	}
	return word
}

func isCyrillicWord(runes []rune) bool {
	for _, r := range runes {
		if unicode.IsLetter(r) && !unicode.Is(unicode.Cyrillic, r) {
			return false
		}
	}
	return true
}

func isConsonant(r rune) bool {
	return unicode.Is(unicode.Cyrillic, r) && !strings.ContainsRune("аеёиоуыэюяьъй", r)
}

func withCaseOf(r, like rune) rune {
	if unicode.IsUpper(like) {
		return unicode.ToUpper(r)
	}
	return r
}
