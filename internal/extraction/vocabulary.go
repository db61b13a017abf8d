package extraction

import (
	"slices"
	"strings"
	"time"

	"github.com/samber/lo"

	"travel-agent/internal/domain"
)

// Inflection tells the place normalizer which grammatical case a marker
// governs, so "из Москвы" and "в Москву" both yield "Москва".
type Inflection int

const (
	InflectionNone Inflection = iota
	InflectionGenitive
	InflectionAccusative
)

// Marker is a phrase that introduces a place name.
type Marker struct {
	Phrase string
	Case   Inflection
}

// Vocabulary is the word list the pattern extractor matches against.
// Phrases are lower case; "ё" is folded to "е" before matching. A transport
// keyword ending in "*" matches any word with that prefix.
type Vocabulary struct {
	From []Marker
	To   []Marker
	Via  []Marker

	Transport map[domain.TransportType][]string
	Months    map[string]time.Month
	Weekdays  map[string]time.Weekday
	// Relative maps phrases like "tomorrow" to a day offset from today.
	Relative map[string]int

	// Stopwords are never taken as place names even when capitalized.
	Stopwords []string
	// Indeclinable place names are kept verbatim after any marker.
	Indeclinable []string
}

// DefaultVocabulary returns the built-in Russian and English word lists.
func DefaultVocabulary() Vocabulary {
	return Vocabulary{
		From: []Marker{
			{"из", InflectionGenitive},
			{"изо", InflectionGenitive},
			{"от", InflectionGenitive},
			{"откуда", InflectionNone},
			{"from", InflectionNone},
			{"leaving", InflectionNone},
		},
		To: []Marker{
			{"в", InflectionAccusative},
			{"во", InflectionAccusative},
			{"до", InflectionGenitive},
			{"куда", InflectionNone},
			{"to", InflectionNone},
			{"into", InflectionNone},
			{"towards", InflectionNone},
		},
		Via: []Marker{
			{"через", InflectionAccusative},
			{"с остановкой в", InflectionNone},
			{"проезжая", InflectionAccusative},
			{"заезжая в", InflectionAccusative},
			{"с заездом в", InflectionAccusative},
			{"via", InflectionNone},
			{"through", InflectionNone},
			{"stopping in", InflectionNone},
			{"stopping at", InflectionNone},
		},
		Transport: map[domain.TransportType][]string{
			domain.TransportTrain: {"поезд", "поезда", "поездом", "поезде", "поезду", "поездов", "поездам", "поездами", "поездах", "жд", "ржд", "электричк*", "вагон*", "сапсан*", "train*", "rail*"},
			domain.TransportPlane: {"самолет*", "авиа*", "перелет*", "аэропорт*", "лететь", "полететь", "полечу", "plane*", "airplane*", "flight*", "fly", "flying"},
			domain.TransportBus:   {"автобус*", "автовокзал*", "bus", "buses", "coach"},
			domain.TransportShip:  {"теплоход*", "паром*", "корабл*", "круиз*", "ship*", "ferry", "boat*", "cruise"},
			domain.TransportWalk:  {"пешком", "пеший", "пешая", "walk*", "hike", "on foot"},
		},
		Months: map[string]time.Month{
			"января": time.January, "январь": time.January, "january": time.January, "jan": time.January,
			"февраля": time.February, "февраль": time.February, "february": time.February, "feb": time.February,
			"марта": time.March, "март": time.March, "march": time.March, "mar": time.March,
			"апреля": time.April, "апрель": time.April, "april": time.April, "apr": time.April,
			"мая": time.May, "май": time.May, "may": time.May,
			"июня": time.June, "июнь": time.June, "june": time.June, "jun": time.June,
			"июля": time.July, "июль": time.July, "july": time.July, "jul": time.July,
			"августа": time.August, "август": time.August, "august": time.August, "aug": time.August,
			"сентября": time.September, "сентябрь": time.September, "september": time.September, "sep": time.September, "sept": time.September,
			"октября": time.October, "октябрь": time.October, "october": time.October, "oct": time.October,
			"ноября": time.November, "ноябрь": time.November, "november": time.November, "nov": time.November,
			"декабря": time.December, "декабрь": time.December, "december": time.December, "dec": time.December,
		},
		Weekdays: map[string]time.Weekday{
			"понедельник": time.Monday, "monday": time.Monday,
			"вторник": time.Tuesday, "tuesday": time.Tuesday,
			"среда": time.Wednesday, "среду": time.Wednesday, "wednesday": time.Wednesday,
			"четверг": time.Thursday, "thursday": time.Thursday,
			"пятница": time.Friday, "пятницу": time.Friday, "friday": time.Friday,
			"суббота": time.Saturday, "субботу": time.Saturday, "saturday": time.Saturday,
			"воскресенье": time.Sunday, "sunday": time.Sunday,
		},
		Relative: map[string]int{
			"сегодня":                0,
			"today":                  0,
			"завтра":                 1,
			"tomorrow":               1,
			"послезавтра":            2,
			"day after tomorrow":     2,
			"the day after tomorrow": 2,
		},
		Stopwords: []string{
			"январе", "феврале", "марте", "апреле", "мае", "июне", "июле", "августе",
			"сентябре", "октябре", "ноябре", "декабре",
			"i", "я", "мы", "we", "хочу", "нужно", "надо", "please", "пожалуйста",
		},
		Indeclinable: []string{"сочи", "баку", "осло", "токио", "дели", "перу", "чикаго", "торонто", "монако", "сан-франциско", "ростов-на-дону"},
	}
}

// fold lower-cases s and maps "ё" to "е".
func fold(s string) string {
	return strings.ReplaceAll(strings.ToLower(s), "ё", "е")
}

// vocabIndex is a Vocabulary compiled for lookups.
type vocabIndex struct {
	from, to, via []compiledMarker

	transportExact  map[string]domain.TransportType
	transportStems  []stemEntry
	transportPhrase []phraseEntry[domain.TransportType]

	months   map[string]time.Month
	weekdays map[string]time.Weekday
	relative []phraseEntry[int]

	stop         map[string]struct{}
	indeclinable map[string]struct{}
}

type compiledMarker struct {
	words []string
	form  Inflection
}

type stemEntry struct {
	prefix string
	t      domain.TransportType
}

type phraseEntry[T any] struct {
	words []string
	value T
}

func compileVocabulary(v Vocabulary) *vocabIndex {
	idx := &vocabIndex{
		transportExact: make(map[string]domain.TransportType),
		months:         make(map[string]time.Month, len(v.Months)),
		weekdays:       make(map[string]time.Weekday, len(v.Weekdays)),
		stop:           make(map[string]struct{}),
		indeclinable:   make(map[string]struct{}),
	}
	idx.from = compileMarkers(v.From)
	idx.to = compileMarkers(v.To)
	idx.via = compileMarkers(v.Via)

	// Iterate in canonical order so overlapping stems resolve the same way
	// on every run.
	for _, t := range domain.TransportTypes {
		for _, kw := range v.Transport[t] {
			kw = fold(strings.TrimSpace(kw))
			switch {
			case kw == "":
			case strings.Contains(kw, " "):
				idx.transportPhrase = append(idx.transportPhrase, phraseEntry[domain.TransportType]{words: strings.Fields(kw), value: t})
			case strings.HasSuffix(kw, "*"):
				idx.transportStems = append(idx.transportStems, stemEntry{prefix: strings.TrimSuffix(kw, "*"), t: t})
			default:
				if _, dup := idx.transportExact[kw]; !dup {
					idx.transportExact[kw] = t
				}
			}
		}
	}

	for k, m := range v.Months {
		idx.months[fold(k)] = m
	}
	for k, d := range v.Weekdays {
		idx.weekdays[fold(k)] = d
	}
	for k, off := range v.Relative {
		idx.relative = append(idx.relative, phraseEntry[int]{words: strings.Fields(fold(k)), value: off})
	}
	// Longest phrases first so "day after tomorrow" beats "tomorrow".
	sortPhrases(idx.relative)
	sortPhrases(idx.transportPhrase)

	for _, w := range v.Stopwords {
		idx.stop[fold(w)] = struct{}{}
	}
	for _, w := range v.Indeclinable {
		idx.indeclinable[fold(w)] = struct{}{}
	}
	return idx
}

func compileMarkers(ms []Marker) []compiledMarker {
	out := lo.FilterMap(ms, func(m Marker, _ int) (compiledMarker, bool) {
		words := strings.Fields(fold(m.Phrase))
		return compiledMarker{words: words, form: m.Case}, len(words) > 0
	})
	sortByLen(out, func(m compiledMarker) int { return len(m.words) })
	return out
}

func sortPhrases[T any](ps []phraseEntry[T]) {
	sortByLen(ps, func(p phraseEntry[T]) int { return len(p.words) })
}

// sortByLen orders xs by descending key, keeping ties stable.
func sortByLen[T any](xs []T, key func(T) int) {
	slices.SortStableFunc(xs, func(a, b T) int { return key(b) - key(a) })
}

func (v *vocabIndex) transportOf(word string) (domain.TransportType, bool) {
	if t, ok := v.transportExact[word]; ok {
		return t, true
	}
	for _, s := range v.transportStems {
		if strings.HasPrefix(word, s.prefix) {
			return s.t, true
		}
	}
	return "", false
}

// isKeyword reports whether word belongs to any closed vocabulary list and
// therefore cannot start or continue a place name.
func (v *vocabIndex) isKeyword(word string) bool {
	if _, ok := v.stop[word]; ok {
		return true
	}
	if _, ok := v.months[word]; ok {
		return true
	}
	if _, ok := v.weekdays[word]; ok {
		return true
	}
	if _, ok := v.transportOf(word); ok {
		return true
	}
	for _, r := range v.relative {
		if len(r.words) == 1 && r.words[0] == word {
			return true
		}
	}
	for _, group := range [][]compiledMarker{v.from, v.to, v.via} {
		for _, m := range group {
			if len(m.words) == 1 && m.words[0] == word {
				return true
			}
		}
	}
	return false
}
