package service

import (
	"regexp"
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Снятие диакритики: NFD → убрать комбинируемые знаки → NFC (ё→е, é→e).
var foldMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

func fold(s string) string {
	out, _, err := transform.String(foldMarks, s)
	if err != nil {
		return s
	}
	return out
}

func isWordRune(r rune) bool { return unicode.IsLetter(r) || unicode.IsDigit(r) }

// Normalize: канонический ключ имени колонки/алиаса.
// Нижний регистр, без диакритики, только буквы и цифры: разделители
// (пробел, -, _, граница camelCase) удаляются целиком, поэтому
// "avgSatisfaction", "avg_satisfaction" и "Avg Satisfaction" дают один ключ.
// Идемпотентна.
func Normalize(s string) string {
	if s == "" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range fold(s) {
		r = unicode.ToLower(r)
		if isWordRune(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Tokens режет исходное имя на слова: по разделителям, по границам camelCase
// ("taskTime" → task, time; "HTTPTimeout" → http, timeout) и на стыке букв и цифр.
// strings.Join(Tokens(s), "") == Normalize(s).
func Tokens(s string) []string {
	rs := []rune(fold(s))
	var (
		out []string
		cur []rune
	)
	flush := func() {
		if len(cur) == 0 {
			return
		}
		t := make([]rune, len(cur))
		for i, r := range cur {
			t[i] = unicode.ToLower(r)
		}
		out = append(out, string(t))
		cur = cur[:0]
	}
	for i, r := range rs {
		if !isWordRune(r) {
			flush()
			continue
		}
		if n := len(cur); n > 0 {
			prev := cur[n-1]
			switch {
			case unicode.IsLower(prev) && unicode.IsUpper(r):
				flush()
			case unicode.IsDigit(prev) != unicode.IsDigit(r):
				flush()
			case unicode.IsUpper(prev) && unicode.IsUpper(r) && i+1 < len(rs) && unicode.IsLower(rs[i+1]):
				flush()
			}
		}
		cur = append(cur, r)
	}
	flush()
	return out
}

// tokenSortKey: токены по алфавиту без разделителей
// (time_rate == rate_time).
func tokenSortKey(s string) string {
	t := Tokens(s)
	sort.Strings(t)
	return strings.Join(t, "")
}

var reNumbers = regexp.MustCompile(`\d+`)

// Мультимножество чисел в ключе для гарда fuzzy ("item3" ≠ "item4").
func extractNumbers(key string) []string {
	mm := reNumbers.FindAllString(key, -1)
	sort.Strings(mm)
	return mm
}

// числа учитываются, только если они есть с обеих сторон
func numbersCompatible(a, b []string) bool {
	if len(a) == 0 || len(b) == 0 {
		return true
	}
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
