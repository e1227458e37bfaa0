package service

import (
	"fmt"
	"regexp"
	"slices"
	"strings"

	"dvmap-service/internal/standardize/model"
)

type compiledRule struct {
	model.Rule
	re   *regexp.Regexp // pattern / unit
	keys []string       // instrument: нормализованные имена; keyword/suffix: нормализованный шаблон
}

// RuleSet: проверенная, неизменяемая таблица правил.
type RuleSet struct {
	version string
	boost   float64
	rules   []compiledRule
}

// CompileRules проверяет ссылочную целостность и компилирует шаблоны.
func CompileRules(t model.RuleTable) (*RuleSet, error) {
	var problems []string
	addf := func(format string, args ...any) { problems = append(problems, fmt.Sprintf(format, args...)) }

	if t.AgreementBoost < 0 || t.AgreementBoost > 1 {
		addf("agreement_boost %.3f outside [0,1]", t.AgreementBoost)
	}

	rs := &RuleSet{version: t.Version, boost: t.AgreementBoost}
	ids := make(map[string]struct{}, len(t.Rules))

	for i, r := range t.Rules {
		id := strings.TrimSpace(r.ID)
		if id == "" {
			addf("rule at index %d missing id", i)
			continue
		}
		if _, dup := ids[id]; dup {
			addf("duplicate rule id %q", id)
			continue
		}
		ids[id] = struct{}{}

		cr := compiledRule{Rule: r}
		cr.ID = id

		cat, ok := model.ParseCategory(string(r.Category))
		if !ok {
			addf("rule %q references undefined category %q", id, r.Category)
		}
		cr.Category = cat
		if r.ScaleType != "" {
			st, ok := model.ParseScaleType(string(r.ScaleType))
			if !ok {
				addf("rule %q: unknown scale_type %q", id, r.ScaleType)
			}
			cr.ScaleType = st
		}
		if r.Direction != "" {
			d, ok := model.ParseDirection(string(r.Direction))
			if !ok {
				addf("rule %q: unknown direction %q", id, r.Direction)
			}
			cr.Direction = d
		}
		if r.Weight <= 0 || r.Weight > 1 {
			addf("rule %q: weight %.3f outside (0,1]", id, r.Weight)
		}
		if !slices.Contains(model.RuleKinds, r.Kind) {
			addf("rule %q: unknown kind %q (want one of %v)", id, r.Kind, model.RuleKinds)
			continue
		}
		if strings.TrimSpace(r.Pattern) == "" {
			addf("rule %q: empty pattern", id)
			continue
		}

		switch r.Kind {
		case model.KindInstrument:
			for _, name := range append([]string{r.Pattern}, r.Aliases...) {
				if k := Normalize(name); k != "" {
					cr.keys = append(cr.keys, k)
				}
			}
			if len(cr.keys) == 0 {
				addf("rule %q: instrument name has no letters or digits", id)
			}
		case model.KindKeyword, model.KindSuffix:
			k := Normalize(r.Pattern)
			if k == "" {
				addf("rule %q: pattern has no letters or digits", id)
			}
			cr.keys = []string{k}
		case model.KindPattern, model.KindUnit:
			re, err := regexp.Compile("(?i)" + r.Pattern)
			if err != nil {
				addf("rule %q: bad regexp: %v", id, err)
			}
			cr.re = re
		}

		rs.rules = append(rs.rules, cr)
	}

	if len(problems) > 0 {
		return nil, &model.RuleTableValidationError{Problems: problems}
	}
	return rs, nil
}

func (rs *RuleSet) Version() string { return rs.version }

func (rs *RuleSet) Len() int { return len(rs.rules) }

// subject: одна строка, против которой проверяются правила.
type subject struct {
	lower  string // исходное имя в нижнем регистре
	norm   string
	tokens []string
	marker string // содержимое скобок в конце: "Time (s)" → "s"
}

var reUnitMarker = regexp.MustCompile(`[\(\[]\s*([^\)\]]+?)\s*[\)\]]\s*$`)

func newSubject(s string) subject {
	sub := subject{lower: strings.ToLower(strings.TrimSpace(s))}
	// маркер единицы не участвует в токенах: "Time (s)" → токены [time], маркер "s"
	name := s
	if loc := reUnitMarker.FindStringSubmatchIndex(s); loc != nil {
		sub.marker = strings.ToLower(s[loc[2]:loc[3]])
		name = s[:loc[0]]
	}
	sub.norm = Normalize(name)
	sub.tokens = Tokens(name)
	return sub
}

func (cr *compiledRule) matches(s subject) bool {
	switch cr.Kind {
	case model.KindInstrument:
		for _, k := range cr.keys {
			if tokenRun(s.tokens, k) {
				return true
			}
		}
	case model.KindKeyword:
		return s.norm != "" && strings.Contains(s.norm, cr.keys[0])
	case model.KindSuffix:
		return len(s.tokens) > 0 && s.tokens[len(s.tokens)-1] == cr.keys[0]
	case model.KindPattern:
		return cr.re.MatchString(s.lower)
	case model.KindUnit:
		if s.marker != "" && cr.re.MatchString(s.marker) {
			return true
		}
		// "rt_ms": последний токен как единица, если перед ним есть имя
		return len(s.tokens) > 1 && cr.re.MatchString(s.tokens[len(s.tokens)-1])
	}
	return false
}

// tokenRun: key равен склейке подряд идущих токенов
// ("nasa_tlx_score" содержит "nasatlx", а "suspend" не содержит "sus").
func tokenRun(tokens []string, key string) bool {
	for i := range tokens {
		acc := ""
		for j := i; j < len(tokens); j++ {
			acc += tokens[j]
			if acc == key {
				return true
			}
			if len(acc) >= len(key) {
				break
			}
		}
	}
	return false
}
