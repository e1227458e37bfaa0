package service

import (
	"sort"

	"dvmap-service/internal/standardize/model"
)

const (
	schemaConfidence   = 0.95
	fallbackConfidence = 0.2
	ruleSchemaDefined  = "schema_defined"
)

// Infer выводит метаданные измерения для колонки.
//
// Если resolvedID указывает на DV с MeasurementSpec, спецификация копируется
// как есть (inferred=false, confidence 0.95). Иначе по таблице правил
// проверяются исходное имя, resolvedID и label DV; срабатывают все подходящие
// правила. Категория берётся у правила с наибольшим весом, confidence, его вес
// плюс boost за каждое другое правило той же категории (не выше 1.0).
func Infer(resolvedID, raw string, sc *Schema, rules *RuleSet, reviewThreshold float64) model.InferenceResult {
	var dv model.CanonicalDV
	var haveDV bool
	if resolvedID != "" && sc != nil {
		dv, haveDV = sc.DV(resolvedID)
	}

	if haveDV && dv.Measurement != nil {
		m := dv.Measurement
		res := model.InferenceResult{
			Category:     m.Category,
			PrimaryUnit:  m.PrimaryUnit,
			AllowedUnits: append([]string{}, m.AllowedUnits...),
			ScaleType:    m.ScaleType,
			Direction:    m.Direction,
			Confidence:   schemaConfidence,
			Inferred:     false,
			MatchedRules: []string{ruleSchemaDefined},
		}
		res.NeedsReview = res.Confidence < reviewThreshold
		return res
	}

	subjects := []subject{newSubject(raw)}
	if resolvedID != "" {
		subjects = append(subjects, newSubject(resolvedID))
	}
	if haveDV && dv.Label != "" {
		subjects = append(subjects, newSubject(dv.Label))
	}

	fired := rules.evaluate(subjects)
	if len(fired) == 0 {
		return fallback()
	}
	return combine(fired, rules.boost, reviewThreshold)
}

// fallback: ни одно правило не сработало, категория Unknown, всегда на ревью.
func fallback() model.InferenceResult {
	return model.InferenceResult{
		Category:     model.CategoryUnknown,
		PrimaryUnit:  model.UnitVaries,
		AllowedUnits: []string{},
		Direction:    model.Neutral,
		Confidence:   fallbackConfidence,
		Inferred:     true,
		MatchedRules: []string{},
		NeedsReview:  true,
	}
}

// evaluate возвращает сработавшие правила по убыванию веса (затем по id).
func (rs *RuleSet) evaluate(subjects []subject) []*compiledRule {
	if rs == nil {
		return nil
	}
	var fired []*compiledRule
	for i := range rs.rules {
		r := &rs.rules[i]
		for _, s := range subjects {
			if r.matches(s) {
				fired = append(fired, r)
				break
			}
		}
	}
	sort.SliceStable(fired, func(i, j int) bool {
		if fired[i].Weight != fired[j].Weight {
			return fired[i].Weight > fired[j].Weight
		}
		return fired[i].ID < fired[j].ID
	})
	return fired
}

func combine(fired []*compiledRule, boost, reviewThreshold float64) model.InferenceResult {
	top := fired[0]
	res := model.InferenceResult{
		Category:     top.Category,
		PrimaryUnit:  model.UnitVaries,
		AllowedUnits: []string{},
		ScaleType:    model.DefaultScale(top.Category),
		Direction:    model.Neutral,
		Inferred:     true,
		MatchedRules: make([]string, 0, len(fired)),
	}

	var unitSet, scaleSet, dirSet bool
	agree := 0
	for i, r := range fired {
		res.MatchedRules = append(res.MatchedRules, r.ID)

		// единица: независимое свидетельство, берём у самого весомого правила с единицей
		if !unitSet && r.Unit != "" {
			res.PrimaryUnit = r.Unit
			res.AllowedUnits = []string{r.Unit}
			unitSet = true
		}
		if r.Category != top.Category {
			continue
		}
		if i > 0 {
			agree++
		}
		if !scaleSet && r.ScaleType != "" {
			res.ScaleType = r.ScaleType
			scaleSet = true
		}
		if !dirSet && r.Direction != "" {
			res.Direction = r.Direction
			dirSet = true
		}
	}

	res.Confidence = roundScore(min(1.0, top.Weight+boost*float64(agree)))
	res.NeedsReview = res.Confidence < reviewThreshold
	return res
}
