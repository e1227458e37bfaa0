package service

import (
	"dvmap-service/internal/standardize/model"
)

// допуск на погрешность float при сравнении с порогом и отрывом
const scoreEps = 1e-9

// сколько ближайших промахов сохранять для нераспознанной колонки
const maxNearMisses = 3

// Resolve сопоставляет одно имя колонки со схемой.
// Уровни строго по порядку: точный id → точный алиас → fuzzy.
func Resolve(raw string, sc *Schema, opt model.MatchOptions) model.ResolutionResult {
	nn := Normalize(raw)
	res := model.ResolutionResult{
		InputName:      raw,
		NormalizedName: nn,
		MatchTier:      model.TierUnresolved,
		Candidates:     []model.Candidate{},
	}
	if nn == "" {
		return res
	}

	// (1)+(2) точное совпадение нормализованного ключа
	if e, ok := sc.idx.lookup(nn); ok {
		id := e.id
		res.ResolvedID = &id
		res.Similarity = 1
		if e.canonical {
			res.MatchTier = model.TierExactCanonical
		} else {
			res.MatchTier = model.TierExactAlias
		}
		return res
	}

	// (3) fuzzy
	if !opt.EnableFuzzy {
		return res
	}
	scored := sc.idx.score(nn, tokenSortKey(raw))
	if len(scored) == 0 {
		return res
	}

	top := scored[0]
	if top.Score+scoreEps < opt.Threshold {
		// (5) ниже порога: нераспознано, оставляем ближайшие промахи для аудита
		res.Similarity = top.Score
		res.Candidates = append(res.Candidates, scored[:min(len(scored), maxNearMisses)]...)
		return res
	}

	// (4) лидер должен строго опережать второго кандидата и оторваться
	// от него на margin; второй берётся без учёта порога.
	if len(scored) == 1 || separated(top.Score, scored[1].Score, opt.Margin) {
		id := top.ID
		res.ResolvedID = &id
		res.MatchTier = model.TierFuzzy
		res.Similarity = top.Score
		for _, c := range scored {
			if c.Score+scoreEps < opt.Threshold {
				break
			}
			res.Candidates = append(res.Candidates, c)
		}
		return res
	}

	amb := Arbitrate(scored, opt.Margin)
	amb.InputName = raw
	amb.NormalizedName = nn
	return amb
}

// separated: лидер строго выше второго и отрыв не меньше margin.
// Ничья при margin = 0 уходит арбитру.
func separated(top, second, margin float64) bool {
	gap := top - second
	return gap > scoreEps && gap+scoreEps >= margin
}
