package service

import (
	"dvmap-service/internal/standardize/model"
)

// Arbitrate вызывается, когда fuzzy-уровень не выделил единственного
// победителя. Ничего не выбирает: колонка помечается неоднозначной
// (tier fuzzy, resolved_id = null), в candidates, все кандидаты в пределах
// margin от лучшего скора.
func Arbitrate(candidates []model.Candidate, margin float64) model.ResolutionResult {
	res := model.ResolutionResult{
		MatchTier:  model.TierFuzzy,
		Ambiguous:  true,
		Candidates: []model.Candidate{},
	}
	if len(candidates) == 0 {
		res.MatchTier = model.TierUnresolved
		res.Ambiguous = false
		return res
	}

	sorted := append([]model.Candidate(nil), candidates...)
	sortCandidates(sorted)

	top := sorted[0].Score
	res.Similarity = top
	for _, c := range sorted {
		if top-c.Score > margin+scoreEps {
			break
		}
		res.Candidates = append(res.Candidates, c)
	}
	return res
}
