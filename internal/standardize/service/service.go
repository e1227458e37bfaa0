package service

import (
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"dvmap-service/internal/standardize/model"
)

// Convert: основной конвейер, для каждой колонки Resolve → (Arbitrate) →
// (Infer), в порядке входа. Исход отдельной колонки не прерывает прогон.
// При opt.Workers > 1 колонки обрабатываются параллельно; результат пишется
// по индексу, поэтому порядок отчёта совпадает с порядком колонок.
func Convert(columns []string, sc *Schema, rules *RuleSet, opt model.Options) model.ConversionReport {
	cols := make([]model.ColumnReport, len(columns))

	if opt.Workers > 1 && len(columns) > 1 {
		var g errgroup.Group
		g.SetLimit(opt.Workers)
		for i, name := range columns {
			g.Go(func() error {
				cols[i] = processColumn(i, name, sc, rules, opt)
				return nil
			})
		}
		_ = g.Wait() // processColumn не возвращает ошибок
	} else {
		for i, name := range columns {
			cols[i] = processColumn(i, name, sc, rules, opt)
		}
	}

	mapping, summary := summarize(cols)
	return model.ConversionReport{
		SchemaVersion: sc.Version(),
		Columns:       cols,
		Mapping:       mapping,
		Summary:       summary,
	}
}

func processColumn(i int, name string, sc *Schema, rules *RuleSet, opt model.Options) model.ColumnReport {
	cr := model.ColumnReport{
		Index:      i,
		Resolution: Resolve(name, sc, opt.Match),
	}
	if opt.InferMetadata {
		inf := Infer(cr.Resolution.ID(), name, sc, rules, opt.ReviewThreshold)
		cr.Inference = &inf
	}
	return cr
}

func summarize(cols []model.ColumnReport) (model.RenameMapping, model.Summary) {
	sum := model.Summary{
		TotalColumns: len(cols),
		ByTier:       make(map[model.MatchTier]int),
	}
	mapping := make(model.RenameMapping, 0, len(cols))
	claimed := make(map[string]int)
	renamed := 0

	for _, c := range cols {
		r := c.Resolution
		sum.ByTier[r.MatchTier]++
		switch {
		case r.Resolved():
			sum.Resolved++
			mapping = append(mapping, model.RenamePair{From: r.InputName, To: r.ID()})
			claimed[r.ID()]++
			if r.InputName != r.ID() {
				renamed++
			}
		case r.Ambiguous:
			sum.Ambiguous++
			sum.Unresolved++
		default:
			sum.Unresolved++
		}

		if c.Inference != nil {
			if sum.Categories == nil {
				sum.Categories = make(map[model.Category]int)
			}
			sum.Categories[c.Inference.Category]++
			if c.Inference.NeedsReview {
				sum.NeedsReview++
			}
		}
	}

	for id, n := range claimed {
		if n > 1 {
			sum.Conflicts = append(sum.Conflicts, id)
		}
	}
	sort.Strings(sum.Conflicts)

	if len(cols) > 0 {
		sum.ChangeRate = roundScore(float64(renamed) / float64(len(cols)))
	}
	return mapping, sum
}

// BuildSidecar собирает документ метаданных по отчёту. Колонки без
// InferenceResult (вывод выключен) в документ не попадают.
func BuildSidecar(rep model.ConversionReport, now time.Time) model.Sidecar {
	sc := model.Sidecar{
		SchemaVersion:      rep.SchemaVersion,
		InferenceTimestamp: now,
		Columns:            make([]model.SidecarColumn, 0, len(rep.Columns)),
		Summary: model.SidecarSummary{
			TotalColumns: rep.Summary.TotalColumns,
			Resolved:     rep.Summary.Resolved,
			Unresolved:   rep.Summary.Unresolved,
			Ambiguous:    rep.Summary.Ambiguous,
			NeedsReview:  rep.Summary.NeedsReview,
			Categories:   make(map[model.Category]int),
		},
	}
	for _, c := range rep.Columns {
		if c.Inference == nil {
			continue
		}
		sc.Columns = append(sc.Columns, model.SidecarColumn{
			Column:          c.OutputName(),
			OriginalName:    c.Resolution.InputName,
			MatchTier:       c.Resolution.MatchTier,
			InferenceResult: *c.Inference,
		})
		sc.Summary.Categories[c.Inference.Category]++
	}
	return sc
}

// RenameHeaders применяет отображение к заголовкам; нераспознанные остаются как есть.
func RenameHeaders(headers []string, rep model.ConversionReport) []string {
	out := make([]string, len(headers))
	for i, h := range headers {
		out[i] = h
		if i < len(rep.Columns) && rep.Columns[i].Resolution.InputName == h {
			out[i] = rep.Columns[i].OutputName()
		}
	}
	return out
}
