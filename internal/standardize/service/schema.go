package service

import (
	"fmt"
	"strings"

	"dvmap-service/internal/standardize/model"
)

// Зарезервированные слова, которые не могут быть алиасами.
var reservedAliases = map[string]struct{}{
	"null": {}, "none": {}, "nan": {}, "undefined": {}, "n/a": {},
}

// Schema: скомпилированная, неизменяемая на время прогона схема.
// Безопасна для конкурентного чтения.
type Schema struct {
	version  string
	dvs      []model.CanonicalDV
	byID     map[string]int
	clusters []model.Cluster
	idx      *Index
}

// Compile проверяет инварианты и строит индекс. Все найденные проблемы
// возвращаются одной *model.SchemaValidationError.
func Compile(doc model.Schema) (*Schema, error) {
	var problems []string
	addf := func(format string, args ...any) { problems = append(problems, fmt.Sprintf(format, args...)) }

	clusterIDs := make(map[string]struct{}, len(doc.Clusters))
	clusters := make([]model.Cluster, 0, len(doc.Clusters))
	for _, c := range doc.Clusters {
		id := strings.TrimSpace(c.ID)
		if id == "" {
			addf("cluster with empty id")
			continue
		}
		if _, dup := clusterIDs[id]; dup {
			addf("duplicate cluster id %q", id)
		}
		clusterIDs[id] = struct{}{}
		clusters = append(clusters, model.Cluster{ID: id, Label: c.Label})
	}

	s := &Schema{
		version:  doc.Version,
		byID:     make(map[string]int, len(doc.DVs)),
		clusters: clusters,
		idx:      newIndex(),
	}

	for i, dv := range doc.DVs {
		id := strings.TrimSpace(dv.ID)
		if id == "" {
			addf("dv at index %d missing required field 'id'", i)
			continue
		}
		if Normalize(id) == "" {
			addf("dv %q: id has no letters or digits", id)
			continue
		}
		if owner, ok := s.idx.add(id, id, true); !ok {
			addf("duplicate dv id %q (collides with %q after normalization)", id, owner)
			continue
		}
		if _, dup := s.byID[id]; dup {
			addf("duplicate dv id %q", id)
			continue
		}

		out := model.CanonicalDV{
			ID:      id,
			Label:   dv.Label,
			Cluster: strings.TrimSpace(dv.Cluster),
			Notes:   dv.Notes,
		}

		seen := make(map[string]struct{}, len(dv.Aliases))
		for _, a := range dv.Aliases {
			switch {
			case strings.TrimSpace(a) == "":
				addf("dv %q: empty alias", id)
				continue
			case isReserved(a):
				addf("dv %q: alias %q is a reserved keyword", id, a)
				continue
			case Normalize(a) == "":
				addf("dv %q: alias %q has no letters or digits", id, a)
				continue
			}
			if owner, ok := s.idx.add(a, id, false); !ok {
				addf("dv %q: alias %q collides with %q after normalization", id, a, owner)
				continue
			}
			if _, ok := seen[a]; ok {
				continue
			}
			seen[a] = struct{}{}
			out.Aliases = append(out.Aliases, a)
		}

		if dv.Measurement != nil {
			if mp := dv.Measurement.Problems(); len(mp) > 0 {
				for _, p := range mp {
					addf("dv %q measurement: %s", id, p)
				}
			} else {
				m := dv.Measurement.Canonical()
				out.Measurement = &m
			}
		}

		if len(clusterIDs) > 0 && out.Cluster != "" {
			if _, ok := clusterIDs[out.Cluster]; !ok {
				addf("dv %q references unknown cluster %q", id, out.Cluster)
			}
		}

		s.byID[id] = len(s.dvs)
		s.dvs = append(s.dvs, out)
	}

	if len(problems) > 0 {
		return nil, &model.SchemaValidationError{Problems: problems}
	}
	return s, nil
}

func isReserved(alias string) bool {
	_, ok := reservedAliases[strings.ToLower(strings.TrimSpace(alias))]
	return ok
}

func (s *Schema) Version() string { return s.version }

// Len: число канонических DV.
func (s *Schema) Len() int { return len(s.dvs) }

// KeyCount: число нормализованных ключей (id + алиасы) в индексе.
func (s *Schema) KeyCount() int { return s.idx.size() }

func (s *Schema) DV(id string) (model.CanonicalDV, bool) {
	i, ok := s.byID[id]
	if !ok {
		return model.CanonicalDV{}, false
	}
	return s.dvs[i], true
}

// DVs возвращает копию списка DV в порядке схемы.
func (s *Schema) DVs() []model.CanonicalDV {
	return append([]model.CanonicalDV(nil), s.dvs...)
}

func (s *Schema) Clusters() []model.Cluster {
	return append([]model.Cluster(nil), s.clusters...)
}

// WithMeasurement: сколько DV несут MeasurementSpec.
func (s *Schema) WithMeasurement() int {
	n := 0
	for _, dv := range s.dvs {
		if dv.Measurement != nil {
			n++
		}
	}
	return n
}
