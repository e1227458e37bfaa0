package service

import (
	"math"
	"slices"
	"sort"

	"dvmap-service/internal/standardize/model"
)

type indexEntry struct {
	id        string // владелец ключа (canonical id в написании схемы)
	canonical bool   // ключ: сам id, а не алиас
	sorted    string // ключ с отсортированными токенами
	numbers   []string
}

// Index: индекс нормализованных id и алиасов схемы.
type Index struct {
	byKey map[string]indexEntry
	keys  []string                       // все ключи по алфавиту
	inv   map[string]map[string]struct{} // trigram -> set(normalized key)
}

func newIndex() *Index {
	return &Index{
		byKey: make(map[string]indexEntry),
		inv:   make(map[string]map[string]struct{}),
	}
}

// add регистрирует ключ. Если ключ уже принадлежит другой DV, возвращает
// её id и false (коллизия после нормализации).
func (idx *Index) add(raw, id string, canonical bool) (string, bool) {
	key := Normalize(raw)
	if ex, ok := idx.byKey[key]; ok {
		if ex.id != id {
			return ex.id, false
		}
		if canonical && !ex.canonical {
			ex.canonical = true
			idx.byKey[key] = ex
		}
		return id, true
	}
	idx.byKey[key] = indexEntry{
		id:        id,
		canonical: canonical,
		sorted:    tokenSortKey(raw),
		numbers:   extractNumbers(key),
	}
	i := sort.SearchStrings(idx.keys, key)
	idx.keys = slices.Insert(idx.keys, i, key)
	for g := range trigramSet(key) {
		bucket, ok := idx.inv[g]
		if !ok {
			bucket = make(map[string]struct{})
			idx.inv[g] = bucket
		}
		bucket[key] = struct{}{}
	}
	return id, true
}

func (idx *Index) lookup(norm string) (indexEntry, bool) {
	e, ok := idx.byKey[norm]
	return e, ok
}

func (idx *Index) size() int { return len(idx.byKey) }

func trigramSet(s string) map[string]struct{} {
	m := make(map[string]struct{})
	if s == "" {
		return m
	}
	p := " " + s + " "
	r := []rune(p)
	if len(r) < 3 {
		m[p] = struct{}{}
		return m
	}
	for i := 0; i <= len(r)-3; i++ {
		m[string(r[i:i+3])] = struct{}{}
	}
	return m
}

// candidateKeys: все ключи индекса, сначала те, что делят с входом
// хотя бы одну триграмму (по алфавиту), затем остальные. Скорятся все:
// короткие ключи и перестановки ("tr" / "rt") общих триграмм не имеют.
func (idx *Index) candidateKeys(norm string) []string {
	if norm == "" {
		return nil
	}
	shared := make(map[string]struct{})
	for g := range trigramSet(norm) {
		for k := range idx.inv[g] {
			shared[k] = struct{}{}
		}
	}
	out := make([]string, 0, len(idx.keys))
	for _, k := range idx.keys {
		if _, ok := shared[k]; ok {
			out = append(out, k)
		}
	}
	for _, k := range idx.keys {
		if _, ok := shared[k]; !ok {
			out = append(out, k)
		}
	}
	return out
}

// score считает схожесть входа с каждым ключом индекса и оставляет
// лучший ключ на каждую DV. Результат отсортирован (см. sortCandidates).
func (idx *Index) score(norm, sorted string) []model.Candidate {
	nums := extractNumbers(norm)
	best := make(map[string]model.Candidate)
	for _, key := range idx.candidateKeys(norm) {
		e := idx.byKey[key]
		if !numbersCompatible(nums, e.numbers) {
			continue
		}
		s := max(similarity(norm, key), similarity(sorted, e.sorted))
		s = roundScore(s)
		if cur, ok := best[e.id]; !ok || s > cur.Score {
			best[e.id] = model.Candidate{ID: e.id, Key: key, Score: s}
		}
	}
	out := make([]model.Candidate, 0, len(best))
	for _, c := range best {
		out = append(out, c)
	}
	sortCandidates(out)
	return out
}

// по убыванию скора; при равенстве, более короткий id, затем лексикографически
func sortCandidates(c []model.Candidate) {
	sort.Slice(c, func(i, j int) bool {
		if c[i].Score != c[j].Score {
			return c[i].Score > c[j].Score
		}
		if len(c[i].ID) != len(c[j].ID) {
			return len(c[i].ID) < len(c[j].ID)
		}
		return c[i].ID < c[j].ID
	})
}

func roundScore(s float64) float64 { return math.Round(s*1e4) / 1e4 }
