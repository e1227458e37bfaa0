package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// CanonicalDV: каноническая зависимая переменная схемы.
type CanonicalDV struct {
	ID          string           `json:"id" yaml:"id"`
	Label       string           `json:"label,omitempty" yaml:"label,omitempty"`
	Cluster     string           `json:"cluster,omitempty" yaml:"cluster,omitempty"`
	Aliases     []string         `json:"aliases" yaml:"aliases"`
	Measurement *MeasurementSpec `json:"measurement,omitempty" yaml:"measurement,omitempty"`
	Notes       string           `json:"notes,omitempty" yaml:"notes,omitempty"`
}

// Cluster: тематическая группа DV.
type Cluster struct {
	ID    string `json:"id" yaml:"id"`
	Label string `json:"label,omitempty" yaml:"label,omitempty"`
}

// Schema: разобранный документ схемы (до компиляции).
type Schema struct {
	Version  string        `json:"version" yaml:"version"`
	DVs      []CanonicalDV `json:"dvs" yaml:"dvs"`
	Clusters []Cluster     `json:"clusters,omitempty" yaml:"clusters,omitempty"`
}

// MatchTier: каким способом колонка сопоставлена.
type MatchTier string

const (
	TierExactCanonical MatchTier = "exact_canonical"
	TierExactAlias     MatchTier = "exact_alias"
	TierFuzzy          MatchTier = "fuzzy"
	TierUnresolved     MatchTier = "unresolved"
)

type Candidate struct {
	ID    string  `json:"id"`
	Key   string  `json:"key"` // нормализованный id/alias, давший лучший скор
	Score float64 `json:"score"`
}

type ResolutionResult struct {
	InputName      string      `json:"input_name"`
	NormalizedName string      `json:"normalized_name"`
	ResolvedID     *string     `json:"resolved_id"`
	MatchTier      MatchTier   `json:"match_tier"`
	Similarity     float64     `json:"similarity_score"`
	Ambiguous      bool        `json:"ambiguous"`
	Candidates     []Candidate `json:"candidates"`
}

func (r ResolutionResult) Resolved() bool { return r.ResolvedID != nil }

// ID: resolved id или "".
func (r ResolutionResult) ID() string {
	if r.ResolvedID == nil {
		return ""
	}
	return *r.ResolvedID
}

type InferenceResult struct {
	Category     Category  `json:"category"`
	PrimaryUnit  string    `json:"primary_unit"`
	AllowedUnits []string  `json:"allowed_units"`
	ScaleType    ScaleType `json:"scale_type"`
	Direction    Direction `json:"direction"`
	Confidence   float64   `json:"confidence"`
	Inferred     bool      `json:"inferred"`
	MatchedRules []string  `json:"matched_rules"`
	NeedsReview  bool      `json:"needs_review"`
}

// ColumnReport: итог по одной колонке входного набора.
type ColumnReport struct {
	Index      int              `json:"index"`
	Resolution ResolutionResult `json:"resolution"`
	Inference  *InferenceResult `json:"inference,omitempty"`
}

// OutputName: имя колонки после переименования.
func (c ColumnReport) OutputName() string {
	if c.Resolution.Resolved() {
		return c.Resolution.ID()
	}
	return c.Resolution.InputName
}

type Summary struct {
	TotalColumns int               `json:"total_columns"`
	Resolved     int               `json:"resolved"`
	Unresolved   int               `json:"unresolved"`
	Ambiguous    int               `json:"ambiguous"`
	NeedsReview  int               `json:"needs_review"`
	ByTier       map[MatchTier]int `json:"by_tier"`
	Categories   map[Category]int  `json:"categories,omitempty"`
	// целевые id, на которые претендует больше одной колонки
	Conflicts  []string `json:"conflicts,omitempty"`
	ChangeRate float64  `json:"change_rate"`
}

type RenamePair struct {
	From string
	To   string
}

// RenameMapping: упорядоченное отображение «исходное имя → id».
// В JSON сериализуется объектом с сохранением порядка колонок.
type RenameMapping []RenamePair

func (m RenameMapping) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, p := range m {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(p.From)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(p.To)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON читает объект, сохраняя порядок ключей.
func (m *RenameMapping) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil { // null
		*m = nil
		return nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("mapping: expected object, got %v", tok)
	}
	out := RenameMapping{}
	for dec.More() {
		var from, to string
		if err := dec.Decode(&from); err != nil {
			return err
		}
		if err := dec.Decode(&to); err != nil {
			return err
		}
		out = append(out, RenamePair{From: from, To: to})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*m = out
	return nil
}

// Map: то же самое в виде map (порядок теряется).
func (m RenameMapping) Map() map[string]string {
	out := make(map[string]string, len(m))
	for _, p := range m {
		out[p.From] = p.To
	}
	return out
}

type ConversionReport struct {
	SchemaVersion string         `json:"schema_version"`
	Columns       []ColumnReport `json:"columns"`
	Mapping       RenameMapping  `json:"mapping"`
	Summary       Summary        `json:"summary"`
}

// SidecarColumn: запись метаданных по колонке в sidecar-файле.
type SidecarColumn struct {
	Column       string    `json:"column"`
	OriginalName string    `json:"original_name"`
	MatchTier    MatchTier `json:"match_tier"`
	InferenceResult
}

type SidecarSummary struct {
	TotalColumns int              `json:"total_columns"`
	Resolved     int              `json:"resolved"`
	Unresolved   int              `json:"unresolved"`
	Ambiguous    int              `json:"ambiguous"`
	NeedsReview  int              `json:"needs_review"`
	Categories   map[Category]int `json:"categories"`
}

// Sidecar: документ метаданных, который пишется рядом с результатом.
type Sidecar struct {
	SchemaVersion      string          `json:"schema_version"`
	InferenceTimestamp time.Time       `json:"inference_timestamp"`
	Columns            []SidecarColumn `json:"columns"`
	Summary            SidecarSummary  `json:"summary"`
}

type MatchOptions struct {
	EnableFuzzy bool    // нечеткий уровень; без него только точные совпадения
	Threshold   float64 // порог схожести для fuzzy (0..1)
	Margin      float64 // минимальный отрыв лидера от второго кандидата
}

type Options struct {
	Match           MatchOptions
	InferMetadata   bool    // считать InferenceResult
	ReviewThreshold float64 // confidence ниже порога → needs_review
	Workers         int     // <=1: последовательно
}

const (
	DefaultThreshold       = 0.80
	DefaultMargin          = 0.05
	DefaultReviewThreshold = 0.70
)

func DefaultMatchOptions() MatchOptions {
	return MatchOptions{EnableFuzzy: true, Threshold: DefaultThreshold, Margin: DefaultMargin}
}

func DefaultOptions() Options {
	return Options{
		Match:           DefaultMatchOptions(),
		InferMetadata:   true,
		ReviewThreshold: DefaultReviewThreshold,
		Workers:         1,
	}
}
