package model

// RuleKind: способ сопоставления правила с именем колонки.
type RuleKind string

const (
	KindInstrument RuleKind = "instrument" // название опросника (SUS, NASA-TLX ...) целыми токенами
	KindUnit       RuleKind = "unit"       // маркер единицы: "(ms)" в конце или последний токен
	KindKeyword    RuleKind = "keyword"    // подстрока нормализованного имени
	KindSuffix     RuleKind = "suffix"     // последний токен
	KindPattern    RuleKind = "pattern"    // regexp по исходному имени в нижнем регистре
)

var RuleKinds = []RuleKind{KindInstrument, KindUnit, KindKeyword, KindSuffix, KindPattern}

// Rule: одно декларативное правило вывода метаданных.
type Rule struct {
	ID        string    `json:"id" yaml:"id"`
	Kind      RuleKind  `json:"kind" yaml:"kind"`
	Pattern   string    `json:"pattern" yaml:"pattern"`
	Aliases   []string  `json:"aliases,omitempty" yaml:"aliases,omitempty"`
	Category  Category  `json:"category" yaml:"category"`
	Unit      string    `json:"unit,omitempty" yaml:"unit,omitempty"`
	ScaleType ScaleType `json:"scale_type,omitempty" yaml:"scale_type,omitempty"`
	Direction Direction `json:"direction,omitempty" yaml:"direction,omitempty"`
	Weight    float64   `json:"weight" yaml:"weight"`
}

// RuleTable: разобранная таблица правил.
type RuleTable struct {
	Version        string  `json:"version" yaml:"version"`
	AgreementBoost float64 `json:"agreement_boost" yaml:"agreement_boost"`
	Rules          []Rule  `json:"rules" yaml:"rules"`
}

const DefaultAgreementBoost = 0.05
