// Package loader читает документы схемы, кластеров и правил из YAML.
// Ядро получает уже разобранные структуры; здесь только разбор и запись.
package loader

import (
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"dvmap-service/internal/standardize/model"
	"dvmap-service/internal/standardize/service"
)

//go:embed default_rules.yaml
var defaultRulesYAML []byte

// LegacyVersion: версия, которая проставляется схемам плоского формата.
const LegacyVersion = "legacy"

// ParseSchema разбирает схему. Поддерживаются два формата:
// новый ({version, dvs: [...], clusters: [...]}) и плоский legacy
// ({standard_name: [aliases]}); формат определяется по ключу dvs.
func ParseSchema(data []byte) (model.Schema, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return model.Schema{}, fmt.Errorf("parse schema: %w", err)
	}
	if len(root.Content) == 0 {
		return model.Schema{}, fmt.Errorf("parse schema: %w", errors.New("empty document"))
	}
	doc := root.Content[0]
	if doc.Kind != yaml.MappingNode {
		return model.Schema{}, fmt.Errorf("parse schema: %w", errors.New("schema root must be a mapping"))
	}

	if hasKey(doc, "dvs") {
		var s model.Schema
		if err := doc.Decode(&s); err != nil {
			return model.Schema{}, fmt.Errorf("parse schema: %w", err)
		}
		return s, nil
	}
	return parseLegacy(doc)
}

// плоский формат: порядок DV = порядок ключей в файле
func parseLegacy(doc *yaml.Node) (model.Schema, error) {
	s := model.Schema{Version: LegacyVersion}
	for i := 0; i+1 < len(doc.Content); i += 2 {
		k, v := doc.Content[i], doc.Content[i+1]
		if k.Value == "version" && v.Kind == yaml.ScalarNode {
			s.Version = v.Value
			continue
		}
		var aliases []string
		switch {
		case v.Kind == yaml.SequenceNode:
			if err := v.Decode(&aliases); err != nil {
				return model.Schema{}, fmt.Errorf("parse schema: aliases of %q: %w", k.Value, err)
			}
		case v.Kind == yaml.ScalarNode && v.Tag == "!!null":
			// "task_time:": DV без алиасов
			aliases = []string{}
		case v.Kind == yaml.ScalarNode:
			// "task_time: tt": один алиас
			aliases = []string{v.Value}
		default:
			return model.Schema{}, fmt.Errorf("parse schema: aliases of %q (line %d): want a list of aliases", k.Value, v.Line)
		}
		s.DVs = append(s.DVs, model.CanonicalDV{ID: k.Value, Aliases: aliases})
	}
	return s, nil
}

func hasKey(m *yaml.Node, key string) bool {
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			return true
		}
	}
	return false
}

// ParseClusters разбирает файл кластеров ({clusters: [{id, label}]}).
func ParseClusters(data []byte) ([]model.Cluster, error) {
	var doc struct {
		Clusters []model.Cluster `yaml:"clusters"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse clusters: %w", err)
	}
	return doc.Clusters, nil
}

// ParseRules разбирает таблицу правил; agreement_boost по умолчанию 0.05.
func ParseRules(data []byte) (model.RuleTable, error) {
	t := model.RuleTable{AgreementBoost: model.DefaultAgreementBoost}
	if err := yaml.Unmarshal(data, &t); err != nil {
		return model.RuleTable{}, fmt.Errorf("parse rules: %w", err)
	}
	return t, nil
}

// DefaultRules: встроенная таблица правил.
func DefaultRules() model.RuleTable {
	t, err := ParseRules(defaultRulesYAML)
	if err != nil {
		panic(fmt.Sprintf("load default_rules.yaml: %v", err))
	}
	return t
}

func LoadSchema(path string) (model.Schema, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return model.Schema{}, fmt.Errorf("read schema: %w", err)
	}
	return ParseSchema(b)
}

func LoadClusters(path string) ([]model.Cluster, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read clusters: %w", err)
	}
	return ParseClusters(b)
}

// LoadRules читает таблицу правил; пустой путь, встроенные правила.
func LoadRules(path string) (model.RuleTable, error) {
	if path == "" {
		return DefaultRules(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return model.RuleTable{}, fmt.Errorf("read rules: %w", err)
	}
	return ParseRules(b)
}

// Paths: где лежат документы прогона.
type Paths struct {
	Schema   string
	Clusters string // опционально, дополняет clusters из схемы
	Rules    string // опционально, иначе встроенные
}

// Open читает и компилирует схему и правила. Ошибка валидации возвращается
// как есть (*model.SchemaValidationError / *model.RuleTableValidationError).
func Open(p Paths) (*service.Schema, *service.RuleSet, error) {
	doc, err := LoadSchema(p.Schema)
	if err != nil {
		return nil, nil, err
	}
	if p.Clusters != "" {
		cl, err := LoadClusters(p.Clusters)
		if err != nil {
			return nil, nil, err
		}
		doc.Clusters = append(doc.Clusters, cl...)
	}
	sc, err := service.Compile(doc)
	if err != nil {
		return nil, nil, err
	}
	table, err := LoadRules(p.Rules)
	if err != nil {
		return nil, nil, err
	}
	rules, err := service.CompileRules(table)
	if err != nil {
		return nil, nil, err
	}
	return sc, rules, nil
}

// SaveSchema пишет схему в YAML (новый формат).
func SaveSchema(w io.Writer, s model.Schema) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(s); err != nil {
		return fmt.Errorf("write schema: %w", err)
	}
	return enc.Close()
}

// ParseSuggestions разбирает предложения алиасов {standard_name: [aliases]}.
func ParseSuggestions(data []byte) (map[string][]string, error) {
	var m map[string][]string
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse suggestions: %w", err)
	}
	return m, nil
}

// MergeSuggestions добавляет предложенные алиасы к существующим DV и новые DV
// в конец (по алфавиту). Исходная схема не меняется. Результат нужно снова
// прогнать через service.Compile.
func MergeSuggestions(s model.Schema, suggestions map[string][]string) model.Schema {
	out := model.Schema{
		Version:  s.Version,
		Clusters: append([]model.Cluster(nil), s.Clusters...),
		DVs:      make([]model.CanonicalDV, len(s.DVs)),
	}
	pos := make(map[string]int, len(s.DVs))
	for i, dv := range s.DVs {
		dv.Aliases = append([]string(nil), dv.Aliases...)
		out.DVs[i] = dv
		pos[dv.ID] = i
	}

	ids := make([]string, 0, len(suggestions))
	for id := range suggestions {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		i, ok := pos[id]
		if !ok {
			out.DVs = append(out.DVs, model.CanonicalDV{ID: id})
			i = len(out.DVs) - 1
			pos[id] = i
		}
		for _, a := range suggestions[id] {
			if !contains(out.DVs[i].Aliases, a) {
				out.DVs[i].Aliases = append(out.DVs[i].Aliases, a)
			}
		}
	}
	return out
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
