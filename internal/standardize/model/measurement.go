package model

import "strings"

// Category: укрупнённая категория измерения.
type Category string

const (
	CategoryTime          Category = "Time"
	CategoryAccuracy      Category = "Accuracy"
	CategoryCount         Category = "Count"
	CategoryLikert        Category = "Likert"
	CategoryProportion    Category = "Proportion"
	CategoryBinary        Category = "Binary"
	CategoryContinuous    Category = "Continuous"
	CategoryPhysiological Category = "Physiological"

	// CategoryUnknown бывает только в результате вывода, в схеме и правилах запрещена.
	CategoryUnknown Category = "Unknown"
)

// Categories: закрытое множество допустимых категорий (в порядке объявления).
var Categories = []Category{
	CategoryTime, CategoryAccuracy, CategoryCount, CategoryLikert,
	CategoryProportion, CategoryBinary, CategoryContinuous, CategoryPhysiological,
}

// ParseCategory сравнивает без учёта регистра и возвращает каноническое написание.
func ParseCategory(s string) (Category, bool) {
	s = strings.TrimSpace(s)
	for _, c := range Categories {
		if strings.EqualFold(string(c), s) {
			return c, true
		}
	}
	return "", false
}

// ScaleType: шкала по Стивенсу.
type ScaleType string

const (
	ScaleNominal  ScaleType = "nominal"
	ScaleOrdinal  ScaleType = "ordinal"
	ScaleInterval ScaleType = "interval"
	ScaleRatio    ScaleType = "ratio"
)

var ScaleTypes = []ScaleType{ScaleNominal, ScaleOrdinal, ScaleInterval, ScaleRatio}

func ParseScaleType(s string) (ScaleType, bool) {
	s = strings.TrimSpace(s)
	for _, v := range ScaleTypes {
		if strings.EqualFold(string(v), s) {
			return v, true
		}
	}
	return "", false
}

// Direction: как интерпретировать рост значения.
type Direction string

const (
	HigherIsBetter Direction = "higher_is_better"
	LowerIsBetter  Direction = "lower_is_better"
	Neutral        Direction = "neutral"
)

var Directions = []Direction{HigherIsBetter, LowerIsBetter, Neutral}

func ParseDirection(s string) (Direction, bool) {
	s = strings.TrimSpace(s)
	for _, v := range Directions {
		if strings.EqualFold(string(v), s) {
			return v, true
		}
	}
	return "", false
}

// DefaultScale: шкала по умолчанию для категории.
func DefaultScale(c Category) ScaleType {
	switch c {
	case CategoryLikert:
		return ScaleOrdinal
	case CategoryBinary:
		return ScaleNominal
	case CategoryUnknown, "":
		return ""
	default:
		return ScaleRatio
	}
}

// UnitVaries: единица не определена (выведено без маркера единицы).
const UnitVaries = "varies"

type MeasurementSpec struct {
	Category     Category  `json:"category" yaml:"category"`
	PrimaryUnit  string    `json:"primary_unit" yaml:"primary_unit"`
	AllowedUnits []string  `json:"allowed_units" yaml:"allowed_units"`
	ScaleType    ScaleType `json:"scale_type" yaml:"scale_type"`
	Direction    Direction `json:"direction" yaml:"direction"`
}

// Problems проверяет перечисления и согласованность единиц.
// Возвращает список проблем (пустой, всё ок).
func (m MeasurementSpec) Problems() []string {
	var out []string
	if _, ok := ParseCategory(string(m.Category)); !ok {
		out = append(out, "unknown category "+quote(string(m.Category)))
	}
	if _, ok := ParseScaleType(string(m.ScaleType)); !ok {
		out = append(out, "unknown scale_type "+quote(string(m.ScaleType)))
	}
	if _, ok := ParseDirection(string(m.Direction)); !ok {
		out = append(out, "unknown direction "+quote(string(m.Direction)))
	}
	if len(m.AllowedUnits) > 0 {
		found := false
		for _, u := range m.AllowedUnits {
			if u == m.PrimaryUnit {
				found = true
				break
			}
		}
		if !found {
			out = append(out, "primary_unit "+quote(m.PrimaryUnit)+" is not in allowed_units")
		}
	}
	return out
}

// Canonical возвращает копию с каноническим написанием перечислений.
// Вызывать только после успешной Problems().
func (m MeasurementSpec) Canonical() MeasurementSpec {
	c, _ := ParseCategory(string(m.Category))
	s, _ := ParseScaleType(string(m.ScaleType))
	d, _ := ParseDirection(string(m.Direction))
	out := MeasurementSpec{
		Category:    c,
		PrimaryUnit: m.PrimaryUnit,
		ScaleType:   s,
		Direction:   d,
	}
	out.AllowedUnits = append([]string(nil), m.AllowedUnits...)
	return out
}

func quote(s string) string { return `"` + s + `"` }
