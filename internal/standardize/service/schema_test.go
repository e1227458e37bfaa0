package service_test

import (
	"errors"
	"strings"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"dvmap-service/internal/standardize/loader"
	"dvmap-service/internal/standardize/model"
	"dvmap-service/internal/standardize/service"
)

func problemsOf(err error) []string {
	var se *model.SchemaValidationError
	if errors.As(err, &se) {
		return se.Problems
	}
	var re *model.RuleTableValidationError
	if errors.As(err, &re) {
		return re.Problems
	}
	return nil
}

func hasProblem(problems []string, substr string) bool {
	for _, p := range problems {
		if strings.Contains(p, substr) {
			return true
		}
	}
	return false
}

func TestCompileSchema(t *testing.T) {
	Convey("Given schema documents", t, func() {
		Convey("When the study schema is compiled", func() {
			sc, err := service.Compile(studySchema())

			Convey("Then it is indexed", func() {
				So(err, ShouldBeNil)
				So(sc.Version(), ShouldEqual, "2.1")
				So(sc.Len(), ShouldEqual, 4)
				So(sc.WithMeasurement(), ShouldEqual, 1)
				// userSatisfaction совпадает с id после нормализации
				So(sc.KeyCount(), ShouldEqual, 11)
				dv, ok := sc.DV("sus_score")
				So(ok, ShouldBeTrue)
				So(dv.Measurement.Category, ShouldEqual, model.CategoryLikert)
			})
		})

		Convey("When two DVs share an alias after normalization", func() {
			_, err := service.Compile(model.Schema{DVs: []model.CanonicalDV{
				{ID: "reaction_time", Aliases: []string{"Time"}},
				{ID: "completion_time", Aliases: []string{"time"}},
			}})

			Convey("Then compilation fails with a collision problem", func() {
				So(errors.Is(err, model.ErrInvalidSchema), ShouldBeTrue)
				So(hasProblem(problemsOf(err), `alias "time" collides with "reaction_time"`), ShouldBeTrue)
			})
		})

		Convey("When a document breaks several rules at once", func() {
			_, err := service.Compile(model.Schema{
				Clusters: []model.Cluster{{ID: "performance"}},
				DVs: []model.CanonicalDV{
					{ID: "", Aliases: []string{"x"}},
					{ID: "task_time", Cluster: "speed"},
					{ID: "Task-Time"},
					{ID: "errors", Aliases: []string{"N/A", "  "}},
					{ID: "sus", Measurement: &model.MeasurementSpec{
						Category: "Likert", PrimaryUnit: "0-100", AllowedUnits: []string{"1-7"},
						ScaleType: "interval", Direction: "sideways",
					}},
				},
			})
			problems := problemsOf(err)

			Convey("Then every problem is reported", func() {
				So(err, ShouldNotBeNil)
				So(hasProblem(problems, "missing required field 'id'"), ShouldBeTrue)
				So(hasProblem(problems, `unknown cluster "speed"`), ShouldBeTrue)
				So(hasProblem(problems, `duplicate dv id "Task-Time"`), ShouldBeTrue)
				So(hasProblem(problems, `alias "N/A" is a reserved keyword`), ShouldBeTrue)
				So(hasProblem(problems, "empty alias"), ShouldBeTrue)
				So(hasProblem(problems, `unknown direction "sideways"`), ShouldBeTrue)
				So(hasProblem(problems, "is not in allowed_units"), ShouldBeTrue)
			})
		})

		Convey("When enum values differ in case", func() {
			sc, err := service.Compile(model.Schema{DVs: []model.CanonicalDV{
				{ID: "rt", Measurement: &model.MeasurementSpec{Category: "time", PrimaryUnit: "ms", ScaleType: "RATIO", Direction: "Lower_Is_Better"}},
			}})

			Convey("Then they are accepted and canonicalized", func() {
				So(err, ShouldBeNil)
				dv, _ := sc.DV("rt")
				So(dv.Measurement.Category, ShouldEqual, model.CategoryTime)
				So(dv.Measurement.ScaleType, ShouldEqual, model.ScaleRatio)
				So(dv.Measurement.Direction, ShouldEqual, model.LowerIsBetter)
			})
		})
	})
}

func TestCompileSchemaClusterSpacing(t *testing.T) {
	Convey("Given cluster ids with stray spaces", t, func() {
		sc, err := service.Compile(model.Schema{
			Clusters: []model.Cluster{{ID: " perf", Label: "Performance"}},
			DVs:      []model.CanonicalDV{{ID: "task_time", Cluster: "perf "}},
		})

		Convey("Then the reference matches the declared cluster", func() {
			So(err, ShouldBeNil)
			dv, _ := sc.DV("task_time")
			So(dv.Cluster, ShouldEqual, "perf")
			So(sc.Clusters(), ShouldResemble, []model.Cluster{{ID: "perf", Label: "Performance"}})
		})
	})
}

func TestCompileRules(t *testing.T) {
	Convey("Given rule tables", t, func() {
		Convey("When the built-in table is compiled", func() {
			rs, err := service.CompileRules(loader.DefaultRules())
			So(err, ShouldBeNil)
			So(rs.Len(), ShouldBeGreaterThan, 30)
		})

		Convey("When a rule references an unknown category", func() {
			_, err := service.CompileRules(model.RuleTable{
				AgreementBoost: 0.05,
				Rules: []model.Rule{
					{ID: "kw:speed", Kind: model.KindKeyword, Pattern: "speed", Category: "Speed", Weight: 0.5},
				},
			})

			Convey("Then validation fails naming the rule", func() {
				So(errors.Is(err, model.ErrInvalidRules), ShouldBeTrue)
				So(hasProblem(problemsOf(err), `rule "kw:speed" references undefined category "Speed"`), ShouldBeTrue)
			})
		})

		Convey("When rules are malformed in other ways", func() {
			_, err := service.CompileRules(model.RuleTable{
				AgreementBoost: 2,
				Rules: []model.Rule{
					{ID: "a", Kind: model.KindPattern, Pattern: "([", Category: "Time", Weight: 0.5},
					{ID: "a", Kind: model.KindKeyword, Pattern: "x", Category: "Time", Weight: 0.5},
					{ID: "b", Kind: "fuzzy", Pattern: "x", Category: "Time", Weight: 0.5},
					{ID: "c", Kind: model.KindKeyword, Pattern: "x", Category: "Time", Weight: 0},
					{ID: "d", Kind: model.KindKeyword, Pattern: "x", Category: "Time", ScaleType: "log", Weight: 0.5},
				},
			})
			problems := problemsOf(err)

			Convey("Then each is reported", func() {
				So(hasProblem(problems, "agreement_boost"), ShouldBeTrue)
				So(hasProblem(problems, `rule "a": bad regexp`), ShouldBeTrue)
				So(hasProblem(problems, `duplicate rule id "a"`), ShouldBeTrue)
				So(hasProblem(problems, `rule "b": unknown kind "fuzzy" (want one of [instrument unit keyword suffix pattern])`), ShouldBeTrue)
				So(hasProblem(problems, `rule "c": weight`), ShouldBeTrue)
				So(hasProblem(problems, `rule "d": unknown scale_type "log"`), ShouldBeTrue)
			})
		})
	})
}
