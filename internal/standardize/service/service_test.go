package service_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	. "github.com/smartystreets/goconvey/convey"

	"dvmap-service/internal/standardize/model"
	"dvmap-service/internal/standardize/service"
)

func TestConvert(t *testing.T) {
	Convey("Given a dataset header and the study schema", t, func() {
		sc := mustCompile(t, studySchema())
		rules := defaultRules(t)
		columns := []string{"participant_id", "Task Completion Time", "errors", "avgSatisfaction", "SUS"}

		Convey("When it is converted with metadata inference", func() {
			rep := service.Convert(columns, sc, rules, model.DefaultOptions())

			Convey("Then columns keep input order", func() {
				So(len(rep.Columns), ShouldEqual, len(columns))
				for i, c := range rep.Columns {
					So(c.Index, ShouldEqual, i)
					So(c.Resolution.InputName, ShouldEqual, columns[i])
					So(c.Inference, ShouldNotBeNil)
				}
			})

			Convey("Then the mapping holds resolved columns only, in order", func() {
				want := model.RenameMapping{
					{From: "Task Completion Time", To: "task_completion_time"},
					{From: "errors", To: "error_count"},
					{From: "SUS", To: "sus_score"},
				}
				So(cmp.Diff(want, rep.Mapping), ShouldBeEmpty)
			})

			Convey("Then the summary counts tiers, review flags and categories", func() {
				s := rep.Summary
				So(rep.SchemaVersion, ShouldEqual, "2.1")
				So(s.TotalColumns, ShouldEqual, 5)
				So(s.Resolved, ShouldEqual, 3)
				So(s.Unresolved, ShouldEqual, 2)
				So(s.Ambiguous, ShouldEqual, 0)
				So(s.NeedsReview, ShouldEqual, 2)
				So(s.ChangeRate, ShouldEqual, 0.6)
				So(s.Conflicts, ShouldBeEmpty)
				So(cmp.Diff(map[model.MatchTier]int{
					model.TierExactCanonical: 1,
					model.TierExactAlias:     2,
					model.TierUnresolved:     2,
				}, s.ByTier), ShouldBeEmpty)
				So(cmp.Diff(map[model.Category]int{
					model.CategoryUnknown: 1,
					model.CategoryTime:    1,
					model.CategoryCount:   1,
					model.CategoryLikert:  2,
				}, s.Categories), ShouldBeEmpty)
			})

			Convey("Then headers are renamed where resolved", func() {
				got := service.RenameHeaders(columns, rep)
				want := []string{"participant_id", "task_completion_time", "error_count", "avgSatisfaction", "sus_score"}
				So(cmp.Diff(want, got), ShouldBeEmpty)
			})
		})

		Convey("When inference is off", func() {
			opt := model.DefaultOptions()
			opt.InferMetadata = false
			rep := service.Convert(columns, sc, rules, opt)

			Convey("Then no column carries metadata", func() {
				for _, c := range rep.Columns {
					So(c.Inference, ShouldBeNil)
				}
				So(rep.Summary.NeedsReview, ShouldEqual, 0)
				So(rep.Summary.Categories, ShouldBeNil)
			})
		})

		Convey("When two columns resolve to the same DV", func() {
			rep := service.Convert([]string{"TCT", "task_completion_time"}, sc, rules, model.DefaultOptions())

			Convey("Then the id is listed as a conflict but both are mapped", func() {
				So(rep.Summary.Conflicts, ShouldResemble, []string{"task_completion_time"})
				So(len(rep.Mapping), ShouldEqual, 2)
				So(rep.Summary.ChangeRate, ShouldEqual, 0.5)
			})
		})

		Convey("When the column list is empty", func() {
			rep := service.Convert(nil, sc, rules, model.DefaultOptions())
			So(rep.Summary.TotalColumns, ShouldEqual, 0)
			So(rep.Summary.ChangeRate, ShouldEqual, 0.0)
		})
	})
}

func TestConvertDeterministic(t *testing.T) {
	sc := mustCompile(t, studySchema())
	rules := defaultRules(t)
	columns := []string{
		"participant_id", "task_completion_tme", "error_cnt", "usr_satisfaction", "SUS",
		"RT_ms", "NASA_TLX_score", "avgSatisfaction", "completion_tim", "errors",
	}

	sequential := service.Convert(columns, sc, rules, model.DefaultOptions())
	again := service.Convert(columns, sc, rules, model.DefaultOptions())
	if diff := cmp.Diff(sequential, again); diff != "" {
		t.Fatalf("repeated run differs (-first +second):\n%s", diff)
	}

	par := model.DefaultOptions()
	par.Workers = 4
	parallel := service.Convert(columns, sc, rules, par)
	if diff := cmp.Diff(sequential, parallel); diff != "" {
		t.Fatalf("parallel run differs (-sequential +parallel):\n%s", diff)
	}
}

func TestBuildSidecar(t *testing.T) {
	sc := mustCompile(t, studySchema())
	rep := service.Convert([]string{"Task Completion Time", "avgSatisfaction"}, sc, defaultRules(t), model.DefaultOptions())
	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	side := service.BuildSidecar(rep, at)

	if side.SchemaVersion != "2.1" || !side.InferenceTimestamp.Equal(at) {
		t.Fatalf("header: %+v", side)
	}
	if len(side.Columns) != 2 {
		t.Fatalf("columns: got %d", len(side.Columns))
	}
	first := side.Columns[0]
	if first.Column != "task_completion_time" || first.OriginalName != "Task Completion Time" || first.MatchTier != model.TierExactCanonical {
		t.Errorf("first column: %+v", first)
	}
	if side.Columns[1].Column != "avgSatisfaction" || !side.Columns[1].NeedsReview {
		t.Errorf("second column: %+v", side.Columns[1])
	}
	if side.Summary.NeedsReview != 1 || side.Summary.Categories[model.CategoryTime] != 1 {
		t.Errorf("summary: %+v", side.Summary)
	}

	// плоская запись колонки: поля InferenceResult на верхнем уровне
	b, err := json.Marshal(first)
	if err != nil {
		t.Fatal(err)
	}
	var flat map[string]any
	if err := json.Unmarshal(b, &flat); err != nil {
		t.Fatal(err)
	}
	for _, k := range []string{"column", "original_name", "match_tier", "category", "primary_unit", "allowed_units", "scale_type", "direction", "confidence", "inferred", "matched_rules", "needs_review"} {
		if _, ok := flat[k]; !ok {
			t.Errorf("sidecar column is missing %q: %s", k, b)
		}
	}
}

func TestReportJSON(t *testing.T) {
	sc := mustCompile(t, studySchema())
	rep := service.Convert([]string{"SUS", "TCT", "participant_id"}, sc, defaultRules(t), model.DefaultOptions())

	b, err := json.Marshal(rep)
	if err != nil {
		t.Fatal(err)
	}
	var back model.ConversionReport
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(rep, back); diff != "" {
		t.Errorf("report changed after JSON round trip (-want +got):\n%s", diff)
	}

	var raw struct {
		Mapping json.RawMessage `json:"mapping"`
	}
	_ = json.Unmarshal(b, &raw)
	if got := string(raw.Mapping); got != `{"SUS":"sus_score","TCT":"task_completion_time"}` {
		t.Errorf("mapping JSON = %s", got)
	}
}

func TestConvertScenarios(t *testing.T) {
	Convey("Given a dataset whose columns are the canonical ids", t, func() {
		doc := studySchema()
		sc := mustCompile(t, doc)
		var columns []string
		for _, dv := range doc.DVs {
			columns = append(columns, dv.ID)
		}
		rep := service.Convert(columns, sc, defaultRules(t), model.DefaultOptions())

		Convey("Then the mapping is the identity and every tier is exact_canonical", func() {
			want := model.RenameMapping{}
			for _, c := range columns {
				want = append(want, model.RenamePair{From: c, To: c})
			}
			So(cmp.Diff(want, rep.Mapping), ShouldBeEmpty)
			So(cmp.Diff(map[model.MatchTier]int{model.TierExactCanonical: len(columns)}, rep.Summary.ByTier), ShouldBeEmpty)
			for _, c := range rep.Columns {
				So(c.Resolution.Similarity, ShouldEqual, 1.0)
			}
			So(rep.Summary.ChangeRate, ShouldEqual, 0.0)
		})
	})

	Convey("Given camelCase aliases and a stray column", t, func() {
		sc := mustCompile(t, model.Schema{Version: "1", DVs: []model.CanonicalDV{
			{ID: "task_completion_time", Aliases: []string{"taskTime", "completionTime"}},
		}})
		opt := model.DefaultOptions()
		opt.Match.Threshold = 0.8
		rep := service.Convert([]string{"taskTime", "Completion_Time", "totally_unrelated_field"}, sc, defaultRules(t), opt)

		Convey("Then both alias spellings resolve exactly and the stray column does not", func() {
			r := rep.Columns
			So(r[0].Resolution.ID(), ShouldEqual, "task_completion_time")
			So(r[0].Resolution.MatchTier, ShouldEqual, model.TierExactAlias)
			So(r[1].Resolution.NormalizedName, ShouldEqual, "completiontime")
			So(r[1].Resolution.ID(), ShouldEqual, "task_completion_time")
			So(r[1].Resolution.MatchTier, ShouldEqual, model.TierExactAlias)
			So(r[2].Resolution.Resolved(), ShouldBeFalse)
			So(r[2].Resolution.MatchTier, ShouldEqual, model.TierUnresolved)
		})

		Convey("Then the shared target is reported as a conflict", func() {
			So(rep.Summary.Conflicts, ShouldResemble, []string{"task_completion_time"})
			So(rep.Summary.Resolved, ShouldEqual, 2)
			So(rep.Summary.Unresolved, ShouldEqual, 1)
		})
	})
}
