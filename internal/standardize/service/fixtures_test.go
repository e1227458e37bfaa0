package service_test

import (
	"testing"

	"dvmap-service/internal/standardize/loader"
	"dvmap-service/internal/standardize/model"
	"dvmap-service/internal/standardize/service"
)

func studySchema() model.Schema {
	return model.Schema{
		Version: "2.1",
		DVs: []model.CanonicalDV{
			{ID: "task_completion_time", Label: "Task completion time", Aliases: []string{"completion time", "TCT", "time_on_task"}},
			{ID: "error_count", Aliases: []string{"errors", "num_errors"}},
			{ID: "user_satisfaction", Aliases: []string{"userSatisfaction", "satisfactionScore"}},
			{ID: "sus_score", Aliases: []string{"SUS"}, Measurement: &model.MeasurementSpec{
				Category:     model.CategoryLikert,
				PrimaryUnit:  "0-100",
				AllowedUnits: []string{"0-100"},
				ScaleType:    model.ScaleInterval,
				Direction:    model.HigherIsBetter,
			}},
		},
	}
}

func mustCompile(t *testing.T, doc model.Schema) *service.Schema {
	t.Helper()
	sc, err := service.Compile(doc)
	if err != nil {
		t.Fatalf("compile schema: %v", err)
	}
	return sc
}

func defaultRules(t *testing.T) *service.RuleSet {
	t.Helper()
	rs, err := service.CompileRules(loader.DefaultRules())
	if err != nil {
		t.Fatalf("compile default rules: %v", err)
	}
	return rs
}
