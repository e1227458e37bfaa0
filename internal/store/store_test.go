package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"dvmap-service/internal/standardize/model"
)

func strp(s string) *string { return &s }

func openTemp(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "runs.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func report(cols ...model.ResolutionResult) model.ConversionReport {
	rep := model.ConversionReport{
		SchemaVersion: "2.1",
		Mapping:       model.RenameMapping{},
		Summary:       model.Summary{TotalColumns: len(cols), ByTier: map[model.MatchTier]int{}},
	}
	for i, r := range cols {
		rep.Columns = append(rep.Columns, model.ColumnReport{Index: i, Resolution: r})
		rep.Summary.ByTier[r.MatchTier]++
		switch {
		case r.Resolved():
			rep.Summary.Resolved++
			rep.Mapping = append(rep.Mapping, model.RenamePair{From: r.InputName, To: r.ID()})
		case r.Ambiguous:
			rep.Summary.Ambiguous++
			rep.Summary.Unresolved++
		default:
			rep.Summary.Unresolved++
		}
	}
	return rep
}

func unresolved(name, norm string, score float64, ambiguous bool) model.ResolutionResult {
	r := model.ResolutionResult{InputName: name, NormalizedName: norm, MatchTier: model.TierUnresolved, Similarity: score}
	if ambiguous {
		r.MatchTier = model.TierFuzzy
		r.Ambiguous = true
	}
	return r
}

func TestSaveAndGetRun(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()

	rep := report(
		model.ResolutionResult{InputName: "TCT", NormalizedName: "tct", ResolvedID: strp("task_completion_time"), MatchTier: model.TierExactAlias, Similarity: 1},
		model.ResolutionResult{InputName: "SUS", NormalizedName: "sus", ResolvedID: strp("sus_score"), MatchTier: model.TierExactAlias, Similarity: 1},
		unresolved("avgSatisfaction", "avgsatisfaction", 0.75, false),
	)

	id, err := s.SaveRun(ctx, Run{Source: "cli", FileName: "study.csv", Report: rep})
	if err != nil {
		t.Fatalf("SaveRun: %v", err)
	}
	if id == "" {
		t.Fatal("empty run id")
	}

	got, err := s.GetRun(ctx, id)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if diff := cmp.Diff(rep, got); diff != "" {
		t.Errorf("report mismatch (-want +got):\n%s", diff)
	}
	// порядок отображения сохраняется
	if got.Mapping[0].From != "TCT" || got.Mapping[1].From != "SUS" {
		t.Errorf("mapping order: %+v", got.Mapping)
	}

	if _, err := s.GetRun(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetRun(missing): want ErrNotFound, got %v", err)
	}
}

func TestListRunsAndBacklog(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()

	t1 := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Hour)

	s.now = func() time.Time { return t1 }
	first, err := s.SaveRun(ctx, Run{Source: "http", FileName: "a.csv", Report: report(
		unresolved("avgSatisfaction", "avgsatisfaction", 0.75, false),
		unresolved("participant_id", "participantid", 0, false),
		unresolved("", "", 0, false),
	)})
	if err != nil {
		t.Fatal(err)
	}

	s.now = func() time.Time { return t2 }
	second, err := s.SaveRun(ctx, Run{Source: "cli", FileName: "b.xlsx", Report: report(
		unresolved("AvgSatisfaction", "avgsatisfaction", 0.7, true),
	)})
	if err != nil {
		t.Fatal(err)
	}

	runs, err := s.ListRuns(ctx, 0)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 2 || runs[0].ID != second || runs[1].ID != first {
		t.Fatalf("runs order: %+v", runs)
	}
	if !runs[0].CreatedAt.Equal(t2) || runs[0].Source != "cli" || runs[0].FileName != "b.xlsx" {
		t.Errorf("newest run: %+v", runs[0])
	}
	if runs[1].Total != 3 || runs[1].Unresolved != 3 || runs[1].SchemaVersion != "2.1" {
		t.Errorf("oldest run: %+v", runs[1])
	}

	limited, err := s.ListRuns(ctx, 1)
	if err != nil || len(limited) != 1 {
		t.Fatalf("ListRuns(1): %v %v", limited, err)
	}

	backlog, err := s.UnresolvedBacklog(ctx, 10)
	if err != nil {
		t.Fatalf("UnresolvedBacklog: %v", err)
	}
	want := []BacklogItem{
		{NormalizedName: "avgsatisfaction", Example: "AvgSatisfaction", Occurrences: 2, Ambiguous: 1, BestScore: 0.75, LastSeen: t2},
		{NormalizedName: "participantid", Example: "participant_id", Occurrences: 1, BestScore: 0, LastSeen: t1},
	}
	if diff := cmp.Diff(want, backlog); diff != "" {
		t.Errorf("backlog mismatch (-want +got):\n%s", diff)
	}
}

func TestEmptyArchive(t *testing.T) {
	s := openTemp(t)
	runs, err := s.ListRuns(context.Background(), 10)
	if err != nil || len(runs) != 0 {
		t.Errorf("ListRuns on empty archive: %v %v", runs, err)
	}
	items, err := s.UnresolvedBacklog(context.Background(), 10)
	if err != nil || len(items) != 0 {
		t.Errorf("UnresolvedBacklog on empty archive: %v %v", items, err)
	}
}
