package service

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestNormalize(t *testing.T) {
	cases := map[string]string{
		"Avg Satisfaction": "avgsatisfaction",
		"avg_satisfaction": "avgsatisfaction",
		"avgSatisfaction":  "avgsatisfaction",
		"AVG-SATISFACTION": "avgsatisfaction",
		"Réponse-Time":     "reponsetime",
		"NASA-TLX (0–100)": "nasatlx0100",
		"  ___  ":          "",
		"":                 "",
		"время_ответа":     "времяответа",
	}
	for in, want := range cases {
		if got := Normalize(in); got != want {
			t.Errorf("Normalize(%q) = %q, want %q", in, got, want)
		}
		if again := Normalize(Normalize(in)); again != Normalize(in) {
			t.Errorf("Normalize not idempotent on %q: %q -> %q", in, Normalize(in), again)
		}
	}
}

func TestTokens(t *testing.T) {
	cases := map[string][]string{
		"taskCompletionTime": {"task", "completion", "time"},
		"HTTPTimeout":        {"http", "timeout"},
		"trial2RT":           {"trial", "2", "rt"},
		"NASA_TLX_score":     {"nasa", "tlx", "score"},
		"Réponse-Time":       {"reponse", "time"},
		"---":                nil,
	}
	for in, want := range cases {
		got := Tokens(in)
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("Tokens(%q) mismatch (-want +got):\n%s", in, diff)
		}
		if j := strings.Join(got, ""); j != Normalize(in) {
			t.Errorf("join(Tokens(%q)) = %q, Normalize = %q", in, j, Normalize(in))
		}
	}
}

func TestTokenSortKey(t *testing.T) {
	if tokenSortKey("time_rate") != tokenSortKey("Rate Time") {
		t.Errorf("token order should not matter: %q vs %q", tokenSortKey("time_rate"), tokenSortKey("Rate Time"))
	}
}

func TestSimilarity(t *testing.T) {
	cases := []struct {
		a, b string
		want float64
	}{
		{"", "", 1},
		{"abc", "", 0},
		{"abc", "abc", 1},
		{"taskcompletiontme", "taskcompletiontime", 1 - 1.0/18},
		{"ab", "ba", 0.5}, // одна транспозиция
		{"время", "врмея", 0.8},
	}
	for _, c := range cases {
		if got := similarity(c.a, c.b); roundScore(got) != roundScore(c.want) {
			t.Errorf("similarity(%q, %q) = %v, want %v", c.a, c.b, got, c.want)
		}
	}
}

func TestNumbersCompatible(t *testing.T) {
	if !numbersCompatible(nil, []string{"3"}) {
		t.Error("numbers on one side only must not block")
	}
	if numbersCompatible([]string{"3"}, []string{"4"}) {
		t.Error("different numbers must block")
	}
	if !numbersCompatible(extractNumbers("q10a2"), extractNumbers("a2q10")) {
		t.Error("same multiset must be compatible")
	}
}

func TestTokenRun(t *testing.T) {
	if !tokenRun([]string{"nasa", "tlx", "score"}, "nasatlx") {
		t.Error("nasa+tlx should form nasatlx")
	}
	if tokenRun([]string{"suspend", "time"}, "sus") {
		t.Error("sus must not match inside suspend")
	}
}
