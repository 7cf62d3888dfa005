package normalize

import (
	"strings"
	"testing"

	"github.com/doeshing/sage-go/internal/domain"
)

const assessmentJSON = `{"scores":{"completeness":8,"clarity":7,"risk":"6/10","testing":12},"verdict":"approve","issues":[{"description":"Missing rollback plan","severity":"high","location":"deploy.md"},"Unclear owner"],"summary":"Solid plan"}`

func success(raw string) domain.ToolResponse {
	return domain.ToolResponse{
		Provider: "p",
		Status:   domain.StatusSuccess,
		Raw:      raw,
		Parsed:   &domain.ParsedContent{Text: strings.TrimSpace(raw)},
	}
}

func TestNormalizeStrategies(t *testing.T) {
	claudeEnvelope := `{"type":"result","is_error":false,"result":"claude says hi"}`
	claudeStream := strings.Join([]string{
		`{"type":"system","subtype":"init"}`,
		`{"type":"assistant","message":{"content":[{"type":"text","text":"partial"}]}}`,
		`{"type":"result","result":"final answer"}`,
	}, "\n")
	codexStream := strings.Join([]string{
		`{"type":"thread.started"}`,
		`{"type":"item.completed","item":{"type":"reasoning","text":"thinking"}}`,
		`{"type":"item.completed","item":{"type":"agent_message","text":"first"}}`,
		`{"type":"item.completed","item":{"type":"agent_message","text":"codex final"}}`,
		`{"type":"turn.completed"}`,
	}, "\n")

	tests := []struct {
		name     string
		strategy string
		raw      string
		want     string
	}{
		{name: "claude json envelope", strategy: StrategyClaude, raw: claudeEnvelope, want: "claude says hi"},
		{name: "claude stream json", strategy: StrategyClaude, raw: claudeStream, want: "final answer"},
		{name: "claude plain text fallback", strategy: StrategyClaude, raw: "just text", want: "just text"},
		{name: "gemini envelope", strategy: StrategyGemini, raw: `{"response":"gemini text","stats":{}}`, want: "gemini text"},
		{name: "codex jsonl last agent message", strategy: StrategyCodex, raw: codexStream, want: "codex final"},
		{name: "codex legacy msg envelope", strategy: StrategyCodex, raw: `{"msg":{"type":"agent_message","message":"legacy"}}`, want: "legacy"},
		{name: "text identity", strategy: StrategyText, raw: `{"result":"kept as is"}`, want: `{"result":"kept as is"}`},
		{name: "unknown strategy uses common keys", strategy: "mystery", raw: `{"output":"generic"}`, want: "generic"},
	}

	n := New()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := n.Normalize(tt.strategy, success(tt.raw))
			if resp.Status != domain.StatusSuccess {
				t.Fatalf("status changed to %s", resp.Status)
			}
			if resp.Raw != tt.raw {
				t.Fatal("raw output was modified")
			}
			if resp.Parsed == nil || resp.Parsed.Text != tt.want {
				t.Fatalf("Parsed = %+v, want text %q", resp.Parsed, tt.want)
			}
		})
	}
}

func TestNormalizeRecoversAssessment(t *testing.T) {
	raw := `{"result":"Here is my review:\n` + "```json\\n" + strings.ReplaceAll(assessmentJSON, `"`, `\"`) + "\\n```" + `"}`
	resp := New().Normalize(StrategyClaude, success(raw))

	if resp.Parsed == nil || !resp.Parsed.Structured {
		t.Fatalf("expected structured assessment, got %+v", resp.Parsed)
	}
	a := resp.Parsed.Assessment
	if a.Scores[domain.DimensionCompleteness] != 8 || a.Scores[domain.DimensionRisk] != 6 {
		t.Fatalf("unexpected scores %v", a.Scores)
	}
	if _, ok := a.Scores[domain.DimensionVerification]; ok {
		t.Fatal("out-of-range score should be ignored")
	}
	if a.Verdict != domain.RecommendApprove {
		t.Fatalf("Verdict = %s", a.Verdict)
	}
	if len(a.Issues) != 2 || a.Issues[0].Severity != domain.SeverityHigh || a.Issues[0].Locations[0] != "deploy.md" {
		t.Fatalf("unexpected issues %+v", a.Issues)
	}
	if a.Issues[1].Severity != domain.SeverityMedium {
		t.Fatalf("string issue should default to medium, got %s", a.Issues[1].Severity)
	}
	if a.Summary != "Solid plan" {
		t.Fatalf("Summary = %q", a.Summary)
	}
}

func TestNormalizeLeavesFailuresAlone(t *testing.T) {
	n := New()
	for _, status := range []domain.Status{domain.StatusTimeout, domain.StatusNotFound, domain.StatusExecutionError} {
		resp := n.Normalize(StrategyText, domain.ToolResponse{Provider: "p", Status: status, Raw: "partial"})
		if resp.Parsed != nil {
			t.Errorf("%s: Parsed should stay nil", status)
		}
	}

	resp := n.Normalize(StrategyText, domain.ToolResponse{Provider: "p", Status: domain.StatusInvalidOutput})
	if resp.Parsed != nil || resp.Status != domain.StatusInvalidOutput {
		t.Fatalf("empty invalid output should stay unparsed, got %+v", resp)
	}
}

func TestNormalizePlainTextHasNoAssessment(t *testing.T) {
	resp := New().Normalize(StrategyText, success("I think the plan is fine."))
	if resp.Parsed.Structured || resp.Parsed.Assessment != nil {
		t.Fatalf("plain text should not be structured: %+v", resp.Parsed)
	}
}

func TestRegisterStrategy(t *testing.T) {
	n := New()
	n.Register("upper", func(raw string) (string, bool) { return strings.ToUpper(raw), true })
	resp := n.Normalize("upper", success("shout"))
	if resp.Parsed.Text != "SHOUT" {
		t.Fatalf("Parsed.Text = %q", resp.Parsed.Text)
	}
	found := false
	for _, name := range n.Strategies() {
		if name == "upper" {
			found = true
		}
	}
	if !found {
		t.Fatal("registered strategy not listed")
	}
}

func TestParseAssessmentOverallOnly(t *testing.T) {
	a := ParseAssessment(`{"overall_score": 4.5, "recommendation": "needs_work"}`)
	if a == nil || a.Overall == nil || *a.Overall != 4.5 {
		t.Fatalf("unexpected assessment %+v", a)
	}
	if a.Verdict != domain.RecommendRevise {
		t.Fatalf("Verdict = %s", a.Verdict)
	}
	if a.HasScores() != true {
		t.Fatal("overall score should count as scored")
	}
}

func TestParseAssessmentAliasPrecedence(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		dim  domain.Dimension
		want float64
	}{
		{"canonical beats alias", `{"scores":{"architecture":9,"design":2}}`, domain.DimensionArchitecture, 9},
		{"canonical beats aliases listed first", `{"scores":{"testing":3,"testability":4,"verification":7}}`, domain.DimensionVerification, 7},
		{"first alias in key order", `{"scores":{"risks":6,"risk_assessment":2}}`, domain.DimensionRisk, 2},
		{"canonical in an earlier container", `{"scores":{"risk":5},"ratings":{"risk":9}}`, domain.DimensionRisk, 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for i := 0; i < 50; i++ {
				a := ParseAssessment(tt.raw)
				if a == nil {
					t.Fatal("expected an assessment")
				}
				if got := a.Scores[tt.dim]; got != tt.want {
					t.Fatalf("run %d: %s = %v, want %v", i, tt.dim, got, tt.want)
				}
			}
		})
	}
}
