package llm

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/deckhand-ai/deckhand/internal/core"
)

func simModel() core.ModelDescriptor {
	return core.ModelDescriptor{
		Name:         "sim-fast",
		Kind:         core.BackendSimulated,
		Capabilities: []string{core.CapabilityGeneral},
	}
}

func TestSimCaller_ResearchDeterministic(t *testing.T) {
	t.Parallel()
	caller := NewSimCaller(simModel())
	prompt := "ROLE: researcher\nTOPIC: quantum computing\n"

	first, err := caller.Call(context.Background(), prompt, CallOptions{})
	if err != nil {
		t.Fatalf("Call() error = %v", err)
	}
	second, err := caller.Call(context.Background(), prompt, CallOptions{})
	if err != nil {
		t.Fatalf("Call() error = %v", err)
	}
	if first != second {
		t.Error("expected identical output for identical prompt")
	}

	var result core.ResearchResult
	if err := json.Unmarshal([]byte(first), &result); err != nil {
		t.Fatalf("response is not valid JSON: %v", err)
	}
	if result.Topic != "quantum computing" {
		t.Errorf("topic = %q, want quantum computing", result.Topic)
	}
	if len(result.Snippets) == 0 {
		t.Error("expected at least one snippet")
	}
	for _, sn := range result.Snippets {
		if sn.Confidence < 0 || sn.Confidence > 1 {
			t.Errorf("confidence %f outside [0,1]", sn.Confidence)
		}
	}
}

func TestSimCaller_StructureSlideSum(t *testing.T) {
	t.Parallel()
	caller := NewSimCaller(simModel())

	for _, body := range []int{1, 3, 7, 12, 45} {
		prompt := "ROLE: structurer\nTOPIC: ocean currents\nBODY_SLIDES: " +
			jsonNumber(body) + "\n"
		out, err := caller.Call(context.Background(), prompt, CallOptions{})
		if err != nil {
			t.Fatalf("Call() error = %v", err)
		}
		var result core.OutlineResult
		if err := json.Unmarshal([]byte(out), &result); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if got := result.Outline.TotalSlides(); got != body {
			t.Errorf("body=%d: section estimates sum to %d", body, got)
		}
	}
}

func TestSimCaller_WriterSlideCount(t *testing.T) {
	t.Parallel()
	caller := NewSimCaller(simModel())
	prompt := "ROLE: writer\nSECTION_ID: sec-2\nSECTION_TITLE: Background\nSLIDES: 3\n"

	out, err := caller.Call(context.Background(), prompt, CallOptions{})
	if err != nil {
		t.Fatalf("Call() error = %v", err)
	}
	var result core.SectionResult
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if result.SectionID != "sec-2" {
		t.Errorf("section ID = %q", result.SectionID)
	}
	if len(result.Slides) != 3 {
		t.Errorf("slide count = %d, want 3", len(result.Slides))
	}
	for _, sl := range result.Slides {
		if !sl.HasHeading() {
			t.Errorf("slide %s has no heading", sl.ID)
		}
	}
}

func TestSimCaller_UnknownRole(t *testing.T) {
	t.Parallel()
	caller := NewSimCaller(simModel())
	_, err := caller.Call(context.Background(), "ROLE: bogus\n", CallOptions{})
	if err == nil {
		t.Fatal("expected error for unknown role")
	}
}

func TestSimCaller_CancelledContext(t *testing.T) {
	t.Parallel()
	caller := NewSimCaller(simModel())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := caller.Call(ctx, "ROLE: researcher\nTOPIC: x\n", CallOptions{})
	if err == nil {
		t.Fatal("expected error for cancelled context")
	}
}

func jsonNumber(n int) string {
	b, _ := json.Marshal(n)
	return string(b)
}
