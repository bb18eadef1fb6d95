package provider

import "testing"

// feedAll drives r across every chunk plus Finalize and concatenates the
// emitted content/reasoning, so a split-chunk round trip can be compared
// against feeding the same text in a single call.
func feedAll(r *ReasoningExtractor, chunks ...string) ExtractedChunk {
	var out ExtractedChunk
	for _, c := range chunks {
		piece := r.Feed(c)
		out.Content += piece.Content
		out.Reasoning += piece.Reasoning
	}
	final := r.Finalize()
	out.Content += final.Content
	out.Reasoning += final.Reasoning
	return out
}

// TestReasoningExtractorRoundTrip is Testable Property 4: whatever chunk
// boundaries the wire delivers a <think> block across, the recovered
// content/reasoning split is the same as feeding the whole text at once.
func TestReasoningExtractorRoundTrip(t *testing.T) {
	text := "before<think>hidden reasoning</think>\nafter"

	whole := feedAll(NewReasoningExtractor(), text)

	cases := [][]string{
		{text},
		{"before<think", ">hidden reasoning</think>\nafter"},
		{"before<think>hidden ", "reasoning</thi", "nk>\nafter"},
		{"before", "<think>", "hidden reasoning", "</think>", "\nafter"},
	}
	for i, chunks := range cases {
		got := feedAll(NewReasoningExtractor(), chunks...)
		if got != whole {
			t.Errorf("case %d (%v): got %+v, want %+v", i, chunks, got, whole)
		}
	}
}

func TestReasoningExtractorNoThinkBlockPassesContentThrough(t *testing.T) {
	got := feedAll(NewReasoningExtractor(), "just ", "plain ", "content")
	want := ExtractedChunk{Content: "just plain content"}
	if got != want {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestReasoningExtractorUnterminatedBlockFlushesAsReasoning(t *testing.T) {
	r := NewReasoningExtractor()
	piece := r.Feed("<think>never closes")
	if piece.Content != "" || piece.Reasoning != "never" {
		t.Fatalf("expected all but the held-back tail emitted as reasoning, got %+v", piece)
	}
	final := r.Finalize()
	if final.Reasoning != " closes" || final.Content != "" {
		t.Fatalf("expected the held tail flushed as reasoning, got %+v", final)
	}
}

func TestReasoningExtractorContentAfterFinishedPassesThroughUntouched(t *testing.T) {
	r := NewReasoningExtractor()
	r.Feed("<think>x</think>\n")
	got := r.Feed("<think>looks like a tag but isn't one anymore</think>")
	want := ExtractedChunk{Content: "<think>looks like a tag but isn't one anymore</think>"}
	if got != want {
		t.Fatalf("expected content to pass through verbatim once Finished, got %+v", got)
	}
}
