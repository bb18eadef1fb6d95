package provider

import "strings"

const (
	thinkOpenTag  = "<think>"
	thinkCloseTag = "</think>"
	// lookaheadLen is the longest tag length minus one: enough trailing
	// bytes must always be held back that a tag split across two chunks
	// can still be recognized once the next chunk arrives.
	lookaheadLen = len(thinkCloseTag) - 1
)

type reasoningState int

const (
	reasoningIdle reasoningState = iota
	reasoningAccumulating
	reasoningFinished
)

// ExtractedChunk is the content/reasoning split produced by one Feed call.
// Either field, or both, may be empty.
type ExtractedChunk struct {
	Content   string
	Reasoning string
}

// ReasoningExtractor routes `<think>...\n</think>\n`-delimited text out of
// a provider's plain content stream into separate reasoning chunks. It
// holds back up to lookaheadLen bytes between calls so a tag split across
// two wire chunks is never missed.
type ReasoningExtractor struct {
	state reasoningState
	held  string
}

// NewReasoningExtractor constructs an extractor in its Idle state.
func NewReasoningExtractor() *ReasoningExtractor {
	return &ReasoningExtractor{}
}

// Feed processes one chunk of plain content, returning whatever content
// and reasoning text is now safe to emit.
func (r *ReasoningExtractor) Feed(chunk string) ExtractedChunk {
	if r.state == reasoningFinished {
		return ExtractedChunk{Content: chunk}
	}

	buf := r.held + chunk
	r.held = ""
	var out ExtractedChunk

	for {
		switch r.state {
		case reasoningIdle:
			idx := strings.Index(buf, thinkOpenTag)
			if idx == -1 {
				out.Content += r.holdTail(&buf)
				return out
			}
			out.Content += buf[:idx]
			buf = buf[idx+len(thinkOpenTag):]
			r.state = reasoningAccumulating

		case reasoningAccumulating:
			idx := strings.Index(buf, thinkCloseTag)
			if idx == -1 {
				out.Reasoning += r.holdTail(&buf)
				return out
			}
			out.Reasoning += buf[:idx]
			buf = buf[idx+len(thinkCloseTag):]
			buf = strings.TrimPrefix(buf, "\n")
			r.state = reasoningFinished
			out.Content += buf
			return out

		default:
			return out
		}
	}
}

// holdTail keeps the last lookaheadLen bytes of buf unprocessed (in case
// they are the start of a split tag) and returns the safe prefix to emit,
// mutating buf to empty.
func (r *ReasoningExtractor) holdTail(buf *string) string {
	b := *buf
	*buf = ""
	if len(b) <= lookaheadLen {
		r.held = b
		return ""
	}
	split := len(b) - lookaheadLen
	r.held = b[split:]
	return b[:split]
}

// Finalize flushes any buffered, not-yet-emitted text at stream end. A
// stream that ends mid-Accumulating (an unterminated think block) flushes
// its held text as reasoning rather than discarding it.
func (r *ReasoningExtractor) Finalize() ExtractedChunk {
	var out ExtractedChunk
	switch r.state {
	case reasoningAccumulating:
		out.Reasoning = r.held
	default:
		out.Content = r.held
	}
	r.held = ""
	return out
}
