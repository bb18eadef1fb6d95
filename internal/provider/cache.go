package provider

// CacheBlock names one of the candidate locations a cache breakpoint may
// be placed on, in priority order (highest value first).
type CacheBlock string

const (
	CacheBlockLastToolDefinition CacheBlock = "last_tool_definition"
	CacheBlockSystemPrompt       CacheBlock = "system_prompt"
	CacheBlockInstructions       CacheBlock = "instructions"
	CacheBlockAttachments        CacheBlock = "attachments"
	CacheBlockLastHistoryMessage CacheBlock = "last_history_message"
)

// cachePriority is the fixed priority order spec 4.D assigns cache
// breakpoints in: last tool definition, system prompt, instructions,
// attachments, last history message.
var cachePriority = []CacheBlock{
	CacheBlockLastToolDefinition,
	CacheBlockSystemPrompt,
	CacheBlockInstructions,
	CacheBlockAttachments,
	CacheBlockLastHistoryMessage,
}

// AssignCacheBreakpoints picks which of the present blocks receive a
// cache breakpoint, in priority order, never exceeding cap. present
// reports which blocks actually exist in this request (e.g. a thread
// with no attachments has no CacheBlockAttachments candidate).
func AssignCacheBreakpoints(present map[CacheBlock]bool, cap int) []CacheBlock {
	if cap <= 0 {
		return nil
	}
	assigned := make([]CacheBlock, 0, cap)
	for _, block := range cachePriority {
		if len(assigned) >= cap {
			break
		}
		if present[block] {
			assigned = append(assigned, block)
		}
	}
	return assigned
}
