// Package textproc separates model reasoning from visible output and
// recovers JSON payloads that models wrap in prose.
package textproc

import (
	"strings"
)

// Result holds the visible text left after reasoning removal and the
// reasoning entries that were removed, in first-seen order.
type Result struct {
	Cleaned  string
	Thoughts []string
}

// delimited reasoning tags, longest first so <thinking> wins over <think>.
var reasoningTags = []string{"thinking", "reasoning", "think"}

// line prefixes that mark single-line reasoning.
var reasoningPrefixes = []string{"thought:", "thinking:", "reasoning:"}

// Extract removes reasoning annotations from raw model text. Removal
// order: delimited blocks, then comment blocks, then prefixed lines.
// Code fences are unwrapped afterwards so fenced content survives as
// plain text. Extract is idempotent: running it on its own Cleaned
// output yields the same text and no thoughts.
func Extract(raw string) Result {
	cleaned, thoughts := stripDelimited(raw)

	cleaned, more := stripComments(cleaned)
	thoughts = append(thoughts, more...)

	cleaned, more = stripPrefixedLines(cleaned)
	thoughts = append(thoughts, more...)

	cleaned = unwrapFences(cleaned)

	return Result{
		Cleaned:  strings.TrimSpace(cleaned),
		Thoughts: thoughts,
	}
}

// stripDelimited removes <think>/<thinking>/<reasoning> blocks,
// tolerating nesting and an unclosed opener at the end of the buffer
// (streaming output routinely truncates mid-block).
func stripDelimited(s string) (string, []string) {
	var thoughts []string
	var b strings.Builder
	lower := strings.ToLower(s)

	i := 0
	for i < len(s) {
		tag, start := nextOpenTag(lower, i)
		if start < 0 {
			b.WriteString(s[i:])
			break
		}
		b.WriteString(s[i:start])

		open := "<" + tag + ">"
		close := "</" + tag + ">"
		inner, next := matchBlock(lower, start+len(open), open, close)
		appendThought(&thoughts, s[start+len(open):inner])
		i = next
	}
	return b.String(), thoughts
}

// nextOpenTag finds the earliest reasoning opener at or after i.
func nextOpenTag(lower string, i int) (string, int) {
	best := -1
	var bestTag string
	for _, tag := range reasoningTags {
		if at := strings.Index(lower[i:], "<"+tag+">"); at >= 0 {
			pos := i + at
			if best < 0 || pos < best {
				best = pos
				bestTag = tag
			}
		}
	}
	return bestTag, best
}

// matchBlock scans from pos for the closer, counting nested openers of
// the same tag. Returns the end of the inner content and the resume
// position after the closer. An unclosed block runs to the end.
func matchBlock(lower string, pos int, open, close string) (innerEnd, resume int) {
	depth := 1
	for pos < len(lower) {
		nextOpen := strings.Index(lower[pos:], open)
		nextClose := strings.Index(lower[pos:], close)
		if nextClose < 0 {
			return len(lower), len(lower)
		}
		if nextOpen >= 0 && nextOpen < nextClose {
			depth++
			pos += nextOpen + len(open)
			continue
		}
		depth--
		if depth == 0 {
			return pos + nextClose, pos + nextClose + len(close)
		}
		pos += nextClose + len(close)
	}
	return len(lower), len(lower)
}

// stripComments removes HTML comments whose content starts with a
// reasoning marker. Ordinary comments are left alone so legitimate
// markup survives.
func stripComments(s string) (string, []string) {
	var thoughts []string
	var b strings.Builder

	i := 0
	for i < len(s) {
		start := strings.Index(s[i:], "<!--")
		if start < 0 {
			b.WriteString(s[i:])
			break
		}
		start += i
		end := strings.Index(s[start+4:], "-->")
		if end < 0 {
			b.WriteString(s[i:])
			break
		}
		end += start + 4

		inner := s[start+4 : end]
		if isReasoningComment(inner) {
			b.WriteString(s[i:start])
			appendThought(&thoughts, trimReasoningPrefix(strings.TrimSpace(inner)))
		} else {
			b.WriteString(s[i : end+3])
		}
		i = end + 3
	}
	return b.String(), thoughts
}

func isReasoningComment(inner string) bool {
	t := strings.ToLower(strings.TrimSpace(inner))
	for _, p := range []string{"think", "thought", "reasoning"} {
		if strings.HasPrefix(t, p) {
			return true
		}
	}
	return false
}

// stripPrefixedLines removes whole lines led by Thought:/Thinking:/
// Reasoning: markers.
func stripPrefixedLines(s string) (string, []string) {
	var thoughts []string
	lines := strings.Split(s, "\n")
	kept := lines[:0]
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		lower := strings.ToLower(trimmed)
		matched := false
		for _, p := range reasoningPrefixes {
			if strings.HasPrefix(lower, p) {
				appendThought(&thoughts, trimmed[len(p):])
				matched = true
				break
			}
		}
		if !matched {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n"), thoughts
}

// trimReasoningPrefix drops the marker word (and optional colon) from a
// collected comment so the thought reads as plain text.
func trimReasoningPrefix(t string) string {
	lower := strings.ToLower(t)
	for _, p := range []string{"thinking", "thought", "think", "reasoning"} {
		if strings.HasPrefix(lower, p) {
			rest := t[len(p):]
			rest = strings.TrimPrefix(rest, ":")
			return rest
		}
	}
	return t
}

// unwrapFences drops code-fence marker lines, keeping the fenced
// content. A fence line is ``` optionally followed by a language tag.
func unwrapFences(s string) string {
	lines := strings.Split(s, "\n")
	kept := lines[:0]
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "```") && !strings.ContainsAny(strings.TrimPrefix(trimmed, "```"), " \t<>") {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}

func appendThought(thoughts *[]string, t string) {
	t = strings.TrimSpace(t)
	if t != "" {
		*thoughts = append(*thoughts, t)
	}
}
