package agent

import (
	"encoding/json"
	"regexp"
	"strings"
)

// ToolCall is one tool invocation the model asked for.
type ToolCall struct {
	Tool       string         `json:"tool"`
	Parameters map[string]any `json:"parameters"`
}

var fencedBlockRegexp = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```")

// ExtractToolCalls pulls tool invocations out of a model reply. Small models
// rarely emit clean JSON, so two passes run: fenced code blocks first, then a
// raw brace scan over the remaining text. The returned narrative is the reply
// with the extracted JSON removed.
func ExtractToolCalls(reply string) (calls []ToolCall, narrative string) {
	remaining := reply

	for _, m := range fencedBlockRegexp.FindAllStringSubmatch(reply, -1) {
		found := parseCandidates(m[1])
		if len(found) > 0 {
			calls = append(calls, found...)
			remaining = strings.Replace(remaining, m[0], "", 1)
		}
	}

	cleaned, scanned := scanBraces(remaining)
	calls = append(calls, scanned...)

	return calls, strings.TrimSpace(cleaned)
}

// parseCandidates tries a block as a single call, an array of calls, or
// line-delimited objects.
func parseCandidates(block string) []ToolCall {
	block = strings.TrimSpace(block)
	if block == "" {
		return nil
	}

	var one ToolCall
	if err := json.Unmarshal([]byte(block), &one); err == nil && one.Tool != "" {
		return []ToolCall{normalize(one)}
	}

	var many []ToolCall
	if err := json.Unmarshal([]byte(block), &many); err == nil {
		out := make([]ToolCall, 0, len(many))
		for _, c := range many {
			if c.Tool != "" {
				out = append(out, normalize(c))
			}
		}
		return out
	}

	var out []ToolCall
	for _, line := range strings.Split(block, "\n") {
		var c ToolCall
		if err := json.Unmarshal([]byte(strings.TrimSpace(line)), &c); err == nil && c.Tool != "" {
			out = append(out, normalize(c))
		}
	}
	return out
}

// scanBraces walks the text finding balanced {...} spans that decode into
// tool calls, respecting strings and escapes. Matched spans are removed.
func scanBraces(text string) (string, []ToolCall) {
	var calls []ToolCall
	var b strings.Builder
	i := 0
	for i < len(text) {
		if text[i] != '{' {
			b.WriteByte(text[i])
			i++
			continue
		}
		end := matchBrace(text, i)
		if end < 0 {
			b.WriteByte(text[i])
			i++
			continue
		}
		span := text[i : end+1]
		var c ToolCall
		if err := json.Unmarshal([]byte(span), &c); err == nil && c.Tool != "" {
			calls = append(calls, normalize(c))
			i = end + 1
			continue
		}
		b.WriteByte(text[i])
		i++
	}
	return b.String(), calls
}

// matchBrace returns the index of the brace closing the one at start, or -1.
func matchBrace(text string, start int) int {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

func normalize(c ToolCall) ToolCall {
	c.Tool = strings.TrimSpace(c.Tool)
	if c.Parameters == nil {
		c.Parameters = map[string]any{}
	}
	return c
}
