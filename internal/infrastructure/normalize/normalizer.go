// Package normalize turns heterogeneous provider output into one envelope.
//
// Each provider wraps its answer differently (a JSON object with a result
// field, a JSONL event stream, bare text). A strategy unwraps the envelope to
// the inner text; a shared parser then recovers the structured assessment
// from that text when the provider followed the requested JSON shape.
package normalize

import (
	"sort"
	"strings"
	"sync"

	"github.com/doeshing/sage-go/internal/domain"
	"github.com/doeshing/sage-go/internal/pkg/jsonx"
	"github.com/doeshing/sage-go/internal/ports"
)

// UnwrapFunc extracts the inner text from raw provider output. ok is false
// when the output does not have the expected shape.
type UnwrapFunc func(raw string) (text string, ok bool)

// Strategy names registered by default.
const (
	StrategyClaude = "claude"
	StrategyGemini = "gemini"
	StrategyCodex  = "codex"
	StrategyText   = "text"
)

// Normalizer holds the unwrap strategy table.
type Normalizer struct {
	mu         sync.RWMutex
	strategies map[string]UnwrapFunc
}

// New returns a normalizer with the built-in strategies.
func New() *Normalizer {
	return &Normalizer{
		strategies: map[string]UnwrapFunc{
			StrategyClaude: unwrapClaude,
			StrategyGemini: unwrapGemini,
			StrategyCodex:  unwrapCodex,
			StrategyText:   unwrapText,
		},
	}
}

// Register adds or replaces a strategy.
func (n *Normalizer) Register(name string, fn UnwrapFunc) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.strategies[name] = fn
}

// Strategies lists registered strategy names.
func (n *Normalizer) Strategies() []string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	names := make([]string, 0, len(n.strategies))
	for name := range n.strategies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Normalize fills resp.Parsed for success and invalid_output responses.
// Status, Raw and every other field are left untouched.
func (n *Normalizer) Normalize(strategy string, resp domain.ToolResponse) domain.ToolResponse {
	if resp.Status != domain.StatusSuccess && resp.Status != domain.StatusInvalidOutput {
		return resp
	}

	text := n.unwrap(strategy, resp.Raw)
	if resp.Status == domain.StatusInvalidOutput && text == "" {
		return resp
	}

	parsed := &domain.ParsedContent{Text: text, Empty: text == ""}
	if assessment := ParseAssessment(text); assessment != nil {
		parsed.Assessment = assessment
		parsed.Structured = true
	}
	resp.Parsed = parsed
	return resp
}

func (n *Normalizer) unwrap(strategy, raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}
	n.mu.RLock()
	fn, ok := n.strategies[strategy]
	n.mu.RUnlock()
	if !ok {
		fn = unwrapGeneric
	}
	if text, ok := fn(trimmed); ok {
		return strings.TrimSpace(text)
	}
	return trimmed
}

var _ ports.Normalizer = (*Normalizer)(nil)

func unwrapText(raw string) (string, bool) {
	return raw, true
}

// unwrapClaude handles {"result": ...} from --output-format json and the
// final "result" event of stream-json output.
func unwrapClaude(raw string) (string, bool) {
	if obj, ok := jsonx.Decode[map[string]interface{}](raw); ok {
		if text, ok := jsonx.String(obj["result"]); ok {
			return text, true
		}
	}
	var assistant strings.Builder
	var result string
	for _, event := range jsonx.Lines(raw) {
		switch event["type"] {
		case "result":
			if text, ok := jsonx.String(event["result"]); ok {
				result = text
			}
		case "assistant":
			assistant.WriteString(contentText(event["message"]))
		}
	}
	if result != "" {
		return result, true
	}
	if assistant.Len() > 0 {
		return assistant.String(), true
	}
	return "", false
}

func unwrapGemini(raw string) (string, bool) {
	obj, ok := jsonx.Decode[map[string]interface{}](raw)
	if !ok {
		return "", false
	}
	if text, ok := jsonx.String(obj["response"]); ok {
		return text, true
	}
	return "", false
}

// unwrapCodex takes the last agent message of a JSONL event stream. Both the
// item.completed and the older msg envelope are understood.
func unwrapCodex(raw string) (string, bool) {
	var last string
	for _, event := range jsonx.Lines(raw) {
		if item, ok := event["item"].(map[string]interface{}); ok {
			itemType, _ := item["type"].(string)
			if itemType == "agent_message" || itemType == "assistant_message" {
				if text, ok := jsonx.String(item["text"]); ok {
					last = text
				}
			}
			continue
		}
		if msg, ok := event["msg"].(map[string]interface{}); ok {
			if msg["type"] == "agent_message" {
				if text, ok := jsonx.String(msg["message"]); ok {
					last = text
				}
			}
		}
	}
	return last, last != ""
}

func unwrapGeneric(raw string) (string, bool) {
	obj, ok := jsonx.Decode[map[string]interface{}](raw)
	if !ok {
		return raw, true
	}
	for _, key := range []string{"result", "response", "content", "output", "text"} {
		if text, ok := jsonx.String(obj[key]); ok {
			return text, true
		}
	}
	return raw, true
}

func contentText(message interface{}) string {
	msg, ok := message.(map[string]interface{})
	if !ok {
		return ""
	}
	blocks, ok := msg["content"].([]interface{})
	if !ok {
		return ""
	}
	var b strings.Builder
	for _, block := range blocks {
		m, ok := block.(map[string]interface{})
		if !ok || m["type"] != "text" {
			continue
		}
		if text, ok := m["text"].(string); ok {
			b.WriteString(text)
		}
	}
	return b.String()
}
