package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/pymemo-dev/pymemo/pkg/engine"
	"github.com/pymemo-dev/pymemo/pkg/fmi"
)

// EngineHandler implements Handler by answering tool calls directly from
// a live engine.Engine's introspection surface.
type EngineHandler struct {
	eng *engine.Engine
}

// NewEngineHandler returns a handler backed by eng.
func NewEngineHandler(eng *engine.Engine) *EngineHandler {
	return &EngineHandler{eng: eng}
}

// HandleRequest dispatches one tool call by name.
func (h *EngineHandler) HandleRequest(ctx context.Context, toolName string, params json.RawMessage) (interface{}, error) {
	var req map[string]interface{}
	if err := json.Unmarshal(params, &req); err != nil {
		return nil, err
	}
	arguments, _ := req["arguments"].(map[string]interface{})

	switch toolName {
	case "list_fmis":
		return h.listFMIs(), nil

	case "fmi_detail":
		canonical, _ := arguments["canonical"].(string)
		if canonical == "" {
			return nil, fmt.Errorf("fmi_detail requires a canonical argument")
		}
		return h.fmiDetail(canonical), nil

	case "cache_stats":
		return h.cacheStats(), nil

	case "clear_cache":
		canonical, _ := arguments["canonical"].(string)
		return h.clearCache(canonical)

	default:
		return nil, fmt.Errorf("unknown tool: %s", toolName)
	}
}

func (h *EngineHandler) listFMIs() map[string]interface{} {
	stats := h.eng.Stats()
	sort.Slice(stats, func(i, j int) bool { return stats[i].Canonical < stats[j].Canonical })

	var b strings.Builder
	if len(stats) == 0 {
		b.WriteString("no functions tracked yet\n")
	}
	for _, s := range stats {
		fmt.Fprintf(&b, "%-40s %-17s calls=%d hits=%d misses=%d\n", s.Canonical, s.Status, s.Calls, s.Hits, s.Misses)
	}
	return textResult(b.String())
}

func (h *EngineHandler) fmiDetail(canonical string) map[string]interface{} {
	for _, s := range h.eng.Stats() {
		if s.Canonical != canonical {
			continue
		}
		var b strings.Builder
		fmt.Fprintf(&b, "canonical: %s\n", s.Canonical)
		fmt.Fprintf(&b, "status: %s\n", s.Status)
		if s.Reason != "" {
			fmt.Fprintf(&b, "reason: %s\n", s.Reason)
		}
		fmt.Fprintf(&b, "calls: %d\nhits: %d\nmisses: %d\n", s.Calls, s.Hits, s.Misses)
		return textResult(b.String())
	}
	return textResult(fmt.Sprintf("no record for %s", canonical))
}

func (h *EngineHandler) cacheStats() map[string]interface{} {
	stats := h.eng.Stats()
	var calls, hits, misses uint64
	var memoizable, neverMemoizable int
	for _, s := range stats {
		calls += s.Calls
		hits += s.Hits
		misses += s.Misses
		switch s.Status {
		case fmi.StatusMemoizable:
			memoizable++
		case fmi.StatusNeverMemoizable:
			neverMemoizable++
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "tracked functions: %d\n", len(stats))
	fmt.Fprintf(&b, "memoizable: %d\n", memoizable)
	fmt.Fprintf(&b, "never memoizable: %d\n", neverMemoizable)
	fmt.Fprintf(&b, "calls: %d\nhits: %d\nmisses: %d\n", calls, hits, misses)
	return textResult(b.String())
}

func (h *EngineHandler) clearCache(canonical string) (map[string]interface{}, error) {
	if canonical == "" {
		if err := h.eng.ClearCache(); err != nil {
			return nil, err
		}
		return textResult("cleared the entire cache"), nil
	}
	if err := h.eng.ClearFunction(canonical); err != nil {
		return nil, err
	}
	return textResult(fmt.Sprintf("cleared cache for %s", canonical)), nil
}

func textResult(text string) map[string]interface{} {
	return map[string]interface{}{
		"content": []map[string]interface{}{
			{"type": "text", "text": text},
		},
	}
}
