package mcp

// getTools returns the tool schemas advertised to an MCP client: the
// engine's introspection surface, nothing else.
func (s *Server) getTools() []map[string]interface{} {
	return []map[string]interface{}{
		{
			"name":        "list_fmis",
			"description": "List every function the engine has tracked, with its memoizability status and call/hit/miss counts",
			"inputSchema": map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{},
			},
		},
		{
			"name":        "fmi_detail",
			"description": "Show the full memoization record for one function: status, disqualification reason if any, and statistics",
			"inputSchema": map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"canonical": map[string]interface{}{
						"type":        "string",
						"description": "Canonical function name, e.g. \"square [/app/main.lua]\"",
					},
				},
				"required": []string{"canonical"},
			},
		},
		{
			"name":        "cache_stats",
			"description": "Show aggregate statistics across every tracked function: total calls, hits, misses, and memoizability breakdown",
			"inputSchema": map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{},
			},
		},
		{
			"name":        "clear_cache",
			"description": "Clear the on-disk cache. With no arguments, clears everything; with a canonical name, clears only that function",
			"inputSchema": map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"canonical": map[string]interface{}{
						"type":        "string",
						"description": "Optional: clear only this function's cache entries",
					},
				},
			},
		},
	}
}
