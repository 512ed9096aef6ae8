package server

// Tool represents an MCP tool definition
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

// GetToolDefinitions returns all available tools
func GetToolDefinitions() []Tool {
	return []Tool{
		// Conversion
		{
			Name:        "blocks_convert",
			Description: "Convert an image into a grid of palette blocks. Returns a PNG preview, per-block usage counts and an id for fetching the full grid later. Provide either path or image_base64.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": map[string]interface{}{
						"type":        "string",
						"description": "Absolute path to the image file",
					},
					"image_base64": map[string]interface{}{
						"type":        "string",
						"description": "Base64-encoded image bytes; a data: URL prefix is accepted",
					},
					"grid_size": map[string]interface{}{
						"type":        "integer",
						"description": "Maximum grid width and height in blocks. Aspect ratio is preserved. Default 100",
						"default":     100,
					},
					"num_colors": map[string]interface{}{
						"type":        "integer",
						"description": "Color clusters used before matching large images; medium images use three quarters. Default 32",
						"default":     32,
					},
					"output_scale": map[string]interface{}{
						"type":        "integer",
						"description": "Preview pixels per block. Cell boundaries are drawn above 3. Default 4",
						"default":     4,
					},
					"include_grid": map[string]interface{}{
						"type":        "boolean",
						"description": "Include the full block grid in the response. Default false",
						"default":     false,
					},
					"output_path": map[string]interface{}{
						"type":        "string",
						"description": "Optional path to write the PNG preview to instead of returning it inline",
					},
				},
			},
		},
		{
			Name:        "blocks_get_result",
			Description: "Fetch a recent conversion result by id. The most recent results are kept in memory.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"id": map[string]interface{}{
						"type":        "string",
						"description": "Result id returned by blocks_convert",
					},
					"include_grid": map[string]interface{}{
						"type":        "boolean",
						"description": "Include the full block grid. Default true",
						"default":     true,
					},
					"include_image": map[string]interface{}{
						"type":        "boolean",
						"description": "Include the PNG preview. Default false",
						"default":     false,
					},
				},
				"required": []string{"id"},
			},
		},

		// Palette
		{
			Name:        "blocks_palette",
			Description: "List the block catalog in match order with colors and flags, or look up one block by name.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"name": map[string]interface{}{
						"type":        "string",
						"description": "Exact block name to return instead of the whole catalog",
					},
				},
			},
		},
		{
			Name:        "blocks_match_color",
			Description: "Find the block whose color is perceptually closest to a given color, applying the same biases as conversion.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"color": map[string]interface{}{
						"type":        "string",
						"description": "Hex color like #A02722",
					},
					"r": map[string]interface{}{
						"type":        "integer",
						"description": "Red component (0-255), used when color is not given",
					},
					"g": map[string]interface{}{
						"type":        "integer",
						"description": "Green component (0-255)",
					},
					"b": map[string]interface{}{
						"type":        "integer",
						"description": "Blue component (0-255)",
					},
				},
			},
		},

		// Diagnostics
		{
			Name:        "blocks_stats",
			Description: "Report result cache, color match memo and stored result statistics.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{},
			},
		},
		{
			Name:        "blocks_clear_cache",
			Description: "Drop all cached results, remembered color matches and stored results.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{},
			},
		},
	}
}

// handleToolsList returns the list of available tools
func (s *Server) handleToolsList(req *MCPRequest) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"tools": GetToolDefinitions(),
		},
	}
}
