package server

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"image/color"
	"os"
	"strings"

	"github.com/ironsheep/block-art-mcp/internal/blocks"
	"github.com/ironsheep/block-art-mcp/internal/cache"
	"github.com/ironsheep/block-art-mcp/internal/imaging"
	"github.com/ironsheep/block-art-mcp/internal/palette"
)

// ToolCallParams represents the parameters for a tools/call MCP request.
type ToolCallParams struct {
	// Name is the tool to invoke (e.g., "blocks_convert").
	Name string `json:"name"`

	// Arguments contains the tool-specific parameters as JSON.
	Arguments json.RawMessage `json:"arguments"`
}

// argumentError reports tool arguments that are malformed or inconsistent.
type argumentError struct {
	msg string
}

func (e *argumentError) Error() string {
	return e.msg
}

func argErrorf(format string, args ...any) error {
	return &argumentError{msg: fmt.Sprintf(format, args...)}
}

// handleToolsCall processes a tools/call request and executes the specified tool.
//
// The response wraps the tool result in MCP's content format:
//
//	{
//	  "content": [{"type": "text", "text": "<JSON result>"}]
//	}
//
// Bad arguments, including invalid conversion parameters, return code -32602.
// Other tool failures return code -32000 with the error message as data.
func (s *Server) handleToolsCall(req *MCPRequest) *MCPResponse {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return s.errorResponse(req.ID, codeInvalidParams, "Invalid params", err.Error())
	}

	result, err := s.executeTool(params.Name, params.Arguments)
	if err != nil {
		if isArgumentError(err) {
			return s.errorResponse(req.ID, codeInvalidParams, "Invalid params", err.Error())
		}
		s.logger.Printf("Tool %s failed: %v", params.Name, err)
		return s.errorResponse(req.ID, codeToolFailure, "Tool execution failed", err.Error())
	}

	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"content": []map[string]interface{}{
				{
					"type": "text",
					"text": mustMarshalJSON(result),
				},
			},
		},
	}
}

func isArgumentError(err error) bool {
	var argErr *argumentError
	var paramErr *blocks.ParamError
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	return errors.As(err, &argErr) || errors.As(err, &paramErr) ||
		errors.As(err, &syntaxErr) || errors.As(err, &typeErr)
}

// executeTool dispatches tool execution to the appropriate handler function.
func (s *Server) executeTool(name string, args json.RawMessage) (interface{}, error) {
	if len(args) == 0 {
		args = json.RawMessage("{}")
	}

	switch name {
	// Conversion
	case "blocks_convert":
		return s.handleBlocksConvert(args)
	case "blocks_get_result":
		return s.handleBlocksGetResult(args)

	// Palette
	case "blocks_palette":
		return s.handleBlocksPalette(args)
	case "blocks_match_color":
		return s.handleBlocksMatchColor(args)

	// Diagnostics
	case "blocks_stats":
		return s.handleBlocksStats(args)
	case "blocks_clear_cache":
		return s.handleBlocksClearCache(args)

	default:
		return nil, argErrorf("unknown tool: %s", name)
	}
}

// errorResponse creates a JSON-RPC error response with the given details.
func (s *Server) errorResponse(id interface{}, code int, message, data string) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error: &MCPError{
			Code:    code,
			Message: message,
			Data:    data,
		},
	}
}

// mustMarshalJSON converts a value to pretty-printed JSON string.
// Panics are suppressed; on marshal failure, returns an empty string.
func mustMarshalJSON(v interface{}) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

// === Conversion Handlers ===

// resultResponse is the tool-facing view of a conversion result.
type resultResponse struct {
	ID             string            `json:"id"`
	Cached         bool              `json:"cached"`
	GridSize       blocks.Dimensions `json:"gridSize"`
	BlockCount     blocks.Counts     `json:"blockCount"`
	TotalBlocks    int               `json:"totalBlocks"`
	ProcessingTime float64           `json:"processingTime"`
	ImageData      []byte            `json:"imageData,omitempty"`
	MimeType       string            `json:"mimeType,omitempty"`
	OutputPath     string            `json:"outputPath,omitempty"`
	BlockGrid      blocks.Grid       `json:"blockGrid,omitempty"`
}

func newResultResponse(res *blocks.Result, includeImage, includeGrid bool) *resultResponse {
	resp := &resultResponse{
		ID:             res.ID,
		Cached:         res.FromCache,
		GridSize:       res.GridSize,
		BlockCount:     res.BlockCount,
		TotalBlocks:    res.BlockCount.Total(),
		ProcessingTime: res.ProcessingTime,
	}
	if includeImage {
		resp.ImageData = res.ImageData
		resp.MimeType = "image/png"
	}
	if includeGrid {
		resp.BlockGrid = res.BlockGrid
	}
	return resp
}

type blocksConvertArgs struct {
	Path        string `json:"path"`
	ImageBase64 string `json:"image_base64"`
	GridSize    int    `json:"grid_size"`
	NumColors   int    `json:"num_colors"`
	OutputScale int    `json:"output_scale"`
	IncludeGrid bool   `json:"include_grid"`
	OutputPath  string `json:"output_path"`
}

func (s *Server) handleBlocksConvert(args json.RawMessage) (interface{}, error) {
	var a blocksConvertArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}

	data, err := readSource(a.Path, a.ImageBase64)
	if err != nil {
		return nil, err
	}

	res, err := s.converter.Convert(data, blocks.Params{
		GridSize: a.GridSize,
		Colors:   a.NumColors,
		Scale:    a.OutputScale,
	})
	if err != nil {
		return nil, err
	}
	s.results.Put(res)

	resp := newResultResponse(res, a.OutputPath == "", a.IncludeGrid)
	if a.OutputPath != "" {
		if err := os.WriteFile(a.OutputPath, res.ImageData, 0o644); err != nil {
			return nil, fmt.Errorf("failed to write preview: %w", err)
		}
		resp.OutputPath = a.OutputPath
	}
	return resp, nil
}

// readSource returns the image bytes from exactly one of path or b64.
func readSource(path, b64 string) ([]byte, error) {
	switch {
	case path != "" && b64 != "":
		return nil, argErrorf("provide either path or image_base64, not both")
	case path != "":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read image: %w", err)
		}
		return data, nil
	case b64 != "":
		if i := strings.Index(b64, ","); strings.HasPrefix(b64, "data:") && i >= 0 {
			b64 = b64[i+1:]
		}
		data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(b64))
		if err != nil {
			return nil, argErrorf("invalid image_base64: %v", err)
		}
		return data, nil
	default:
		return nil, argErrorf("path or image_base64 is required")
	}
}

type blocksGetResultArgs struct {
	ID           string `json:"id"`
	IncludeGrid  *bool  `json:"include_grid"`
	IncludeImage bool   `json:"include_image"`
}

func (s *Server) handleBlocksGetResult(args json.RawMessage) (interface{}, error) {
	var a blocksGetResultArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if a.ID == "" {
		return nil, argErrorf("id is required")
	}

	res, ok := s.results.Get(a.ID)
	if !ok {
		return nil, fmt.Errorf("result not found: %s", a.ID)
	}

	includeGrid := a.IncludeGrid == nil || *a.IncludeGrid
	return newResultResponse(res, a.IncludeImage, includeGrid), nil
}

// === Palette Handlers ===

type paletteEntryResponse struct {
	Index       int         `json:"index"`
	Name        string      `json:"name"`
	Hex         string      `json:"hex"`
	Color       palette.RGB `json:"color"`
	Transparent bool        `json:"transparent"`
	Natural     bool        `json:"natural"`
}

type paletteResponse struct {
	Count   int                    `json:"count"`
	Entries []paletteEntryResponse `json:"entries"`
}

type blocksPaletteArgs struct {
	Name string `json:"name"`
}

func newPaletteEntryResponse(i int, e palette.Entry) paletteEntryResponse {
	return paletteEntryResponse{
		Index:       i,
		Name:        e.Name,
		Hex:         e.Color.Hex(),
		Color:       e.Color,
		Transparent: e.Transparent,
		Natural:     e.Natural,
	}
}

func (s *Server) handleBlocksPalette(args json.RawMessage) (interface{}, error) {
	var a blocksPaletteArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}

	catalog := s.converter.Matcher().Catalog()
	if a.Name != "" {
		i, ok := catalog.Index(a.Name)
		if !ok {
			return nil, fmt.Errorf("block not found: %s", a.Name)
		}
		return &paletteResponse{
			Count:   1,
			Entries: []paletteEntryResponse{newPaletteEntryResponse(i, catalog.Entry(i))},
		}, nil
	}

	entries := catalog.Entries()
	resp := &paletteResponse{
		Count:   len(entries),
		Entries: make([]paletteEntryResponse, len(entries)),
	}
	for i, e := range entries {
		resp.Entries[i] = newPaletteEntryResponse(i, e)
	}
	return resp, nil
}

type blocksMatchColorArgs struct {
	Color string `json:"color"`
	R     *int   `json:"r"`
	G     *int   `json:"g"`
	B     *int   `json:"b"`
}

type matchColorResponse struct {
	Query       imaging.ColorResult `json:"query"`
	Block       string              `json:"block"`
	Index       int                 `json:"index"`
	BlockHex    string              `json:"blockHex"`
	BlockColor  palette.RGB         `json:"blockColor"`
	Distance    float64             `json:"distance"`
	Transparent bool                `json:"transparent"`
	Natural     bool                `json:"natural"`
}

func (s *Server) handleBlocksMatchColor(args json.RawMessage) (interface{}, error) {
	var a blocksMatchColorArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}

	q, err := queryColor(a)
	if err != nil {
		return nil, err
	}

	m := s.converter.Matcher()
	match := m.Match(palette.RGB{q.R, q.G, q.B})
	entry := m.Catalog().Entry(match.Index)

	return &matchColorResponse{
		Query:       imaging.DescribeColor(q),
		Block:       match.Name,
		Index:       match.Index,
		BlockHex:    match.Color.Hex(),
		BlockColor:  match.Color,
		Distance:    match.Distance,
		Transparent: entry.Transparent,
		Natural:     entry.Natural,
	}, nil
}

func queryColor(a blocksMatchColorArgs) (color.NRGBA, error) {
	if a.Color != "" {
		c, err := imaging.ParseHexColor(a.Color)
		if err != nil {
			return color.NRGBA{}, argErrorf("%v", err)
		}
		return c, nil
	}

	if a.R == nil || a.G == nil || a.B == nil {
		return color.NRGBA{}, argErrorf("color or all of r, g, b are required")
	}
	for _, v := range []int{*a.R, *a.G, *a.B} {
		if v < 0 || v > 255 {
			return color.NRGBA{}, argErrorf("color component %d out of range 0-255", v)
		}
	}
	return color.NRGBA{R: uint8(*a.R), G: uint8(*a.G), B: uint8(*a.B), A: 255}, nil
}

// === Diagnostics Handlers ===

type statsResponse struct {
	Cache         *cache.Stats         `json:"cache,omitempty"`
	Matcher       palette.MatcherStats `json:"matcher"`
	StoredResults int                  `json:"storedResults"`
	CatalogSize   int                  `json:"catalogSize"`
}

func (s *Server) handleBlocksStats(_ json.RawMessage) (interface{}, error) {
	m := s.converter.Matcher()
	resp := &statsResponse{
		Matcher:       m.Stats(),
		StoredResults: s.results.Len(),
		CatalogSize:   m.Catalog().Len(),
	}
	if s.cache != nil {
		stats := s.cache.Stats()
		resp.Cache = &stats
	}
	return resp, nil
}

type clearCacheResponse struct {
	CacheEntries  int `json:"cacheEntries"`
	MatcherColors int `json:"matcherColors"`
	StoredResults int `json:"storedResults"`
}

// handleBlocksClearCache empties the result cache, the matcher memo and the
// result store, reporting how many entries each held.
func (s *Server) handleBlocksClearCache(_ json.RawMessage) (interface{}, error) {
	m := s.converter.Matcher()
	resp := &clearCacheResponse{
		MatcherColors: m.Stats().Entries,
		StoredResults: s.results.Len(),
	}
	if s.cache != nil {
		resp.CacheEntries = s.cache.Stats().Entries
		s.cache.Clear()
	}
	m.Reset()
	s.results.Clear()

	if s.debug {
		s.logger.Printf("Cleared %d cached results, %d matcher colors, %d stored results",
			resp.CacheEntries, resp.MatcherColors, resp.StoredResults)
	}
	return resp, nil
}
