// Package server implements the MCP (Model Context Protocol) server for block
// art conversion.
//
// This package provides a JSON-RPC 2.0 server that exposes the conversion
// pipeline through the MCP protocol, so MCP-compatible clients can turn
// images into block grids and inspect the palette.
//
// # Protocol
//
// The server communicates over stdio using JSON-RPC 2.0:
//   - Input: JSON-RPC requests on stdin (one per line)
//   - Output: JSON-RPC responses on stdout
//
// Supported MCP methods:
//   - initialize: Protocol handshake
//   - tools/list: Enumerate available tools
//   - tools/call: Execute a tool with arguments
//   - ping: Health check
//
// # Available Tools
//
// Conversion:
//   - blocks_convert: Convert an image file or base64 bytes into blocks
//   - blocks_get_result: Fetch a recent result, including its full grid
//
// Palette:
//   - blocks_palette: List catalog entries in match order, or one by name
//   - blocks_match_color: Find the nearest block for one color
//
// Diagnostics:
//   - blocks_stats: Cache, memo and result store statistics
//   - blocks_clear_cache: Empty the cache, memo and result store
//
// # Result Store
//
// Every successful conversion is kept in memory under its id. Only the most
// recent results are retained (20 by default); older ones are dropped.
//
// # Error Handling
//
// Tool errors are returned as JSON-RPC error responses with:
//   - code: -32602 for malformed arguments or invalid conversion parameters,
//     -32000 for any other tool failure, -32601 for unknown methods
//   - message: Human-readable error description
//   - data: The Go error string, e.g. the decode or size error
//
// # Usage
//
//	srv := server.New(server.Options{Converter: conv, Cache: rc})
//	if err := srv.Run(); err != nil {
//	    log.Fatal(err)
//	}
package server
