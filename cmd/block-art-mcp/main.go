package main

import (
	"fmt"
	"log"
	"os"

	"github.com/ironsheep/block-art-mcp/internal/blocks"
	"github.com/ironsheep/block-art-mcp/internal/cache"
	"github.com/ironsheep/block-art-mcp/internal/config"
	"github.com/ironsheep/block-art-mcp/internal/palette"
	"github.com/ironsheep/block-art-mcp/internal/server"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	// Handle --version and -v flags
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "--version", "-v", "version":
			fmt.Printf("block-art-mcp %s\n", Version)
			fmt.Printf("  Build time: %s\n", BuildTime)
			fmt.Printf("  Git commit: %s\n", GitCommit)
			return
		case "--help", "-h", "help":
			printHelp()
			return
		}
	}

	// Configure logging to stderr (stdout is for MCP protocol)
	log.SetOutput(os.Stderr)
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Configuration error: %v", err)
	}
	if cfg.Debug {
		log.Printf("Block Art MCP Server v%s (built %s, commit %s)", Version, BuildTime, GitCommit)
	}

	catalog := palette.Default()
	if cfg.CatalogPath != "" {
		catalog, err = palette.LoadFile(cfg.CatalogPath)
		if err != nil {
			log.Fatalf("Failed to load catalog: %v", err)
		}
	}

	rc, err := cache.New(cache.Options{
		Dir:        cfg.CacheDir,
		TTL:        cfg.CacheTTL,
		MaxEntries: cfg.CacheMaxEntries,
	})
	if err != nil {
		log.Fatalf("Failed to open result cache: %v", err)
	}
	defer rc.Close()

	if cfg.Debug {
		stats := rc.Stats()
		log.Printf("Catalog: %d blocks; cache: %d entries in %q", catalog.Len(), stats.Entries, stats.Dir)
	}

	matcher := palette.NewMatcher(catalog)
	matcher.SetMemoLimit(cfg.MatchMemoLimit)

	conv := blocks.NewConverter(blocks.Options{
		Matcher:      matcher,
		Cache:        rc,
		Scheduler:    blocks.Scheduler{MaxWorkers: cfg.MaxWorkers},
		MaxImageSize: cfg.MaxImageSize,
		MaxGridSize:  cfg.MaxGridSize,
		Seed:         cfg.Seed,
		Debug:        cfg.Debug,
	})

	server.Version = Version
	srv := server.New(server.Options{
		Converter: conv,
		Cache:     rc,
		Debug:     cfg.Debug,
	})
	if err := srv.Run(); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

func printHelp() {
	fmt.Println("block-art-mcp - MCP server that converts images into block art")
	fmt.Println()
	fmt.Println("Usage: block-art-mcp [options]")
	fmt.Println()
	fmt.Println("Options:")
	fmt.Println("  --version, -v    Print version information")
	fmt.Println("  --help, -h       Print this help message")
	fmt.Println()
	fmt.Println("Environment variables:")
	fmt.Printf("  %s=debug        Enable debug logging\n", config.EnvLogLevel)
	fmt.Printf("  %s=<dir|off>    Result cache directory (off keeps it in memory)\n", config.EnvCacheDir)
	fmt.Printf("  %s=<duration>   Cached result lifetime (default 24h)\n", config.EnvCacheTTL)
	fmt.Printf("  %s=<n>  Cached result limit (default 50)\n", config.EnvCacheMaxEntries)
	fmt.Printf("  %s=<n>       Matching worker limit (default 8)\n", config.EnvMaxWorkers)
	fmt.Printf("  %s=<px>   Largest accepted source side (default 2000)\n", config.EnvMaxImageSize)
	fmt.Printf("  %s=<n>     Largest accepted grid_size (default 200)\n", config.EnvMaxGridSize)
	fmt.Printf("  %s=<n>             Color clustering seed (default 42)\n", config.EnvSeed)
	fmt.Printf("  %s=<file>       JSON block catalog replacing the built-in one\n", config.EnvCatalog)
	fmt.Printf("  %s=<n>  Colors the matcher remembers (default 262144)\n", config.EnvMatchMemoLimit)
	fmt.Println()
	fmt.Println("This server communicates via MCP protocol over stdin/stdout.")
	fmt.Println("Configure it in your MCP client (e.g., Claude Desktop).")
}
