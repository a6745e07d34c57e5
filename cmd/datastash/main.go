// Package main implements the datastash command line tool.
// It downloads remote datasets into the local cache, derives cache paths,
// materializes CSV sources as cached SQLite files, and clears the cache.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/datastash/datastash/internal/cachedir"
	"github.com/datastash/datastash/internal/config"
	"github.com/datastash/datastash/internal/names"
	"github.com/datastash/datastash/pkg/stash"
)

var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	// Ctrl-C cancels in-flight transfers
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	cmd, args := os.Args[1], os.Args[2:]

	var err error
	switch cmd {
	case "fetch":
		err = runFetch(ctx, args)
	case "path":
		err = runPath(args)
	case "csvdb":
		err = runCSVDB(ctx, args)
	case "clear":
		err = runClear(args)
	case "version":
		fmt.Printf("datastash version %s (commit: %s)\n", version, commit)
	case "help", "-h", "--help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", cmd)
		usage()
		os.Exit(2)
	}
	if err != nil {
		log.Fatalf("Failed to run %s: %v", cmd, err)
	}
}

// runFetch downloads one source into the cache and prints its local path.
func runFetch(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("fetch", flag.ExitOnError)
	var (
		configFile string
		url        string
		filename   string
		decompress bool
		force      bool
		subdir     string
		timeout    time.Duration
	)
	fs.StringVar(&configFile, "config", "", "Path to configuration file (YAML or JSON)")
	fs.StringVar(&url, "url", "", "Source URL (http, https, s3, file)")
	fs.StringVar(&filename, "filename", "", "Override the derived local filename")
	fs.BoolVar(&decompress, "decompress", false, "Unpack .gz/.zip/.sz archives on download")
	fs.BoolVar(&force, "force", false, "Refetch even when a cached copy exists")
	fs.StringVar(&subdir, "subdir", "", "Cache subdirectory")
	fs.DurationVar(&timeout, "timeout", 0, "Transfer timeout (0 uses the default)")
	fs.Parse(args)

	if url == "" {
		return fmt.Errorf("missing required flag: -url")
	}

	cfg, err := loadConfig(configFile, subdir)
	if err != nil {
		return err
	}

	cache, err := stash.New(cfg.Subdir, cfg.Options()...)
	if err != nil {
		return err
	}

	path, err := cache.Fetch(ctx, url, stash.FetchOptions{
		Filename:   filename,
		Decompress: decompress,
		Force:      force,
		Timeout:    timeout,
	})
	if err != nil {
		return err
	}
	fmt.Println(path)
	return nil
}

// runPath prints the local path a source would cache at. Nothing is fetched
// and nothing is created.
func runPath(args []string) error {
	fs := flag.NewFlagSet("path", flag.ExitOnError)
	var (
		configFile string
		url        string
		filename   string
		decompress bool
		subdir     string
	)
	fs.StringVar(&configFile, "config", "", "Path to configuration file (YAML or JSON)")
	fs.StringVar(&url, "url", "", "Source URL (http, https, s3, file)")
	fs.StringVar(&filename, "filename", "", "Override the derived local filename")
	fs.BoolVar(&decompress, "decompress", false, "Derive the name of the unpacked file")
	fs.StringVar(&subdir, "subdir", "", "Cache subdirectory")
	fs.Parse(args)

	if url == "" && filename == "" {
		return fmt.Errorf("missing required flag: -url or -filename")
	}

	cfg, err := loadConfig(configFile, subdir)
	if err != nil {
		return err
	}

	dir := cfg.CacheDir
	if dir == "" {
		dir, err = cachedir.Dir(cfg.Subdir)
		if err != nil {
			return err
		}
	}

	path, err := names.Path(dir, url, filename, decompress)
	if err != nil {
		return err
	}
	fmt.Println(path)
	return nil
}

// runCSVDB fetches a CSV source and materializes it as a cached SQLite
// file, printing the artifact path.
func runCSVDB(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("csvdb", flag.ExitOnError)
	var (
		configFile string
		url        string
		table      string
		dbFilename string
		filename   string
		primaryKey string
		overwrite  bool
		ver        int
		subdir     string
		timeout    time.Duration
	)
	fs.StringVar(&configFile, "config", "", "Path to configuration file (YAML or JSON)")
	fs.StringVar(&url, "url", "", "CSV source URL (http, https, s3, file)")
	fs.StringVar(&table, "table", "", "Table name inside the artifact")
	fs.StringVar(&dbFilename, "db-filename", "", "Override the constructed artifact filename")
	fs.StringVar(&filename, "filename", "", "Override the derived download filename")
	fs.StringVar(&primaryKey, "primary-key", "", "Primary key column")
	fs.BoolVar(&overwrite, "overwrite", false, "Rebuild even when a current artifact exists")
	fs.IntVar(&ver, "version", 0, "Dataset version (0 uses the configured default)")
	fs.StringVar(&subdir, "subdir", "", "Cache subdirectory")
	fs.DurationVar(&timeout, "timeout", 0, "Transfer timeout (0 uses the default)")
	fs.Parse(args)

	if url == "" {
		return fmt.Errorf("missing required flag: -url")
	}
	if table == "" {
		return fmt.Errorf("missing required flag: -table")
	}

	cfg, err := loadConfig(configFile, subdir)
	if err != nil {
		return err
	}
	if ver == 0 {
		ver = cfg.Database.Version
	}

	cache, err := stash.New(cfg.Subdir, cfg.Options()...)
	if err != nil {
		return err
	}

	db, path, err := stash.FetchCSVDB(ctx, stash.CSVDBParams{
		URL:        url,
		Table:      table,
		DBFilename: dbFilename,
		Filename:   filename,
		PrimaryKey: primaryKey,
		Subdir:     cfg.Subdir,
		Collection: cfg.Database.Collection,
		Overwrite:  overwrite,
		Version:    ver,
		Timeout:    timeout,
		Cache:      cache,
	})
	if err != nil {
		return err
	}
	defer db.Close()

	fmt.Println(path)
	return nil
}

// runClear deletes everything in the cache directory.
func runClear(args []string) error {
	fs := flag.NewFlagSet("clear", flag.ExitOnError)
	var (
		configFile string
		subdir     string
	)
	fs.StringVar(&configFile, "config", "", "Path to configuration file (YAML or JSON)")
	fs.StringVar(&subdir, "subdir", "", "Cache subdirectory")
	fs.Parse(args)

	cfg, err := loadConfig(configFile, subdir)
	if err != nil {
		return err
	}

	cache, err := stash.New(cfg.Subdir, cfg.Options()...)
	if err != nil {
		return err
	}
	if err := cache.DeleteAll(); err != nil {
		return err
	}
	log.Printf("Cleared cache at %s", cache.Dir())
	return nil
}

// loadConfig loads configuration from file, environment, and command line
// flags, in that order of priority.
func loadConfig(configFile, subdir string) (*config.Config, error) {
	var cfg *config.Config
	var err error

	if configFile != "" {
		cfg, err = config.LoadFromFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	} else {
		cfg = config.DefaultConfig()
	}

	config.LoadFromEnv(cfg)

	if subdir != "" {
		cfg.Subdir = subdir
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func usage() {
	fmt.Fprintf(os.Stderr, "datastash - local cache for remotely fetched datasets\n\n")
	fmt.Fprintf(os.Stderr, "Usage: datastash <command> [options]\n\n")
	fmt.Fprintf(os.Stderr, "Commands:\n")
	fmt.Fprintf(os.Stderr, "  fetch     Download a source into the cache and print its local path\n")
	fmt.Fprintf(os.Stderr, "  path      Print the local path a source would cache at, without fetching\n")
	fmt.Fprintf(os.Stderr, "  csvdb     Fetch a CSV source and materialize it as a SQLite file\n")
	fmt.Fprintf(os.Stderr, "  clear     Delete everything in the cache directory\n")
	fmt.Fprintf(os.Stderr, "  version   Show version information\n")
	fmt.Fprintf(os.Stderr, "\nExamples:\n")
	fmt.Fprintf(os.Stderr, "  datastash fetch -url https://example.com/genes.csv.gz -decompress\n")
	fmt.Fprintf(os.Stderr, "  datastash csvdb -url https://example.com/genes.csv -table genes -primary-key gene_id\n")
	fmt.Fprintf(os.Stderr, "  datastash clear -subdir genomes\n")
	fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
	fmt.Fprintf(os.Stderr, "  DATASTASH_CACHE_DIR      Cache directory override\n")
	fmt.Fprintf(os.Stderr, "  DATASTASH_SUBDIR         Cache subdirectory\n")
	fmt.Fprintf(os.Stderr, "  DATASTASH_HTTP_TIMEOUT   Transfer timeout (e.g. 5m)\n")
	fmt.Fprintf(os.Stderr, "  DATASTASH_S3_REGION      AWS region for s3:// sources\n")
	fmt.Fprintf(os.Stderr, "  DATASTASH_S3_ENDPOINT    Endpoint for S3-compatible storage\n")
	fmt.Fprintf(os.Stderr, "\nRun 'datastash <command> -h' for command options.\n")
}
