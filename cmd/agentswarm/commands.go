package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/BaSui01/agentswarm/api"
	"github.com/BaSui01/agentswarm/rag"
)

// =============================================================================
// 📥 ingest 命令
// =============================================================================

func runIngest(args []string) error {
	fs := flag.NewFlagSet("ingest", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to config file (YAML)")
	document := fs.String("document", "", "Document to ingest")
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	if *document != "" {
		cfg.Retrieval.DocumentPath = *document
	}
	logger := initLogger(cfg.Log)
	defer func() { _ = logger.Sync() }()

	a, err := newApp(cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	built, err := a.ensureDocument(context.Background())
	if err != nil {
		return err
	}
	status := "reused"
	if built {
		status = "built"
	}
	fmt.Printf("%s %s (%s)\n", status, a.fingerprint, cfg.Retrieval.DocumentPath)
	return nil
}

// =============================================================================
// 📚 collections 命令
// =============================================================================

func runCollections(args []string) error {
	fs := flag.NewFlagSet("collections", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to config file (YAML)")
	asJSON := fs.Bool("json", false, "Print collections as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	logger := initLogger(cfg.Log)
	defer func() { _ = logger.Sync() }()

	a, err := newApp(cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	infos, err := a.cache.Collections(context.Background())
	if err != nil {
		return err
	}
	return printCollections(os.Stdout, infos, *asJSON)
}

func printCollections(w io.Writer, infos []rag.CollectionInfo, asJSON bool) error {
	summaries := make([]api.CollectionSummary, 0, len(infos))
	for _, info := range infos {
		summaries = append(summaries, api.CollectionSummary{
			Fingerprint: info.Fingerprint,
			Model:       info.Model,
			Dimensions:  info.Dimensions,
			Chunks:      info.ChunkCount,
			BuiltAt:     info.BuiltAt,
		})
	}

	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(summaries)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "FINGERPRINT\tCHUNKS\tMODEL\tDIMENSIONS\tBUILT AT")
	for _, s := range summaries {
		fmt.Fprintf(tw, "%s\t%d\t%s\t%d\t%s\n",
			s.Fingerprint, s.Chunks, s.Model, s.Dimensions, s.BuiltAt.UTC().Format(time.RFC3339))
	}
	return tw.Flush()
}
