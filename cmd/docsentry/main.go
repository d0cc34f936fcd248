// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// docsentry inspects documents for sensitive content before they leave the
// machine. It scans PDFs and images, reports addressable sections with
// confidence scores, and can write redacted copies or serve the review API.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"go.uber.org/zap"
	"golang.org/x/term"

	"docsentry/internal/analyzer"
	"docsentry/internal/classifier"
	"docsentry/internal/config"
	"docsentry/internal/docparse"
	"docsentry/internal/observability"
	"docsentry/internal/patterns"
	"docsentry/internal/redactor"
	"docsentry/internal/security"
	"docsentry/internal/selection"
	"docsentry/internal/store"
	"docsentry/internal/version"
	"docsentry/internal/web"
)

type cliFlags struct {
	inputFile        string
	configFile       string
	outputFormat     string
	confidenceLevels string
	categories       string
	threshold        float64
	redact           bool
	outputFile       string
	serve            bool
	port             int
	verbose          bool
	noColor          bool
	showVersion      bool
}

func main() {
	var f cliFlags
	flag.StringVar(&f.inputFile, "file", "", "Path to the input file (PDF, JPEG, PNG, TIFF or plain text)")
	flag.StringVar(&f.configFile, "config", "", "Path to configuration file (YAML)")
	flag.StringVar(&f.outputFormat, "format", "", "Output format: text, json (default: text)")
	flag.StringVar(&f.confidenceLevels, "confidence", "", "Confidence levels to display: high, medium, low, or combinations like 'high,medium'")
	flag.StringVar(&f.categories, "categories", "", "Pattern categories to scan: pii, financial, medical, legal, or combinations (default: all)")
	flag.Float64Var(&f.threshold, "threshold", 0, "Minimum confidence for a match to be reported (0 uses the configured value)")
	flag.BoolVar(&f.redact, "redact", false, "Write a redacted copy of the input document")
	flag.StringVar(&f.outputFile, "output", "", "Path for the redacted copy (default: <file>.redacted<ext>)")
	flag.BoolVar(&f.serve, "serve", false, "Start the review API server instead of scanning a file")
	flag.IntVar(&f.port, "port", 0, "Port for the review API server (0 uses the configured value)")
	flag.BoolVar(&f.verbose, "verbose", false, "Display detailed information for each section")
	flag.BoolVar(&f.noColor, "no-color", false, "Disable colored output")
	flag.BoolVar(&f.showVersion, "version", false, "Show version information")
	flag.Parse()

	if f.showVersion {
		fmt.Println(version.Info())
		return
	}

	if err := run(f); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(f cliFlags) error {
	cfg, err := config.Load(f.configFile)
	if err != nil {
		return err
	}

	// Flags win over the config file.
	if f.outputFormat == "" {
		f.outputFormat = cfg.Defaults.Format
	}
	if f.confidenceLevels == "" {
		f.confidenceLevels = cfg.Defaults.ConfidenceLevels
	}
	if f.categories == "" {
		f.categories = cfg.Defaults.Categories
	}
	if f.threshold == 0 {
		f.threshold = cfg.Defaults.Threshold
	}
	if f.port == 0 {
		f.port = cfg.Web.Port
	}
	if cfg.Defaults.Verbose {
		f.verbose = true
	}
	if f.noColor || cfg.Defaults.NoColor || !term.IsTerminal(int(os.Stdout.Fd())) {
		color.NoColor = true
	}

	logCfg := cfg.Logging
	if f.verbose {
		logCfg.Level = "debug"
	}
	if f.serve {
		logCfg.Format = "json"
	}
	logger, err := observability.NewLogger(logCfg)
	if err != nil {
		return fmt.Errorf("building logger: %w", err)
	}
	defer logger.Sync()

	catalog, err := buildCatalog(cfg)
	if err != nil {
		return err
	}
	cls := classifier.New(catalog, classifier.HeuristicScorer{}, logger)
	clsOpts := classifier.Options{
		EnabledCategories: parseCategories(f.categories),
		Threshold:         f.threshold,
	}

	if f.serve {
		return runServer(cfg, f, cls, clsOpts, logger)
	}
	if f.inputFile == "" {
		flag.Usage()
		return fmt.Errorf("no input file specified (use -file or -serve)")
	}
	return runScan(cfg, f, cls, clsOpts, logger)
}

// buildCatalog merges config-declared patterns into the built-in catalog.
func buildCatalog(cfg *config.Config) (*patterns.Catalog, error) {
	catalog := patterns.DefaultCatalog()
	for _, p := range cfg.Patterns {
		pat, err := patterns.New(p.Name, p.Regex,
			patterns.Severity(p.Severity), patterns.Category(p.Category))
		if err != nil {
			return nil, fmt.Errorf("custom pattern %q: %w", p.Name, err)
		}
		catalog.Register(pat)
	}
	return catalog, nil
}

func parseCategories(list string) map[patterns.Category]bool {
	list = strings.TrimSpace(strings.ToLower(list))
	if list == "" || list == "all" {
		return nil
	}
	enabled := make(map[patterns.Category]bool)
	for _, c := range strings.Split(list, ",") {
		if c = strings.TrimSpace(c); c != "" {
			enabled[patterns.Category(c)] = true
		}
	}
	return enabled
}

func parseLevels(list string) map[string]bool {
	list = strings.TrimSpace(strings.ToLower(list))
	if list == "" || list == "all" {
		return map[string]bool{"high": true, "medium": true, "low": true}
	}
	levels := make(map[string]bool)
	for _, l := range strings.Split(list, ",") {
		if l = strings.TrimSpace(l); l != "" {
			levels[l] = true
		}
	}
	return levels
}

func confidenceLevel(c float64) string {
	switch {
	case c >= 0.8:
		return "high"
	case c >= 0.6:
		return "medium"
	default:
		return "low"
	}
}

func redactOptions(cfg *config.Config, clsOpts classifier.Options, threshold float64) redactor.Options {
	opts := redactor.DefaultOptions()
	opts.ConfidenceThreshold = threshold
	if cats := clsOpts.EnabledCategories; len(cats) > 0 {
		opts.EnablePIIRedaction = cats[patterns.CategoryPII]
		opts.EnableFinancialRedaction = cats[patterns.CategoryFinancial]
		opts.EnableMedicalRedaction = cats[patterns.CategoryMedical]
		opts.EnableLegalRedaction = cats[patterns.CategoryLegal]
	}
	if !cfg.Redaction.RedactMetadata {
		opts.EnableMetadataRedaction = false
	}
	return opts
}

func runServer(cfg *config.Config, f cliFlags, cls *classifier.Classifier, clsOpts classifier.Options, logger *zap.Logger) error {
	var st store.Store
	switch cfg.Store.Backend {
	case "postgres":
		ps, err := store.NewPostgresStore(cfg.Store.Postgres, logger)
		if err != nil {
			return fmt.Errorf("connecting to postgres: %w", err)
		}
		defer ps.Close()
		st = ps
	default:
		st = store.NewMemoryStore()
	}

	an := analyzer.New(st, cls, clsOpts, logger)
	sel := selection.NewService(st, logger)
	eng := redactor.NewEngine(cls, logger)
	srv := web.New(web.Config{
		Port:          f.port,
		MaxUploadSize: cfg.Web.MaxUploadSize,
	}, an, sel, eng, redactOptions(cfg, clsOpts, f.threshold), logger)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		logger.Info("shutting down", zap.String("signal", sig.String()))
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return srv.Shutdown(ctx)
	}
}

func runScan(cfg *config.Config, f cliFlags, cls *classifier.Classifier, clsOpts classifier.Options, logger *zap.Logger) error {
	raw, err := os.ReadFile(f.inputFile)
	if err != nil {
		return fmt.Errorf("reading input file: %w", err)
	}
	// Document bytes live in a wipeable buffer for the rest of the run.
	buf := security.NewSensitiveBuffer(raw)
	security.Wipe(raw)
	defer buf.Clear()

	contentType := contentTypeFor(f.inputFile)

	eng := redactor.NewEngine(cls, logger)
	opts := redactOptions(cfg, clsOpts, f.threshold)

	// Plain text never goes through a document backend.
	if contentType == "text/plain" {
		return reportText(f, eng.RedactText(string(buf.Bytes()), opts))
	}

	an := analyzer.New(store.NewMemoryStore(), cls, clsOpts, logger)
	analysis, err := an.Analyze(context.Background(), buf.Bytes(), filepath.Base(f.inputFile), contentType)
	if err != nil {
		return err
	}

	if err := report(f, an, analysis); err != nil {
		return err
	}
	if f.redact {
		return writeRedacted(cfg, f, eng, opts, buf.Bytes(), contentType)
	}
	return nil
}

func contentTypeFor(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return "application/pdf"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".tif", ".tiff":
		return "image/tiff"
	default:
		return "text/plain"
	}
}

func report(f cliFlags, an *analyzer.Analyzer, analysis *analyzer.Analysis) error {
	if f.outputFormat == "json" {
		data, err := an.ExportJSON(context.Background(), analysis.ID)
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	}

	levels := parseLevels(f.confidenceLevels)
	bold := color.New(color.Bold)
	levelColors := map[string]*color.Color{
		"high":   color.New(color.FgRed),
		"medium": color.New(color.FgYellow),
		"low":    color.New(color.FgGreen),
	}

	bold.Printf("%s (%s)\n", analysis.FileName, analysis.FileType)
	fmt.Printf("Status: %s   Sections: %d   Sensitive: %d\n\n",
		analysis.Status, analysis.TotalSections, analysis.SensitiveSections)

	shown := 0
	for _, s := range analysis.Sections {
		if !s.HasSensitiveContent {
			if !f.verbose {
				continue
			}
		} else {
			lvl := confidenceLevel(s.Confidence)
			if !levels[lvl] {
				continue
			}
		}
		shown++

		page := "-"
		if s.PageNumber != nil {
			page = fmt.Sprintf("%d", *s.PageNumber+1)
		}
		fmt.Printf("  [%s] %-10s page %-3s ", s.ID, s.Type, page)
		if s.HasSensitiveContent {
			lvl := confidenceLevel(s.Confidence)
			levelColors[lvl].Printf("%s (%.2f)", strings.ToUpper(lvl), s.Confidence)
			fmt.Printf("  patterns: %s", strings.Join(s.SensitivePatterns, ", "))
		} else {
			fmt.Print("clean")
		}
		fmt.Println()
		if f.verbose {
			fmt.Printf("      %s\n", s.Preview)
		}
	}
	if shown == 0 {
		fmt.Println("  No sections matched the selected confidence levels.")
	}
	return nil
}

func reportText(f cliFlags, result *redactor.Result) error {
	if f.outputFormat == "json" {
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	}

	levels := parseLevels(f.confidenceLevels)
	fmt.Printf("Findings: %d\n", result.Summary.TotalRedactions)
	for _, a := range result.RedactedAreas {
		if !levels[confidenceLevel(a.Confidence)] {
			continue
		}
		lvl := confidenceLevel(a.Confidence)
		fmt.Printf("  %-10s %-8s (%.2f) %s\n", a.Category, lvl, a.Confidence, a.RedactedContent)
	}
	if f.redact {
		fmt.Println("\nRedacted text:")
		fmt.Println(result.RedactedText)
	}
	return nil
}

func writeRedacted(cfg *config.Config, f cliFlags, eng *redactor.Engine, opts redactor.Options, buf []byte, contentType string) error {
	doc, err := docparse.Open(buf, contentType)
	if err != nil {
		return fmt.Errorf("opening document for redaction: %w", err)
	}
	result, err := eng.RedactDocument(doc, opts)
	if err != nil {
		return fmt.Errorf("redacting document: %w", err)
	}

	out := f.outputFile
	if out == "" {
		ext := filepath.Ext(f.inputFile)
		out = strings.TrimSuffix(f.inputFile, ext) + ".redacted" + ext
	}
	data, err := doc.Save()
	if err != nil {
		return fmt.Errorf("serializing redacted document: %w", err)
	}
	if err := os.WriteFile(out, data, 0o600); err != nil {
		return fmt.Errorf("writing redacted file: %w", err)
	}
	fmt.Printf("\nRedacted %d areas, wrote %s\n", result.Summary.TotalRedactions, out)
	return nil
}
