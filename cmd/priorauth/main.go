// Package main provides the standalone command-line entry point for the
// prior-authorization engine. It requires no external services - coverage
// lives in a local SQLite formulary and assessments run on the standard path.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/priorauth-engine/internal/config"
	"github.com/priorauth-engine/internal/domain"
	"github.com/priorauth-engine/internal/formulary"
	"github.com/priorauth-engine/internal/service"
)

func defaultEngineConfig() *domain.EngineConfig {
	return &domain.EngineConfig{
		AlternativeTrigger:       70,
		AlternativeTriggerLegacy: 50,
		MaxAlternatives:          3,
		MetadataTimeout:          4 * time.Second,
		MaxConcurrentCandidates:  4,
	}
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	cfg := config.LoadLiteConfig()
	if err := cfg.EnsureDataDir(); err != nil {
		log.Fatalf("Failed to create data directory: %v", err)
	}

	logger := logrus.New()
	level, err := logrus.ParseLevel(strings.ToLower(cfg.LogLevel))
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	if cfg.LogFormat == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	logger.SetOutput(os.Stderr)

	store, err := formulary.NewSQLiteStore(cfg.FormularyDBPath())
	if err != nil {
		log.Fatalf("Failed to open formulary: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	if _, err := store.Seed(ctx, formulary.ReferenceRecords()); err != nil {
		log.Fatalf("Failed to seed formulary: %v", err)
	}

	switch os.Args[1] {
	case "assess":
		err = runAssess(ctx, cfg, store, logger, os.Args[2:])
	case "plans":
		err = runPlans(ctx, store)
	case "coverage":
		err = runCoverage(ctx, store, os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		log.Fatalf("%s failed: %v", os.Args[1], err)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `Usage:
  priorauth assess -file <request.json> [-export]
  priorauth plans
  priorauth coverage -plan <plan> -drug <drug>`)
}

// runAssess evaluates one assessment request read from a JSON file and
// prints the result to stdout. With -export the result is also written to
// the export directory.
func runAssess(ctx context.Context, cfg *config.LiteConfig, store formulary.Store, logger *logrus.Logger, args []string) error {
	fs := flag.NewFlagSet("assess", flag.ExitOnError)
	file := fs.String("file", "", "path to the assessment request JSON")
	export := fs.Bool("export", false, "also write the result to the export directory")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *file == "" {
		return fmt.Errorf("-file is required")
	}

	data, err := os.ReadFile(*file)
	if err != nil {
		return fmt.Errorf("failed to read request: %w", err)
	}

	var params service.AssessmentParams
	if err := json.Unmarshal(data, &params); err != nil {
		return fmt.Errorf("failed to parse request: %w", err)
	}
	// External lookups are not available standalone.
	params.Enhanced = false

	assessor := service.NewAssessmentService(logger, store, nil, defaultEngineConfig())
	result, err := assessor.Assess(ctx, &params)
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))

	if *export {
		name := fmt.Sprintf("assessment-%s.json", time.Now().UTC().Format("20060102-150405"))
		path := filepath.Join(cfg.ExportDir(), name)
		if err := os.WriteFile(path, out, 0644); err != nil {
			return fmt.Errorf("failed to export result: %w", err)
		}
		logger.WithField("path", path).Info("Exported assessment result")
	}

	return nil
}

func runPlans(ctx context.Context, store formulary.Store) error {
	plans, err := store.ListPlans(ctx)
	if err != nil {
		return err
	}
	for _, plan := range plans {
		fmt.Println(plan)
	}
	return nil
}

func runCoverage(ctx context.Context, store formulary.Store, args []string) error {
	fs := flag.NewFlagSet("coverage", flag.ExitOnError)
	plan := fs.String("plan", "", "insurance plan name")
	drug := fs.String("drug", "", "drug name")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *plan == "" || *drug == "" {
		return fmt.Errorf("-plan and -drug are required")
	}

	record, err := store.ResolveCoverage(ctx, *plan, *drug)
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
