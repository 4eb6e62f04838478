// cmd/catalog-import/main.go - Loads courses, lessons and exercises from a file
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"studyhub/config"
	"studyhub/database"
	"studyhub/importer"
	"studyhub/logging"
	"studyhub/services"

	"go.uber.org/zap"
)

func main() {
	file := flag.String("file", "", "catalog file (.json, .yaml, .yml or .xlsx)")
	dryRun := flag.Bool("dry-run", false, "parse and validate without writing")
	template := flag.String("template", "", "write an empty XLSX template to this path and exit")
	flag.Parse()

	cfg, err := config.LoadTooling()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	log, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(1)
	}
	defer log.Sync()

	if *template != "" {
		if err := writeTemplate(*template); err != nil {
			log.Fatal("Failed to write template", zap.Error(err))
		}
		log.Info("✓ Template written", zap.String("path", *template))
		return
	}

	if *file == "" {
		flag.Usage()
		os.Exit(2)
	}

	cat, err := importer.ParseFile(*file)
	if err != nil {
		log.Fatal("Failed to read catalog", zap.String("file", *file), zap.Error(err))
	}
	courses, lessons, exercises := cat.Counts()
	log.Info("📖 Catalog parsed",
		zap.String("file", *file),
		zap.Int("courses", courses),
		zap.Int("lessons", lessons),
		zap.Int("exercises", exercises))

	if err := importer.Validate(cat); err != nil {
		for _, problem := range cat.Problems() {
			log.Error("✗ " + problem)
		}
		log.Fatal("Catalog is invalid, nothing was written")
	}
	if *dryRun {
		log.Info("✓ Dry run passed, nothing was written")
		return
	}

	db, err := database.InitDB(cfg.Database, log)
	if err != nil {
		log.Fatal("Failed to open database", zap.Error(err))
	}
	defer database.CloseDB()

	svcs := services.New(services.Deps{DB: db, Log: log})
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	start := time.Now()
	res, err := importer.New(svcs.Catalog, log).Import(ctx, cat)
	if err != nil {
		if res != nil {
			log.Warn("Import stopped part-way",
				zap.Int("lessons_created", res.LessonsCreated),
				zap.Int("exercises_created", res.ExercisesCreated))
		}
		log.Fatal("Import failed", zap.Error(err))
	}
	log.Info("✓ Import complete", zap.Duration("took", time.Since(start)), zap.Any("result", res))
}

func writeTemplate(path string) error {
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := importer.WriteTemplate(out); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
