package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/Behzodbek19981230/lms-sub002/internal/config"
	"github.com/Behzodbek19981230/lms-sub002/internal/db"
	"github.com/Behzodbek19981230/lms-sub002/internal/importer"
	"github.com/Behzodbek19981230/lms-sub002/internal/migrate"
	"github.com/Behzodbek19981230/lms-sub002/internal/store"
)

func main() {
	file := flag.String("file", "", "path to the xlsx workbook")
	centerID := flag.Int64("center", 0, "id of the center to import into")
	flag.Parse()

	if *file == "" || *centerID <= 0 {
		log.Fatal("both -file and -center are required")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	workbook, err := os.ReadFile(*file)
	if err != nil {
		log.Fatalf("read workbook: %v", err)
	}
	if int64(len(workbook)) > cfg.MaxWorkbookBytes {
		log.Fatalf("workbook is %d bytes, limit is %d", len(workbook), cfg.MaxWorkbookBytes)
	}

	database, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("connect db: %v", err)
	}
	defer database.Close()

	if cfg.AutoMigrate {
		if err := migrate.Run(ctx, database, cfg.MigrationsDir); err != nil {
			log.Fatalf("run migrations: %v", err)
		}
	}

	engine := importer.NewEngine(store.NewPostgres(database), cfg.DefaultStudentSecret)

	started := time.Now()
	result, err := engine.Import(ctx, *centerID, workbook)
	if err != nil {
		log.Fatalf("import: %v", err)
	}

	logErr := db.RecordImportRun(ctx, database, db.ImportRun{
		CenterID:   *centerID,
		Filename:   filepath.Base(*file),
		Committed:  result.Committed,
		ErrorCount: len(result.Errors),
		Summary:    result.Summary,
		Duration:   time.Since(started),
	})
	if logErr != nil {
		log.Printf("record import run: %v", logErr)
	}

	if !result.Committed {
		fmt.Printf("rolled back: %d row error(s)\n", len(result.Errors))
		for _, e := range result.Errors {
			fmt.Println("  " + e.String())
		}
		os.Exit(1)
	}

	s := result.Summary
	fmt.Println("committed")
	fmt.Printf("  subjects created:       %d\n", s.SubjectsCreated)
	fmt.Printf("  groups created:         %d\n", s.GroupsCreated)
	fmt.Printf("  groups updated:         %d\n", s.GroupsUpdated)
	fmt.Printf("  students created:       %d\n", s.StudentsCreated)
	fmt.Printf("  students updated:       %d\n", s.StudentsUpdated)
	fmt.Printf("  group links created:    %d\n", s.StudentGroupLinksCreated)
	fmt.Printf("  payments created:       %d\n", s.PaymentsCreated)
	fmt.Printf("  payments skipped:       %d\n", s.PaymentsSkipped)
}
