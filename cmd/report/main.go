package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/stemsi/examguard-backend/internal/config"
	"github.com/stemsi/examguard-backend/internal/database"
	"github.com/stemsi/examguard-backend/internal/logger"
	"github.com/stemsi/examguard-backend/internal/repository"
	"github.com/stemsi/examguard-backend/internal/service"
)

func main() {
	examFlag := flag.String("exam", "", "exam ID; prints per-exam analytics instead of the overview")
	noColor := flag.Bool("no-color", false, "disable colored output")
	flag.Parse()

	if *noColor {
		color.NoColor = true
	}

	var examID uuid.UUID
	if *examFlag != "" {
		id, err := uuid.Parse(*examFlag)
		if err != nil {
			color.Red("Invalid exam ID: %v", err)
			os.Exit(2)
		}
		examID = id
	}

	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	uow := service.NewUnitOfWork(repository.NewStore(pool))
	analytics := service.NewAnalyticsService(uow)

	color.Cyan("=== ExamGuard Report (%s) ===", time.Now().UTC().Format(time.RFC3339))

	if examID != uuid.Nil {
		a, err := analytics.ExamAnalytics(ctx, examID)
		if err != nil {
			if errors.Is(err, service.ErrExamNotFound) {
				color.Red("Exam %s not found", examID)
				os.Exit(1)
			}
			log.Fatal().Err(err).Msg("Failed to load exam analytics")
		}
		renderExamAnalytics(os.Stdout, a)
		return
	}

	overview, err := analytics.Overview(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load overview")
	}
	exams, err := service.NewCatalogService(uow, service.NopPaperCache{}, log).ListExams(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to list exams")
	}
	renderOverview(os.Stdout, overview, exams)
	fmt.Println()
}
