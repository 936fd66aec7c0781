package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/stemsi/examguard-backend/internal/config"
	"github.com/stemsi/examguard-backend/internal/database"
	"github.com/stemsi/examguard-backend/internal/importer"
	"github.com/stemsi/examguard-backend/internal/logger"
	"github.com/stemsi/examguard-backend/internal/model"
	"github.com/stemsi/examguard-backend/internal/repository"
	"github.com/stemsi/examguard-backend/internal/service"
)

func main() {
	file := flag.String("file", "", "path to the exam YAML file")
	owner := flag.String("owner", "", "username or email of the admin who owns the exam")
	dryRun := flag.Bool("dry-run", false, "validate the file without writing anything")
	flag.Parse()

	if *file == "" {
		fmt.Println("Usage: import-exam -file exam.yaml -owner admin [-dry-run]")
		os.Exit(2)
	}

	f, err := os.Open(*file)
	if err != nil {
		fmt.Println("Error:", err)
		os.Exit(1)
	}
	in, err := importer.Parse(f)
	f.Close()
	if err != nil {
		fmt.Println("Error:", err)
		os.Exit(1)
	}

	fmt.Printf("Parsed %q with %d questions\n", in.Exam.Title, len(in.Questions))
	if *dryRun {
		return
	}
	if *owner == "" {
		fmt.Println("Error: -owner is required")
		os.Exit(2)
	}

	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	uow := service.NewUnitOfWork(repository.NewStore(pool))

	admin, err := uow.Repos().Users.GetByLogin(ctx, *owner)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			fmt.Printf("Error: user %q not found\n", *owner)
			os.Exit(1)
		}
		log.Fatal().Err(err).Msg("Failed to look up owner")
	}
	if admin.Role != model.RoleAdmin {
		fmt.Printf("Error: user %q is not an admin\n", *owner)
		os.Exit(1)
	}

	// A new exam has no cached paper yet, so the import never needs Redis.
	catalog := service.NewCatalogService(uow, service.NopPaperCache{}, log)
	detail, err := catalog.ImportExam(ctx, admin.ID, *in)
	if err != nil {
		var de *service.DomainError
		var ve *service.ValidationError
		switch {
		case errors.As(err, &ve):
			fmt.Printf("Error: %s: %s\n", ve.Field, ve.Message)
			os.Exit(1)
		case errors.As(err, &de):
			fmt.Println("Error:", de.Message)
			os.Exit(1)
		}
		log.Fatal().Err(err).Msg("Failed to import exam")
	}

	fmt.Printf("\nImported exam %s (%d questions, %d/%d marks)\n",
		detail.Exam.ID, len(detail.Questions), detail.QuestionMarksTotal, detail.Exam.TotalMarks)
}
