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
	"github.com/stemsi/examguard-backend/internal/logger"
	"github.com/stemsi/examguard-backend/internal/model"
	"github.com/stemsi/examguard-backend/internal/repository"
	"github.com/stemsi/examguard-backend/internal/service"
)

var names = []string{
	"Budi Santoso", "Siti Aminah", "Andi Pratama", "Rina Wati", "Joko Susilo",
	"Ayu Lestari", "Dodi Kusuma", "Eka Putri", "Fahri Hamzah", "Gita Savitri",
	"Hendra Gunawan", "Ika Sari", "Lukman Hakim", "Maya Septiana", "Nanda Pratama",
	"Oki Setiana", "Putri Dian", "Rafi Ahmad", "Toni Setiawan", "Wahyu Hidayat",
}

func main() {
	count := flag.Int("n", 50, "number of students to create")
	prefix := flag.String("prefix", "student", "username prefix")
	password := flag.String("password", "password123", "password for every seeded account")
	flag.Parse()

	if *count < 1 {
		fmt.Println("Error: -n must be at least 1")
		os.Exit(1)
	}
	if len(*password) < 8 {
		fmt.Println("Error: -password must be at least 8 characters")
		os.Exit(1)
	}

	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	uow := service.NewUnitOfWork(repository.NewStore(pool))
	authService := service.NewAuthService(cfg, uow, nil, log)

	fmt.Printf("=== Seeding %d Students ===\n", *count)

	created, skipped := 0, 0
	for i := 1; i <= *count; i++ {
		username := fmt.Sprintf("%s%03d", *prefix, i)
		req := model.RegisterRequest{
			Username: username,
			Email:    username + "@example.com",
			FullName: names[(i-1)%len(names)],
			Password: *password,
		}

		user, err := authService.CreateUser(ctx, model.RoleStudent, req)
		if err != nil {
			if errors.Is(err, service.ErrUsernameTaken) || errors.Is(err, service.ErrEmailTaken) {
				skipped++
				continue
			}
			log.Fatal().Err(err).Str("username", username).Msg("Failed to create student")
		}
		created++
		fmt.Printf("  %-14s id=%d  %s\n", user.Username, user.ID, user.FullName)
	}

	fmt.Printf("\nDone. created=%d skipped=%d (existing)\n", created, skipped)
}
