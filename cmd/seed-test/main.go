package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/stemsi/toeic-session/internal/config"
	"github.com/stemsi/toeic-session/internal/database"
	"github.com/stemsi/toeic-session/internal/logger"
	"github.com/stemsi/toeic-session/internal/model"
	"github.com/stemsi/toeic-session/internal/repository"
	"github.com/stemsi/toeic-session/internal/service"
)

func main() {
	title := flag.String("title", "TOEIC Practice Test", "Test title")
	duration := flag.Int("duration", 120, "Duration in minutes")
	audio := flag.String("audio", "", "Listening audio URL (empty for none)")
	assets := flag.String("assets", "https://cdn.example.com/toeic", "Base URL for question images")
	warm := flag.Bool("warm", true, "Load the new test into Redis")
	flag.Parse()

	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	testRepo := repository.NewTestRepository(pool)

	test := &model.Test{Title: *title, DurationMinutes: *duration}
	if *audio != "" {
		test.AudioURL = audio
	}

	items := buildItems(*assets)
	fmt.Printf("=== Seeding %q (%d display items) ===\n", test.Title, len(items))

	id, err := testRepo.CreateWithItems(ctx, test, items)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create test")
	}
	fmt.Printf("Created test with ID: %d\n", id)

	if !*warm {
		return
	}
	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Warn().Err(err).Msg("Redis unavailable, skipping cache warm")
		return
	}
	defer rdb.Close()

	tests := service.NewTestService(testRepo, service.NewRedisCache(rdb), cfg.ItemsCacheTTL, log)
	if err := tests.WarmCache(ctx, id); err != nil {
		log.Fatal().Err(err).Msg("Failed to warm cache")
	}
	fmt.Println("Cache warmed")
}
