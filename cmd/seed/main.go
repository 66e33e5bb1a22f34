package main

import (
	"cicdassess/internal/catalog"
	"cicdassess/internal/config"
	"cicdassess/internal/logger"
	"cicdassess/internal/repository"
	"cicdassess/internal/scoring"
	"cicdassess/internal/service"
	"context"
	"flag"
	"fmt"
	"math/rand/v2"
	"os"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var sampleExperiences = []string{
	"Builds run on every push but flaky tests slow us down.",
	"We still do a manual sign-off before each release.",
	"Rollbacks are scripted, mostly painless.",
	"Monitoring alerts reach the on-call channel within minutes.",
	"",
}

func main() {
	count := flag.Int("n", 10, "number of submissions to seed")
	flag.Parse()

	cfg, err := config.Load(".")
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	log, err := logger.New(cfg.Server.Mode, "")
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.Mongo.URI))
	if err != nil {
		log.Fatal("Failed to connect to MongoDB", "error", err)
	}
	defer client.Disconnect(context.Background())

	repo := repository.NewFeedbackRepo(client.Database(cfg.Mongo.Database))
	if err := repo.EnsureIndexes(ctx); err != nil {
		log.Fatal("Failed to create indexes", "error", err)
	}

	// no refresh queue: the analysis is regenerated on the next submission or /v1/analyze
	svc := service.NewFeedbackService(repo, nil, cfg.Survey, log)

	roles := cfg.Survey.Roles
	if len(roles) == 0 {
		roles = []string{"engineer"}
	}

	for i := 0; i < *count; i++ {
		// each seeded team leans toward one level
		base := 1 + rand.IntN(4)
		answers := make([]scoring.Selection, 0, catalog.Size())
		for _, id := range catalog.IDs() {
			v := base + rand.IntN(3) - 1
			v = min(max(v, 1), 4)
			answers = append(answers, scoring.Selection{
				QuestionID: id,
				Value:      v,
				Experience: sampleExperiences[rand.IntN(len(sampleExperiences))],
			})
		}

		res, err := svc.Submit(ctx, service.SubmitRequest{
			Nickname: fmt.Sprintf("seed-team-%02d", i+1),
			Role:     roles[i%len(roles)],
			Answers:  answers,
		})
		if err != nil {
			log.Fatal("Seed submission failed", "index", i, "error", err)
		}
		log.Info("Seeded feedback", "editKey", res.EditKey, "score", res.TotalScore, "level", res.MaturityLevel)
	}
}
