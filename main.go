// vidpress/main.go
package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"vidpress/api"
	"vidpress/config"
	"vidpress/ffmpeg"
	"vidpress/job"
	"vidpress/pipeline"
	"vidpress/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	encoder, err := ffmpeg.NewEncoder(cfg.FFBin)
	if err != nil {
		log.Fatalf("Failed to initialize encoder: %v", err)
	}
	prober := ffmpeg.NewProber(cfg.FFProbeBin)

	files, err := storage.NewManager(cfg.InputDir, cfg.OutputDir, cfg.MaxUploadSize, cfg.FileRetention, cfg.MinFreeDisk)
	if err != nil {
		log.Fatalf("Failed to initialize storage: %v", err)
	}

	jobs := job.NewStore(cfg.JobRetention)

	orch, err := pipeline.New(cfg, jobs, files, prober, encoder)
	if err != nil {
		log.Fatalf("Failed to initialize pipeline: %v", err)
	}

	router := api.SetupRouter(cfg, jobs, files, prober, orch)
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go files.SweepLoop(ctx, cfg.SweepEvery)

	go func() {
		log.Printf("Server starting on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	<-ctx.Done()

	stop()
	log.Println("Shutting down gracefully, press Ctrl+C again to force")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal("Server forced to shutdown: ", err)
	}

	log.Println("Server exiting")
}
