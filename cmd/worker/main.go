package main

import (
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/annaliu2021/SuperHandy-backend-Fork/internal/db"
	"github.com/annaliu2021/SuperHandy-backend-Fork/internal/geocoder"
	"github.com/annaliu2021/SuperHandy-backend-Fork/internal/lifecycle"
	"github.com/annaliu2021/SuperHandy-backend-Fork/internal/worker"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

func main() {
	databaseHost := os.Getenv("DATABASE_HOST")
	databasePort := os.Getenv("DATABASE_PORT")
	databaseUser := os.Getenv("DATABASE_USER")
	databasePassword := os.Getenv("DATABASE_PASSWORD")
	databaseName := os.Getenv("DATABASE_NAME")

	if databaseHost == "" || databasePort == "" || databaseUser == "" || databasePassword == "" || databaseName == "" {
		log.Fatal("Database environment variables are not set")
	}

	zapLogger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Initializing zap logger %s", err)
	}
	defer func() {
		err := zapLogger.Sync()
		if err != nil {
			log.Fatalf("Syncing zap logger %s", err)
		}
	}()

	sqlDB, err := db.ConnectDB(databaseHost, databasePort, databaseUser, databasePassword, databaseName)
	if err != nil {
		log.Fatalf("Establishing connection to database %s", err)
	}
	defer func() {
		err := sqlDB.Close()
		if err != nil {
			log.Fatalf("Closing database %s", err)
		}
	}()

	workerIteration := os.Getenv("WORKER_ITERATION")
	if workerIteration == "" {
		workerIteration = "5m"
	}

	workerIterationDuration, err := time.ParseDuration(workerIteration)
	if err != nil {
		log.Fatalf("Invalid WORKER_ITERATION duration %s", err)
	}

	taskTTL := os.Getenv("TASK_TTL")
	if taskTTL == "" {
		taskTTL = "720h"
	}

	taskTTLDuration, err := time.ParseDuration(taskTTL)
	if err != nil {
		log.Fatalf("Invalid TASK_TTL duration %s", err)
	}

	retriesNum := os.Getenv("RETRIES_NUM")
	if retriesNum == "" {
		retriesNum = "3"
	}

	retriesNumInt, err := strconv.Atoi(retriesNum)
	if err != nil {
		log.Fatalf("Invalid RETRIES_NUM value %s", err)
	}

	// The sweeper never geocodes, but the engine wants a full dependency set;
	// wire the same adapter the server uses.
	limiter := rate.NewLimiter(rate.Every(time.Second), 1)
	httpClient := &http.Client{
		Timeout: 10 * time.Second,
	}
	geo := geocoder.NewGoogleGeocoder(httpClient, limiter, os.Getenv("GEOCODING_API_KEY"), os.Getenv("GEOCODING_BASE_URL"), retriesNumInt, zapLogger)

	engine := lifecycle.NewEngine(
		db.NewTaskStore(sqlDB),
		db.NewLedger(sqlDB),
		db.NewTransactionLog(sqlDB),
		geo,
		db.NewAtomic(sqlDB),
		zapLogger,
	)

	worker.NewWorker(engine, workerIterationDuration, taskTTLDuration, zapLogger).Start()
}
