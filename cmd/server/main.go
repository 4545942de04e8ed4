package main

import (
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/annaliu2021/SuperHandy-backend-Fork/internal/db"
	"github.com/annaliu2021/SuperHandy-backend-Fork/internal/geocoder"
	"github.com/annaliu2021/SuperHandy-backend-Fork/internal/handler"
	"github.com/annaliu2021/SuperHandy-backend-Fork/internal/lifecycle"
	"github.com/gin-gonic/gin"

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

	r := gin.Default()

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

	// Initialize database connection
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

	httpRequestTimeout := os.Getenv("HTTP_TIMEOUT")
	if httpRequestTimeout == "" {
		httpRequestTimeout = "10s"
	}

	httpRequestTimeoutDuration, err := time.ParseDuration(httpRequestTimeout)
	if err != nil {
		log.Fatalf("Invalid HTTP_TIMEOUT duration %s", err)
	}

	rateLimit := os.Getenv("RATE_LIMIT")
	if rateLimit == "" {
		rateLimit = "10"
	}

	rateLimitInt, err := strconv.Atoi(rateLimit)
	if err != nil {
		log.Fatalf("Invalid RATE_LIMIT value %s", err)
	}

	retriesNum := os.Getenv("RETRIES_NUM")
	if retriesNum == "" {
		retriesNum = "3"
	}

	retriesNumInt, err := strconv.Atoi(retriesNum)
	if err != nil {
		log.Fatalf("Invalid RETRIES_NUM value %s", err)
	}

	geocodingApiKey := os.Getenv("GEOCODING_API_KEY")
	if geocodingApiKey == "" {
		log.Fatal("GEOCODING_API_KEY environment variable is not set")
	}
	geocodingBaseUrl := os.Getenv("GEOCODING_BASE_URL")
	if geocodingBaseUrl == "" {
		log.Fatal("GEOCODING_BASE_URL environment variable is not set")
	}

	limiter := rate.NewLimiter(rate.Every(time.Second), rateLimitInt)
	httpClient := &http.Client{
		Timeout: httpRequestTimeoutDuration,
	}
	geo := geocoder.NewGoogleGeocoder(httpClient, limiter, geocodingApiKey, geocodingBaseUrl, retriesNumInt, zapLogger)

	engine := lifecycle.NewEngine(
		db.NewTaskStore(sqlDB),
		db.NewLedger(sqlDB),
		db.NewTransactionLog(sqlDB),
		geo,
		db.NewAtomic(sqlDB),
		zapLogger,
	)

	handler.SetupHandlers(r, engine, zapLogger)

	// Start the HTTP server
	servicePort := os.Getenv("SERVICE_PORT")
	if servicePort == "" {
		servicePort = "8080" // Default port if not set
	}
	err = r.Run(":" + servicePort)
	if err != nil {
		log.Fatalf("Starting server %s", err)
	}
}
