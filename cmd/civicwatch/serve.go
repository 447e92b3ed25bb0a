package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"civicwatch/internal/classifier"
	"civicwatch/internal/db"
	"civicwatch/internal/ingest"
	"civicwatch/internal/server"
	"civicwatch/internal/storage"
	"civicwatch/internal/store"
	"civicwatch/pkg/types"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

var serveCommand = &cli.Command{
	Name:   "serve",
	Usage:  "Start the HTTP server",
	Action: serve,
}

func serve(cCtx *cli.Context) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	config, err := loadConfig(cCtx.String("env-prefix"))
	if err != nil {
		return err
	}

	objects, err := newObjectStore(ctx, config)
	if err != nil {
		return err
	}

	vision, err := classifier.New(classifierConfig(config))
	if err != nil {
		return fmt.Errorf("failed to initialize classifier: %w", err)
	}
	if config.ClassifierAPIKey == "" {
		logger.Warn("CLASSIFIER_API_KEY not set, every sighting will use the fallback classification")
	}

	pool, err := db.Connect(ctx, config)
	if err != nil {
		return err
	}
	defer pool.Close()

	reportRepo := store.NewReportRepository(pool)
	deviceRepo := store.NewDeviceRepository(pool)

	pipeline, err := ingest.NewPipeline(logger, vision, objects, reportRepo, deviceRepo, fallbackClassification(config))
	if err != nil {
		return err
	}

	srv := server.New(config, logger, pipeline, reportRepo, deviceRepo)

	go func() {
		logger.WithFields(logrus.Fields{
			"port":    config.ServerPort,
			"storage": config.StorageBackend,
		}).Infof("server starting http://localhost:%d", config.ServerPort)
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("server failed")
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return srv.Stop(shutdownCtx)
}

func newObjectStore(ctx context.Context, config *types.Config) (storage.ObjectStore, error) {
	switch config.StorageBackend {
	case types.StorageBackendSupabase:
		return storage.NewSupabaseStorage(config.SupabaseProjectID, config.SupabaseAPIKey, config.SupabaseBucketName), nil
	default:
		awsConfig, err := loadAWSConfig(ctx)
		if err != nil {
			return nil, err
		}
		return storage.NewS3Storage(s3.NewFromConfig(awsConfig), config.S3BucketName, config.S3PublicBaseURL), nil
	}
}
