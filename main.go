package main

import (
	"go.uber.org/zap"

	"github.com/lourdes7u7/analisisAudio/internal/analyze"
	"github.com/lourdes7u7/analisisAudio/internal/audio"
	"github.com/lourdes7u7/analisisAudio/internal/config"
	"github.com/lourdes7u7/analisisAudio/internal/handlers"
	"github.com/lourdes7u7/analisisAudio/internal/logging"
	"github.com/lourdes7u7/analisisAudio/internal/router"
	"github.com/lourdes7u7/analisisAudio/internal/store"
	"github.com/lourdes7u7/analisisAudio/internal/transcribe"
)

func main() {
	// Initialize Logger
	log, err := logging.Init("logs")
	if err != nil {
		panic("failed to initialize logger: " + err.Error())
	}
	defer log.Sync()

	// Initialize configuration
	if err := config.Init(".", log); err != nil {
		log.Fatal("Failed to load configuration", zap.Error(err))
	}

	// Report persistence: flat JSON files by default, PostgreSQL when
	// configured.
	var reportStore store.Store
	switch config.Conf.Storage.Backend {
	case "db":
		reportStore, err = store.NewDBStore(config.Conf.Database, log)
	default:
		reportStore, err = store.NewFileStore(config.Conf.Storage.ResultsDir, log)
	}
	if err != nil {
		log.Fatal("Failed to initialize report store", zap.Error(err))
	}
	locks := store.NewKeyedLock()

	// Analysis pipeline and its adapters
	segmenter := audio.NewSilenceSegmenter()
	segmenter.TopDB = config.Conf.Audio.TopDB
	analyzer := audio.NewPitchAnalyzer()
	transcriber := transcribe.NewWitClient(config.Conf.STT, log)

	pipeline := analyze.NewPipeline(
		log,
		reportStore,
		locks,
		segmenter,
		analyzer,
		transcriber,
		config.Conf.Server.UploadDir,
		config.Conf.Audio.MinSegmentSeconds,
	)

	// Handlers and router
	reportHandler := handlers.NewReportHandler(log, reportStore, locks)
	analyzeHandler := handlers.NewAnalyzeHandler(log, pipeline)
	r := router.Setup(log, reportHandler, analyzeHandler)

	// Start the Gin server
	port := ":" + config.Conf.Server.Port
	log.Info("Server listening on http://localhost" + port)
	if err := r.Run(port); err != nil {
		log.Fatal("Failed to run Gin server", zap.Error(err))
	}
}
