package main

import (
	"pressroom/internal/config"
	"pressroom/internal/generator"
	"pressroom/internal/mapping"
	"pressroom/internal/pipeline"
	"pressroom/internal/scraper"
	"pressroom/internal/selector"
	"pressroom/internal/uploader"
	"pressroom/internal/webhook"
	"pressroom/pkg/clients/webflow"
	pkgconfig "pressroom/pkg/config"
	"pressroom/pkg/llm"
	"pressroom/pkg/logging"
	"pressroom/pkg/monitoring"
	"pressroom/pkg/server"
	"pressroom/pkg/version"
)

const serviceName = "pressroom"

func main() {
	logger := logging.NewLoggerWithService(serviceName)

	pkgconfig.LoadEnv(logger)
	cfg := config.LoadConfig()

	metricsCollector := monitoring.NewMetricsCollector(serviceName, version.Version, version.GitCommit)

	webflowClient := webflow.NewClient(cfg.WebflowToken)

	provider, err := llm.NewProvider(llm.Config{
		Provider: cfg.LLMProvider,
		Model:    cfg.LLMModel,
		APIKey:   cfg.LLMAPIKey,
		APIURL:   cfg.LLMAPIURL,
	})
	if err != nil {
		logger.WithError(err).Fatal("Failed to configure LLM provider")
	}
	visionClient := llm.NewVisionClient(llm.Config{
		Model:  cfg.VisionModel,
		APIKey: cfg.VisionAPIKey,
		APIURL: cfg.VisionAPIURL,
	})

	imageScraper, err := scraper.New(scraper.Config{
		Logger:     logger,
		StagingDir: cfg.StagingDir,
	})
	if err != nil {
		logger.WithError(err).Fatal("Failed to start headless browser")
	}
	defer imageScraper.Close()

	fieldMap, err := mapping.LoadFieldMap(cfg.FieldMapPath)
	if err != nil {
		logger.WithError(err).Fatal("Failed to load field map")
	}
	tagMap, err := mapping.LoadTagMap(cfg.TagMapPath)
	if err != nil {
		logger.WithError(err).Fatal("Failed to load tag map")
	}

	pipe := pipeline.New(pipeline.Config{
		Generator: generator.New(generator.Config{
			LLM:        provider,
			Logger:     logger,
			ContentDir: cfg.ContentDir,
		}),
		Scraper: imageScraper,
		Selector: selector.New(selector.Config{
			Vision:    visionClient,
			Logger:    logger,
			Threshold: cfg.ScoreThreshold,
		}),
		Uploader:  uploader.New(webflowClient, logger),
		Publisher: webflowClient,
		Mapper: mapping.Builder{
			FieldMap: fieldMap,
			TagMap:   tagMap,
			Logger:   logger,
		},
		Logger:           logger,
		Metrics:          pipeline.NewMetrics(metricsCollector),
		MaxItems:         cfg.MaxItemsPerRequest,
		Workers:          cfg.Workers,
		CreatesPerMinute: cfg.CreatesPerMinute,
		ScrapeTimeout:    cfg.ScrapeTimeout,
		SelectTimeout:    cfg.SelectTimeout,
		UploadTimeout:    cfg.UploadTimeout,
		CreateTimeout:    cfg.CreateTimeout,
		KeepImages:       cfg.KeepImages,
	})

	healthChecker := monitoring.NewHealthChecker(serviceName, version.Version)
	healthChecker.AddCheck("configuration", monitoring.ConfigurationHealthCheck(map[string]string{
		"WEBFLOW_TOKEN": cfg.WebflowToken,
		"LLM_API_KEY":   cfg.LLMAPIKey,
	}))
	healthChecker.AddCheck("browser", monitoring.BrowserHealthCheck(imageScraper.Connected))

	router := server.SetupServiceRouter(logger, serviceName, healthChecker, metricsCollector)

	handler := webhook.NewHandler(webhook.Config{
		Pipeline:     pipe,
		Logger:       logger,
		DefaultCount: cfg.DefaultCount,
	})
	handler.RegisterRoutes(router)

	serverCfg := server.DefaultConfig(serviceName, cfg.Port)
	if err := server.Start(serverCfg, router, logger); err != nil {
		logger.WithError(err).Fatal("Server error")
	}
}
