// Copyright (C) 2026 Seabird Labs (oss@seabirdlabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sashabaranov/go-openai"
	"github.com/spf13/cobra"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"

	"github.com/seabird-labs/cormorant/pkg/logging"
	"github.com/seabird-labs/cormorant/services/retrieval"
	"github.com/seabird-labs/cormorant/services/retrieval/techniques"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the orchestration HTTP service",
	RunE: func(cmd *cobra.Command, args []string) error {
		var err error
		config, err = loadConfig(configPath)
		if err != nil {
			return err
		}
		return runServe()
	},
}

func runServe() error {
	logger := logging.New(logging.Config{
		Level:   logging.ParseLevel(config.Logging.Level),
		LogDir:  config.Logging.LogDir,
		Service: "cormorant",
		JSON:    config.Logging.JSON,
		Quiet:   config.Logging.Quiet,
	})
	defer logger.Close()
	slog.SetDefault(logger.Slog())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if config.Telemetry.OTLPEndpoint != "" {
		cleanup, err := initTracer(config.Telemetry.OTLPEndpoint)
		if err != nil {
			return fmt.Errorf("setting up OTLP tracer: %w", err)
		}
		defer cleanup(context.Background())
	}

	promRegistry, err := initMetrics()
	if err != nil {
		return fmt.Errorf("setting up metrics exporter: %w", err)
	}

	orch := retrieval.New(config.Orchestrator, logger.Slog())

	weaviateClient := newWeaviateClient(config.Weaviate.URL)
	var llmClient *openai.Client
	if config.OpenAI.Enabled {
		llmClient = newOpenAIClient()
	}
	if err := techniques.RegisterBuiltins(orch, weaviateClient, llmClient); err != nil {
		return fmt.Errorf("registering built-in techniques: %w", err)
	}
	slog.Info("techniques registered",
		"count", orch.Status().RegisteredTechniques,
		"weaviate", weaviateClient != nil,
		"openai", llmClient != nil)

	router := gin.Default()
	router.Use(otelgin.Middleware("cormorant"))
	retrieval.SetupRoutes(router, orch)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(promRegistry,
		promhttp.HandlerOpts{})))

	server := &http.Server{
		Addr:    ":" + config.Server.Port,
		Handler: router,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("starting cormorant server", "port", config.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// initTracer wires OTLP-over-gRPC trace export and returns its shutdown.
func initTracer(endpoint string) (func(context.Context), error) {
	ctx := context.Background()

	conn, err := grpc.NewClient(endpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, err
	}
	traceExporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, err
	}
	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String("cormorant")))
	if err != nil {
		return nil, err
	}
	bsp := sdktrace.NewBatchSpanProcessor(traceExporter)
	traceProvider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(bsp))
	otel.SetTracerProvider(traceProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{}))

	return func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, time.Second*5)
		defer cancel()
		if err := traceExporter.Shutdown(ctx); err != nil {
			slog.Error("failed to shutdown OTLP exporter", "error", err)
		}
	}, nil
}

// initMetrics installs a Prometheus-backed otel meter provider and returns
// the registry for the /metrics endpoint.
func initMetrics() (*promclient.Registry, error) {
	registry := promclient.NewRegistry()
	exporter, err := prometheus.New(prometheus.WithRegisterer(registry))
	if err != nil {
		return nil, err
	}
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	otel.SetMeterProvider(provider)
	return registry, nil
}

// newWeaviateClient builds a client from the configured URL, nil when the
// URL is absent or malformed (the searches are simply not registered).
func newWeaviateClient(rawURL string) *weaviate.Client {
	rawURL = strings.Trim(rawURL, "\"' ")
	if rawURL == "" {
		slog.Info("Weaviate URL not configured, search techniques disabled")
		return nil
	}

	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		slog.Warn("Weaviate URL is invalid, search techniques disabled",
			"url", rawURL, "error", err)
		return nil
	}

	client, err := weaviate.NewClient(weaviate.Config{
		Host:   parsed.Host,
		Scheme: parsed.Scheme,
	})
	if err != nil {
		slog.Error("Failed to create Weaviate client", "error", err)
		return nil
	}
	return client
}

// newOpenAIClient builds a client from OPENAI_API_KEY, nil when unset.
func newOpenAIClient() *openai.Client {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		slog.Warn("OPENAI_API_KEY not set, LLM techniques disabled")
		return nil
	}
	return openai.NewClient(apiKey)
}
