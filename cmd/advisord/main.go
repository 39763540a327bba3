package main

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/orchardfi/advisor/internal/actions"
	"github.com/orchardfi/advisor/internal/api"
	"github.com/orchardfi/advisor/internal/chain"
	"github.com/orchardfi/advisor/internal/config"
	"github.com/orchardfi/advisor/internal/custody"
	"github.com/orchardfi/advisor/internal/engine"
	"github.com/orchardfi/advisor/internal/executor"
	"github.com/orchardfi/advisor/internal/extract"
	"github.com/orchardfi/advisor/internal/llm"
	"github.com/orchardfi/advisor/internal/market"
	"github.com/orchardfi/advisor/internal/memory"
)

func main() {
	log := zerolog.New(os.Stderr).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		log.Fatal().Err(err).Msg("create data dir")
	}

	db, err := memory.Open(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Msg("open db")
	}
	defer db.Close()
	store := memory.NewStore(db)

	llmClient, err := llm.NewClient(llm.Config{
		Provider:   cfg.LLMProvider,
		Model:      cfg.LLMModel,
		SmallModel: cfg.LLMSmallModel,
		APIKey:     cfg.LLMAPIKey,
		Timeout:    cfg.ExternalCallTimeout,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("init llm client")
	}

	dialCtx, dialCancel := context.WithTimeout(context.Background(), cfg.ExternalCallTimeout)
	chainClient, err := chain.Dial(dialCtx, chain.Config{
		RPCURL:     cfg.RPCURL,
		ChainID:    cfg.ChainID,
		PrivateKey: cfg.AgentPrivateKey,
	})
	dialCancel()
	if err != nil {
		log.Fatal().Err(err).Msg("dial chain RPC")
	}
	defer chainClient.Close()

	marketProvider := &market.Provider{
		Chain: chainClient,
		Log:   log.With().Str("component", "market").Logger(),
	}
	custodyClient := custody.NewClient(cfg.CustodyBaseURL, cfg.ExternalCallTimeout)
	executorClient := executor.NewClient(
		cfg.ExecutorBaseURL, cfg.AgentID, cfg.ExternalCallTimeout,
		executor.DefaultPolicy,
		log.With().Str("component", "executor").Logger(),
	)

	deps := &actions.Deps{
		Store:    store,
		Extract:  &extract.Extractor{LLM: llmClient},
		Custody:  custodyClient,
		Chain:    chainClient,
		Executor: executorClient,
		Market:   marketProvider,
		AgentID:  cfg.AgentID,
		Log:      log.With().Str("component", "actions").Logger(),
	}
	eng := engine.New(store, deps, log.With().Str("component", "engine").Logger())

	apiServer := &api.Server{
		Engine:    eng,
		Store:     store,
		Market:    marketProvider,
		Hub:       api.NewHub(),
		StartedAt: time.Now(),
		Log:       log.With().Str("component", "api").Logger(),
	}

	listener, err := net.Listen("tcp", cfg.HTTPAddr)
	if err != nil {
		log.Fatal().Err(err).Msg("listen")
	}

	httpServer := &http.Server{
		Handler:           loggingMiddleware(log, apiServer.Handler()),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info().Str("addr", listener.Addr().String()).Str("agent_id", cfg.AgentID).Msg("advisord listening")
		if err := httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("http server error")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("server shutdown error")
	}
	_ = httpServer.Close()
}

func loggingMiddleware(log zerolog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Info().Str("method", r.Method).Str("path", r.URL.Path).Dur("duration", time.Since(start)).Msg("request")
	})
}
