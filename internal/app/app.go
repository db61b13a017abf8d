// Package app wires configuration into a ready message service. All three
// entrypoints share it.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"travel-agent/internal/config"
	"travel-agent/internal/extraction"
	"travel-agent/internal/integrations/gemini"
	"travel-agent/internal/integrations/mistral"
	"travel-agent/internal/integrations/paramstore"
	"travel-agent/internal/integrations/rasp"
	"travel-agent/internal/repository"
	"travel-agent/internal/usecase"
)

var newRedisClient = repository.NewRedis

// App holds the wired service and everything that must be closed with it.
type App struct {
	Service      *usecase.Service
	Orchestrator *extraction.Orchestrator
	Registry     *prometheus.Registry

	closers []func() error
}

// New builds the service described by cfg. AWS configuration is loaded only
// when a DynamoDB store or Parameter Store secrets are needed.
// Clients opened before a failing step are closed before New returns.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{Registry: prometheus.NewRegistry()}
	a.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	if err := a.wire(ctx, cfg, logger); err != nil {
		if cerr := a.Close(); cerr != nil {
			logger.Warn("failed to close partially wired clients", "err", cerr)
		}
		return nil, err
	}
	return a, nil
}

func (a *App) wire(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	var awsCfg *aws.Config
	loadAWS := func() (aws.Config, error) {
		if awsCfg != nil {
			return *awsCfg, nil
		}
		c, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return aws.Config{}, fmt.Errorf("app: load AWS config: %w", err)
		}
		awsCfg = &c
		return c, nil
	}

	var params *paramstore.Client
	if cfg.ParamPrefix != "" {
		c, err := loadAWS()
		if err != nil {
			return err
		}
		params, err = paramstore.New(awsssm.NewFromConfig(c))
		if err != nil {
			return fmt.Errorf("app: create paramstore client: %w", err)
		}
	}

	store, err := a.newStore(cfg, loadAWS)
	if err != nil {
		return err
	}

	completer, err := a.newCompleter(ctx, cfg, params)
	if err != nil {
		return err
	}

	pattern := extraction.NewPattern(extraction.WithLocation(cfg.Location))
	var remote extraction.Extractor
	if completer != nil {
		r, err := extraction.NewRemote(completer,
			extraction.WithTimeout(cfg.Remote.Timeout),
			extraction.WithHistoryWindow(cfg.Remote.HistoryWindow),
			extraction.WithRateLimit(cfg.Remote.RatePerSecond, cfg.Remote.Burst),
			extraction.WithRemoteLocation(cfg.Location),
		)
		if err != nil {
			return fmt.Errorf("app: create remote extractor: %w", err)
		}
		remote = r
	}
	a.Orchestrator, err = extraction.NewOrchestrator(remote, pattern,
		extraction.WithLogger(logger),
		extraction.WithMetrics(extraction.NewMetrics(a.Registry)),
	)
	if err != nil {
		return fmt.Errorf("app: create orchestrator: %w", err)
	}

	planner, err := newPlanner(ctx, cfg, params, logger)
	if err != nil {
		return err
	}

	a.Service, err = usecase.NewService(store, a.Orchestrator, planner,
		usecase.WithHistoryWindow(cfg.Remote.HistoryWindow),
		usecase.WithMaxTextLength(cfg.MaxTextLength),
		usecase.WithLogger(logger),
		usecase.WithMetrics(usecase.NewMetrics(a.Registry)),
	)
	if err != nil {
		return fmt.Errorf("app: create service: %w", err)
	}
	return nil
}

// Close releases clients opened by New. Calling it twice is a no-op.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}

func (a *App) newStore(cfg config.Config, loadAWS func() (aws.Config, error)) (usecase.ConversationStore, error) {
	switch cfg.State.Backend {
	case config.BackendDynamoDB:
		c, err := loadAWS()
		if err != nil {
			return nil, err
		}
		s, err := repository.NewDynamoStore(awsdynamodb.NewFromConfig(c), cfg.State.Table,
			repository.WithDynamoTTL(cfg.State.TTL),
			repository.WithDynamoMaxHistory(cfg.State.MaxHistory),
		)
		if err != nil {
			return nil, fmt.Errorf("app: create dynamodb store: %w", err)
		}
		return s, nil
	case config.BackendRedis:
		rdb := newRedisClient(cfg.State.RedisAddr)
		a.closers = append(a.closers, rdb.Close)
		s, err := repository.NewRedisStore(rdb,
			repository.WithRedisTTL(cfg.State.TTL),
			repository.WithRedisMaxHistory(cfg.State.MaxHistory),
		)
		if err != nil {
			return nil, fmt.Errorf("app: create redis store: %w", err)
		}
		return s, nil
	default:
		return repository.NewMemoryStore(cfg.State.MaxHistory), nil
	}
}

func (a *App) newCompleter(ctx context.Context, cfg config.Config, params *paramstore.Client) (extraction.Completer, error) {
	switch cfg.Remote.Provider {
	case config.ProviderMistral:
		opts := []mistral.Option{mistral.WithModel(cfg.Remote.Model), mistral.WithBaseURL(cfg.Mistral.URL)}
		if cfg.Mistral.APIKey != "" {
			opts = append(opts, mistral.WithAPIKey(cfg.Mistral.APIKey))
		} else if params != nil {
			opts = append(opts, mistral.WithParamStore(params, cfg.ParamPrefix))
		}
		c, err := mistral.NewClient(opts...)
		if err != nil {
			return nil, fmt.Errorf("app: create mistral client: %w", err)
		}
		return c, nil
	case config.ProviderGemini:
		c, err := gemini.NewClient(ctx, cfg.Gemini.APIKey, gemini.WithModel(cfg.Remote.Model))
		if err != nil {
			return nil, fmt.Errorf("app: create gemini client: %w", err)
		}
		a.closers = append(a.closers, c.Close)
		return c, nil
	default:
		return nil, nil
	}
}

// newPlanner uses Yandex Rasp when a key is available, directly or from
// Parameter Store, and the preview planner otherwise.
func newPlanner(ctx context.Context, cfg config.Config, params *paramstore.Client, logger *slog.Logger) (usecase.Planner, error) {
	key := cfg.Rasp.APIKey
	if key == "" && params != nil {
		token, err := paramstore.Token(ctx, params, strings.TrimRight(cfg.ParamPrefix, "/")+"/rasp-token")
		switch {
		case err == nil:
			key = token
		case errors.Is(err, paramstore.ErrNotFound):
		default:
			return nil, fmt.Errorf("app: load rasp token: %w", err)
		}
	}
	if key == "" {
		logger.Warn("no schedule provider key configured, using preview planner")
		return usecase.PreviewPlanner{Location: cfg.Location}, nil
	}

	client, err := rasp.NewClient(key, rasp.WithBaseURL(cfg.Rasp.URL))
	if err != nil {
		return nil, fmt.Errorf("app: create rasp client: %w", err)
	}
	p, err := rasp.NewPlanner(client, rasp.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("app: create rasp planner: %w", err)
	}
	return p, nil
}
