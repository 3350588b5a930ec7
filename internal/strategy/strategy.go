package strategy

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/galoberlyn/beezbuddy-be/internal/knowledge"
	"github.com/galoberlyn/beezbuddy-be/pkg/llm"
	"github.com/galoberlyn/beezbuddy-be/pkg/logging"
)

// ErrInitializationTimeout is returned when a strategy does not finish its
// lazy initialization within the bounded wait.
var ErrInitializationTimeout = errors.New("model strategy initialization timed out")

const (
	initAttempts = 30
	initInterval = time.Second
)

// Strategy names
const (
	Ollama    = "ollama"
	OpenAI    = "openai"
	Anthropic = "anthropic"
)

// Ollama defaults, applied when a switch omits config.
const (
	defaultOllamaModel          = "llama3.2:latest"
	defaultOllamaEmbeddingModel = "nomic-embed-text:v1.5"
	defaultOllamaBaseURL        = "http://127.0.0.1:11434"
	defaultOllamaTemperature    = 0.7
)

// Config bundles the chat and embedding model bindings for one strategy.
type Config struct {
	Chat      llm.Config
	Embedding llm.Config
}

// Strategy is an immutable bundle of chat model, embedding model and vector
// index handles. Once resolved by a request it never changes underneath it;
// switching builds a fresh instance instead of mutating this one.
type Strategy struct {
	Name string

	provider   llm.Provider
	embeddings llm.EmbeddingClient
	vectors    knowledge.Searcher

	initOnce sync.Once
	initDone chan struct{}
	initErr  error
	dims     int
}

// Provider returns the chat model handle.
func (s *Strategy) Provider() llm.Provider { return s.provider }

// Embeddings returns the embedding model handle.
func (s *Strategy) Embeddings() llm.EmbeddingClient { return s.embeddings }

// Vectors returns the vector index handle.
func (s *Strategy) Vectors() knowledge.Searcher { return s.vectors }

// Dimensions reports the embedding dimensions discovered during
// initialization. Zero until the strategy is ready.
func (s *Strategy) Dimensions() int { return s.dims }

// WaitReady blocks until lazy initialization completes, polling in bounded
// attempts. After the bound it declares initialization failed.
func (s *Strategy) WaitReady(ctx context.Context) error {
	s.startInit()

	for attempt := 0; attempt < initAttempts; attempt++ {
		select {
		case <-s.initDone:
			return s.initErr
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(initInterval):
		}
	}
	return ErrInitializationTimeout
}

func (s *Strategy) startInit() {
	s.initOnce.Do(func() {
		go func() {
			defer close(s.initDone)
			ctx, cancel := context.WithTimeout(context.Background(), initAttempts*initInterval)
			defer cancel()

			dims, err := llm.ProbeEmbeddingDimensions(ctx, s.embeddings)
			if err != nil {
				s.initErr = fmt.Errorf("initialize strategy %s: %w", s.Name, err)
				return
			}
			s.dims = dims
		}()
	})
}

// Registry holds the active strategy and constructs replacements. Resolve
// hands out the active instance as an immutable per-request handle, so a
// concurrent Switch never changes the bindings of an in-flight request.
type Registry struct {
	mu         sync.RWMutex
	active     *Strategy
	vectors    knowledge.Searcher
	production bool
	logger     logging.Logger
}

// NewRegistry creates a registry bound to the given vector index. In
// non-production environments every switch is forced to the local ollama
// strategy.
func NewRegistry(vectors knowledge.Searcher, production bool, logger logging.Logger) *Registry {
	return &Registry{
		vectors:    vectors,
		production: production,
		logger:     logger,
	}
}

// Switch replaces the active strategy with a freshly constructed instance.
// Defaults are applied when the config omits fields. The previous instance
// is not torn down; strategies are cheap handles over remote services and
// in-flight requests may still hold it.
func (r *Registry) Switch(name string, cfg Config) (*Strategy, error) {
	if !r.production && !strings.EqualFold(name, Ollama) {
		r.logger.WithField("requested", name).Info("Non-production environment; forcing ollama strategy")
		name = Ollama
	}

	built, err := r.build(name, cfg)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.active = built
	r.mu.Unlock()

	r.logger.WithFields(logging.Fields{
		"strategy":        built.Name,
		"chat_model":      cfg.Chat.Model,
		"embedding_model": cfg.Embedding.Model,
	}).Info("Model strategy switched")

	built.startInit()
	return built, nil
}

// Resolve returns the active strategy once it is ready. Callers keep the
// returned handle for the whole request.
func (r *Registry) Resolve(ctx context.Context) (*Strategy, error) {
	r.mu.RLock()
	active := r.active
	r.mu.RUnlock()

	if active == nil {
		return nil, errors.New("no model strategy configured")
	}
	if err := active.WaitReady(ctx); err != nil {
		return nil, err
	}
	return active, nil
}

func (r *Registry) build(name string, cfg Config) (*Strategy, error) {
	name = strings.ToLower(name)
	switch name {
	case Ollama:
		cfg = applyOllamaDefaults(cfg)
	case OpenAI, Anthropic:
		cfg.Chat.Provider = name
		if cfg.Embedding.Provider == "" {
			cfg.Embedding.Provider = OpenAI
		}
	default:
		return nil, fmt.Errorf("unknown model strategy %q", name)
	}

	provider, err := llm.NewProvider(cfg.Chat)
	if err != nil {
		return nil, fmt.Errorf("build %s chat model: %w", name, err)
	}
	embeddings, err := llm.NewEmbeddingClient(cfg.Embedding)
	if err != nil {
		return nil, fmt.Errorf("build %s embedding model: %w", name, err)
	}

	return &Strategy{
		Name:       name,
		provider:   provider,
		embeddings: embeddings,
		vectors:    r.vectors,
		initDone:   make(chan struct{}),
	}, nil
}

func applyOllamaDefaults(cfg Config) Config {
	cfg.Chat.Provider = Ollama
	if cfg.Chat.Model == "" {
		cfg.Chat.Model = defaultOllamaModel
	}
	if cfg.Chat.APIURL == "" {
		cfg.Chat.APIURL = defaultOllamaBaseURL
	}
	if cfg.Chat.Temperature == nil {
		t := defaultOllamaTemperature
		cfg.Chat.Temperature = &t
	}
	cfg.Embedding.Provider = Ollama
	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = defaultOllamaEmbeddingModel
	}
	if cfg.Embedding.APIURL == "" {
		cfg.Embedding.APIURL = defaultOllamaBaseURL
	}
	return cfg
}
