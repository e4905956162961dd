// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/rs/cors"

	"github.com/okian/modelrank/internal/adapters/identity"
	"github.com/okian/modelrank/internal/domain/dedupe"
	"github.com/okian/modelrank/internal/domain/model"
	"github.com/okian/modelrank/internal/domain/types"
	"github.com/okian/modelrank/pkg/logger"
)

// LedgerDependencies are the registry operations reachable over HTTP.
type LedgerDependencies interface {
	InitializePlatform(ctx context.Context, caller string) error
	TransferOwnership(ctx context.Context, caller, newOwner string) error
	RegisterModel(ctx context.Context, caller string, req types.RegisterModelRequest) (uint64, error)
	SubmitEvaluation(ctx context.Context, evaluator string, modelID uint64, score int, comment *string) error
	WithdrawModelStake(ctx context.Context, caller string, modelID uint64) error
	DeactivateModel(ctx context.Context, caller string, modelID uint64) error

	GetModel(ctx context.Context, id uint64) (model.Model, error)
	IsModelActive(ctx context.Context, id uint64) (types.Activity, error)
	GetEvaluation(ctx context.Context, evaluator string, modelID uint64) (model.Evaluation, error)
	GetReputation(ctx context.Context, participant string) (model.ReputationProfile, error)
	GetStakeAccount(ctx context.Context, participant string) (model.StakeAccount, error)
	GetStakeBalance(ctx context.Context, participant string) (types.StakeBalance, error)
	GetPlatformStats(ctx context.Context) (model.Platform, error)
	IsCategoryValid(name string) bool
	ComputeWeightedScore(score int, reputation uint64) (types.WeightedScore, error)
	ListModelsInCategory(ctx context.Context, name string) ([]model.Model, error)
}

// RankingDependencies expose leaderboard reads.
type RankingDependencies interface {
	Leaderboard(ctx context.Context, category string) (types.Leaderboard, error)
	ModelRank(ctx context.Context, id uint64) (types.ModelRank, error)
	TopModels(ctx context.Context, n int) ([]types.Entry, error)
}

// WalletDependencies expose the value-transfer side.
type WalletDependencies interface {
	Balance(ctx context.Context, who string) (uint64, error)
	Faucet(ctx context.Context, who string) (uint64, error)
}

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	dedupe.Deduper
	LedgerDependencies
	RankingDependencies
	WalletDependencies
}

var validate = validator.New()

// Option configures a Server.
type Option func(*Server)

// WithAuthority sets the bearer token verifier. Without one, mutating routes
// reject every request.
func WithAuthority(a *identity.Authority) Option {
	return func(s *Server) {
		s.authority = a
	}
}

// WithMaxLimit caps GET /rankings?limit.
func WithMaxLimit(limit int) Option {
	return func(s *Server) {
		if limit > 0 {
			s.maxLimit = limit
		}
	}
}

// WithAllowedOrigins sets the CORS origins.
func WithAllowedOrigins(origins []string) Option {
	return func(s *Server) {
		s.origins = origins
	}
}

// WithLogger sets a custom logger for the server.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.log = l
		}
	}
}

// Server wires HTTP routes for the business API.
type Server struct {
	deps      Dependencies
	authority *identity.Authority
	maxLimit  int
	origins   []string
	log       logger.Logger

	healthHandler      *HealthHandler
	statsHandler       *StatsHandler
	platformHandler    *PlatformHandler
	modelsHandler      *ModelsHandler
	categoriesHandler  *CategoriesHandler
	participantHandler *ParticipantsHandler
	rankingsHandler    *RankingsHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, opts ...Option) *Server {
	s := &Server{
		deps:     deps,
		maxLimit: 100,
		origins:  []string{"*"},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = logger.Get().Named("api")
	}

	s.healthHandler = NewHealthHandler()
	s.statsHandler = NewStatsHandler(statsProvider)
	s.platformHandler = NewPlatformHandler(deps)
	s.modelsHandler = NewModelsHandler(deps)
	s.categoriesHandler = NewCategoriesHandler(deps, deps)
	s.participantHandler = NewParticipantsHandler(deps, deps)
	s.rankingsHandler = NewRankingsHandler(deps, deps, s.maxLimit)
	return s
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(ctx context.Context, mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("GET /metrics", MetricsMiddleware(s.healthHandler.HandleMetrics, "metrics"))
	mux.HandleFunc("GET /stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))

	mux.HandleFunc("POST /platform/init", s.mutating(s.platformHandler.HandleInitialize, "platform_init"))
	mux.HandleFunc("POST /platform/owner", s.mutating(s.platformHandler.HandleTransferOwnership, "platform_owner"))
	mux.HandleFunc("GET /platform/stats", MetricsMiddleware(s.platformHandler.HandleStats, "platform_stats"))

	mux.HandleFunc("POST /models", s.mutating(s.modelsHandler.HandleRegister, "models_register"))
	mux.HandleFunc("GET /models/{id}", MetricsMiddleware(s.modelsHandler.HandleGet, "models_get"))
	mux.HandleFunc("GET /models/{id}/active", MetricsMiddleware(s.modelsHandler.HandleActive, "models_active"))
	mux.HandleFunc("GET /models/{id}/rank", MetricsMiddleware(s.rankingsHandler.HandleModelRank, "models_rank"))
	mux.HandleFunc("POST /models/{id}/evaluations", s.mutating(s.modelsHandler.HandleEvaluate, "models_evaluate"))
	mux.HandleFunc("GET /models/{id}/evaluations/{evaluator}", MetricsMiddleware(s.modelsHandler.HandleGetEvaluation, "models_evaluation"))
	mux.HandleFunc("POST /models/{id}/withdraw", s.mutating(s.modelsHandler.HandleWithdraw, "models_withdraw"))
	mux.HandleFunc("POST /models/{id}/deactivate", s.mutating(s.modelsHandler.HandleDeactivate, "models_deactivate"))

	mux.HandleFunc("GET /categories", MetricsMiddleware(s.categoriesHandler.HandleList, "categories"))
	mux.HandleFunc("GET /categories/{category}", MetricsMiddleware(s.categoriesHandler.HandleValidity, "categories_valid"))
	mux.HandleFunc("GET /categories/{category}/leaderboard", MetricsMiddleware(s.categoriesHandler.HandleLeaderboard, "categories_leaderboard"))
	mux.HandleFunc("GET /categories/{category}/models", MetricsMiddleware(s.categoriesHandler.HandleModels, "categories_models"))

	mux.HandleFunc("GET /participants/{id}/reputation", MetricsMiddleware(s.participantHandler.HandleReputation, "participants_reputation"))
	mux.HandleFunc("GET /participants/{id}/stake", MetricsMiddleware(s.participantHandler.HandleStake, "participants_stake"))
	mux.HandleFunc("GET /participants/{id}/balance", MetricsMiddleware(s.participantHandler.HandleBalance, "participants_balance"))
	mux.HandleFunc("POST /dev/faucet", s.mutating(s.participantHandler.HandleFaucet, "dev_faucet"))

	mux.HandleFunc("GET /scoring/weighted", MetricsMiddleware(s.rankingsHandler.HandleWeightedScore, "scoring_weighted"))
	mux.HandleFunc("GET /rankings", MetricsMiddleware(s.rankingsHandler.HandleTop, "rankings"))

	s.log.Debug(ctx, "routes registered")
}

// mutating chains authentication and idempotency in front of h.
func (s *Server) mutating(h http.HandlerFunc, endpoint string) http.HandlerFunc {
	return MetricsMiddleware(Authenticate(s.authority, Idempotent(s.deps, h)), endpoint)
}

// Handler wraps mux with request ids and CORS.
func (s *Server) Handler(mux http.Handler) http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins: s.origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type", HeaderIdempotencyKey, HeaderRequestID},
		ExposedHeaders: []string{HeaderRequestID},
		MaxAge:         600,
	})
	return c.Handler(RequestID(mux))
}

type errorResponse struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg, RequestID: w.Header().Get(HeaderRequestID)})
}

// decode reads a JSON body into v and applies its validate tags.
func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errors.Join(ErrBadRequest, err)
	}
	if err := validate.Struct(v); err != nil {
		return errors.Join(ErrBadRequest, err)
	}
	return nil
}

// modelID parses the {id} path value.
func modelID(r *http.Request) (uint64, error) {
	id, err := strconv.ParseUint(r.PathValue("id"), 10, 64)
	if err != nil {
		return 0, errors.Join(ErrBadRequest, err)
	}
	return id, nil
}
