// Copyright 2020 gorse Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/emicklei/go-restful/v3"
	"github.com/gorse-io/gorse-movies/common/log"
	"github.com/gorse-io/gorse-movies/common/parallel"
	"github.com/gorse-io/gorse-movies/config"
	"github.com/gorse-io/gorse-movies/dataset"
	"github.com/gorse-io/gorse-movies/logics"
	"github.com/gorse-io/gorse-movies/protocol"
	"github.com/gorse-io/gorse-movies/storage/blob"
	"github.com/juju/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/atomic"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
)

// State of a server. Transitions are Idle to Loading to Serving.
type State int32

const (
	Idle State = iota
	Loading
	Serving
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Loading:
		return "loading"
	case Serving:
		return "serving"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Server serves recommendations from an immutable dataset snapshot over gRPC and HTTP.
type Server struct {
	protocol.UnimplementedRecommendationServiceServer
	Config     *config.Config
	WebService *restful.WebService

	state   atomic.Int32
	dataset atomic.Pointer[dataset.Dataset]
	cache   *LocalCache
	limiter parallel.RateLimiter
	health  *health.Server
	tracer  trace.Tracer

	mu         sync.Mutex
	closed     bool
	grpcServer *grpc.Server
	httpServer *http.Server
}

// NewServer creates an idle server.
func NewServer(cfg *config.Config) *Server {
	s := &Server{
		Config:     cfg,
		WebService: new(restful.WebService),
		cache:      NewLocalCache(cfg.Cache),
		limiter:    parallel.NewRateLimiter(cfg.Server.MaxRequestsPerSecond),
		health:     health.NewServer(),
		tracer:     otel.Tracer("gorse-movies"),
	}
	s.setState(Idle)
	s.CreateWebService()
	return s
}

func (s *Server) State() State {
	return State(s.state.Load())
}

func (s *Server) setState(state State) {
	s.state.Store(int32(state))
	ServerState.Set(float64(state))
	servingStatus := grpc_health_v1.HealthCheckResponse_NOT_SERVING
	if state == Serving {
		servingStatus = grpc_health_v1.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus("", servingStatus)
	s.health.SetServingStatus(protocol.RecommendationService_ServiceName, servingStatus)
}

// Load reads the dataset from the store and starts serving it. A failed load returns
// the server to Idle.
func (s *Server) Load(ctx context.Context, store blob.Store) error {
	if !s.state.CompareAndSwap(int32(Idle), int32(Loading)) {
		return errors.Errorf("failed to load dataset in %v state", s.State())
	}
	s.setState(Loading)
	log.Logger().Info("start loading dataset", zap.String("storage", s.Config.Dataset.Storage))
	start := time.Now()
	d, err := dataset.Load(ctx, store, s.Config.Dataset)
	if err != nil {
		s.setState(Idle)
		return errors.Trace(err)
	}
	LoadDatasetSeconds.Set(time.Since(start).Seconds())
	s.Publish(d)
	return nil
}

// Publish replaces the snapshot and starts serving it.
func (s *Server) Publish(d *dataset.Dataset) {
	s.dataset.Store(d)
	s.cache.Clear()
	s.setState(Serving)
	log.Logger().Info("service is serving",
		zap.Int("n_users", d.CountUsers()),
		zap.Int("n_items", d.CountItems()),
		zap.Int("n_movies", d.CountMovies()))
}

// Recommend ranks at most n items for id with the named recommender. Zero n selects
// the configured default.
func (s *Server) Recommend(ctx context.Context, recommender, id string, n int) ([]string, error) {
	_, span := s.tracer.Start(ctx, recommender)
	defer span.End()
	span.SetAttributes(attribute.String("id", id), attribute.Int("n", n))

	if id == "" {
		return nil, errors.NotValidf("empty identifier")
	}
	if n < 0 {
		return nil, errors.NotValidf("n = %d", n)
	}
	if n == 0 {
		n = s.Config.Server.DefaultN
	}
	d := s.dataset.Load()
	if s.State() != Serving || d == nil {
		return nil, errors.Trace(ErrNotServing)
	}
	key := cacheKey{snapshot: d, recommender: recommender, id: id, n: n}
	if result, ok := s.cache.Get(key); ok {
		return result, nil
	}
	recommend, err := logics.NewRecommender(d).Parse(recommender)
	if err != nil {
		return nil, errors.Trace(err)
	}
	start := time.Now()
	result, err := recommend(id, n)
	if err != nil {
		span.RecordError(err)
		return nil, errors.Trace(err)
	}
	RecommendSeconds.WithLabelValues(recommender).Observe(time.Since(start).Seconds())
	s.cache.Set(key, result)
	return result, nil
}

func (s *Server) GetRecommendations(ctx context.Context, in *protocol.RecommendationRequest) (*protocol.RecommendationResponse, error) {
	movieIds, err := s.Recommend(ctx, logics.Collaborative, in.GetUserId(), int(in.GetN()))
	if err != nil {
		return nil, toStatus(err)
	}
	return &protocol.RecommendationResponse{MovieIds: movieIds}, nil
}

func (s *Server) GetRecommendationsByItem(ctx context.Context, in *protocol.ItemRecommendationRequest) (*protocol.RecommendationResponse, error) {
	movieIds, err := s.Recommend(ctx, logics.ContentBased, in.GetMovieId(), int(in.GetN()))
	if err != nil {
		return nil, toStatus(err)
	}
	return &protocol.RecommendationResponse{MovieIds: movieIds}, nil
}

// ListenAndServe listens on the configured addresses and serves until Shutdown.
func (s *Server) ListenAndServe() error {
	grpcLis, err := net.Listen("tcp", fmt.Sprintf("%s:%d", s.Config.Server.Host, s.Config.Server.Port))
	if err != nil {
		return errors.Trace(err)
	}
	httpLis, err := net.Listen("tcp", fmt.Sprintf("%s:%d", s.Config.Server.HttpHost, s.Config.Server.HttpPort))
	if err != nil {
		_ = grpcLis.Close()
		return errors.Trace(err)
	}
	return s.Serve(grpcLis, httpLis)
}

// Serve accepts gRPC and HTTP connections until Shutdown or either server fails.
func (s *Server) Serve(grpcLis, httpLis net.Listener) error {
	grpcServer, err := s.NewGRPCServer()
	if err != nil {
		return errors.Trace(err)
	}
	httpServer := &http.Server{Handler: s.NewHTTPHandler()}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		_ = grpcLis.Close()
		_ = httpLis.Close()
		return nil
	}
	s.grpcServer, s.httpServer = grpcServer, httpServer
	s.mu.Unlock()

	log.Logger().Info("start rpc server",
		zap.String("address", grpcLis.Addr().String()),
		zap.Bool("ssl_mode", s.Config.Server.SSLMode),
		zap.Int("num_workers", s.Config.Server.NumWorkers))
	log.Logger().Info("start http server",
		zap.String("url", fmt.Sprintf("http://%s", httpLis.Addr().String())))
	errs := make(chan error, 2)
	go func() {
		errs <- errors.Annotate(grpcServer.Serve(grpcLis), "rpc server")
	}()
	go func() {
		if err := httpServer.Serve(httpLis); !errors.Is(err, http.ErrServerClosed) {
			errs <- errors.Annotate(err, "http server")
			return
		}
		errs <- nil
	}()
	var firstErr error
	for range 2 {
		if err := <-errs; err != nil && firstErr == nil {
			firstErr = err
			s.Shutdown()
		}
	}
	return firstErr
}

// Shutdown stops both servers gracefully.
func (s *Server) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.health.Shutdown()
	if s.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(ctx); err != nil {
			log.Logger().Error("failed to shutdown http server", zap.Error(err))
		}
	}
	if s.grpcServer != nil {
		s.grpcServer.GracefulStop()
	}
}

// Close releases background resources.
func (s *Server) Close() {
	s.cache.Stop()
}
