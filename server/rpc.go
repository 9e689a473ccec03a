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
	"strings"
	"time"

	"github.com/gorse-io/gorse-movies/common/log"
	"github.com/gorse-io/gorse-movies/common/util"
	"github.com/gorse-io/gorse-movies/protocol"
	"github.com/juju/errors"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
)

// NewGRPCServer creates a gRPC server hosting the recommendation and health services.
func (s *Server) NewGRPCServer() (*grpc.Server, error) {
	opts := []grpc.ServerOption{
		grpc.NumStreamWorkers(uint32(s.Config.Server.NumWorkers)),
		grpc.ChainUnaryInterceptor(s.logInterceptor, s.rateLimitInterceptor),
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
	}
	if s.Config.Server.SSLMode {
		c, err := util.NewServerCreds(&util.TLSConfig{
			SSLCA:   s.Config.Server.SSLCA,
			SSLCert: s.Config.Server.SSLCert,
			SSLKey:  s.Config.Server.SSLKey,
		})
		if err != nil {
			return nil, errors.Annotate(err, "failed to load server TLS")
		}
		opts = append(opts, grpc.Creds(c))
	}
	grpcServer := grpc.NewServer(opts...)
	protocol.RegisterRecommendationServiceServer(grpcServer, s)
	grpc_health_v1.RegisterHealthServer(grpcServer, s.health)
	return grpcServer, nil
}

func (s *Server) logInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	code := status.Code(err)
	RequestsTotal.WithLabelValues(info.FullMethod, code.String()).Inc()
	fields := []zap.Field{
		zap.String("method", info.FullMethod),
		zap.String("code", code.String()),
		zap.Duration("duration", time.Since(start)),
	}
	logger := log.ContextLogger(ctx)
	switch code {
	case codes.OK:
		logger.Debug("request served", fields...)
	case codes.Unknown, codes.Internal:
		logger.Error("request failed", append(fields, zap.Error(err))...)
	default:
		logger.Info("request rejected", append(fields, zap.Error(err))...)
	}
	return resp, err
}

func (s *Server) rateLimitInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	if strings.HasPrefix(info.FullMethod, "/"+protocol.RecommendationService_ServiceName+"/") &&
		s.limiter.TakeAvailable(1) == 0 {
		return nil, toStatus(errors.Trace(ErrRateLimited))
	}
	return handler(ctx, req)
}
