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

package client

import (
	"context"

	"github.com/gorse-io/gorse-movies/common/util"
	"github.com/gorse-io/gorse-movies/protocol"
	"github.com/juju/errors"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health/grpc_health_v1"
)

// Client calls the movie recommendation service.
type Client struct {
	conn   *grpc.ClientConn
	client protocol.RecommendationServiceClient
	health grpc_health_v1.HealthClient
}

// NewClient creates a client over an established connection.
func NewClient(conn grpc.ClientConnInterface) *Client {
	c := &Client{
		client: protocol.NewRecommendationServiceClient(conn),
		health: grpc_health_v1.NewHealthClient(conn),
	}
	if cc, ok := conn.(*grpc.ClientConn); ok {
		c.conn = cc
	}
	return c
}

// Dial connects to addr. Mutual TLS is used if tlsConfig is not nil.
func Dial(addr string, tlsConfig *util.TLSConfig) (*Client, error) {
	opts := []grpc.DialOption{grpc.WithStatsHandler(otelgrpc.NewClientHandler())}
	if tlsConfig != nil {
		c, err := util.NewClientCreds(tlsConfig)
		if err != nil {
			return nil, errors.Trace(err)
		}
		opts = append(opts, grpc.WithTransportCredentials(c))
	} else {
		opts = append(opts, grpc.WithTransportCredentials(insecure.NewCredentials()))
	}
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return NewClient(conn), nil
}

// GetRecommendations returns at most n movies for a user. Zero n selects the server
// default.
func (c *Client) GetRecommendations(ctx context.Context, userId string, n int) ([]string, error) {
	resp, err := c.client.GetRecommendations(ctx, &protocol.RecommendationRequest{UserId: userId, N: int32(n)})
	if err != nil {
		return nil, err
	}
	return resp.GetMovieIds(), nil
}

// GetRecommendationsByItem returns at most n movies similar to a movie.
func (c *Client) GetRecommendationsByItem(ctx context.Context, movieId string, n int) ([]string, error) {
	resp, err := c.client.GetRecommendationsByItem(ctx, &protocol.ItemRecommendationRequest{MovieId: movieId, N: int32(n)})
	if err != nil {
		return nil, err
	}
	return resp.GetMovieIds(), nil
}

// IsServing reports whether the service has loaded its dataset.
func (c *Client) IsServing(ctx context.Context) (bool, error) {
	resp, err := c.health.Check(ctx, &grpc_health_v1.HealthCheckRequest{Service: protocol.RecommendationService_ServiceName})
	if err != nil {
		return false, err
	}
	return resp.GetStatus() == grpc_health_v1.HealthCheckResponse_SERVING, nil
}

func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}
