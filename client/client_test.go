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
	"fmt"
	"math"
	"net"
	"path/filepath"
	"testing"

	"github.com/gorse-io/gorse-movies/common/util"
	"github.com/gorse-io/gorse-movies/config"
	"github.com/gorse-io/gorse-movies/dataset"
	"github.com/gorse-io/gorse-movies/server"
	"github.com/madflojo/testcerts"
	"github.com/stretchr/testify/suite"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type ClientTestSuite struct {
	suite.Suite
	tls    *util.TLSConfig
	server *server.Server
	served chan error
	client *Client
}

func (suite *ClientTestSuite) SetupSuite() {
	cfg := config.GetDefaultConfig()
	if suite.tls != nil {
		cfg.Server.SSLMode = true
		cfg.Server.SSLCA = suite.tls.SSLCA
		cfg.Server.SSLCert = suite.tls.SSLCert
		cfg.Server.SSLKey = suite.tls.SSLKey
	}
	suite.server = server.NewServer(cfg)
	grpcLis, err := net.Listen("tcp", "localhost:0")
	suite.Require().NoError(err)
	httpLis, err := net.Listen("tcp", "localhost:0")
	suite.Require().NoError(err)
	suite.served = make(chan error, 1)
	go func() {
		suite.served <- suite.server.Serve(grpcLis, httpLis)
	}()
	suite.client, err = Dial(fmt.Sprintf("localhost:%d", grpcLis.Addr().(*net.TCPAddr).Port), suite.tls)
	suite.Require().NoError(err)
}

func (suite *ClientTestSuite) TearDownSuite() {
	suite.NoError(suite.client.Close())
	suite.server.Shutdown()
	suite.NoError(<-suite.served)
	suite.server.Close()
}

func (suite *ClientTestSuite) publish() {
	nan := math.NaN()
	items := []string{"1", "2", "10"}
	movies := dataset.NewIndex()
	for _, item := range items {
		movies.Add(item)
	}
	d, err := dataset.NewDataset(
		&dataset.Table{
			Columns: items,
			Rows:    []string{"7"},
			Values:  [][]float64{{4, nan, nan}},
		},
		&dataset.Table{
			Columns: items,
			Rows:    items,
			Values: [][]float64{
				{1, 0.5, 0.5},
				{0.5, 1, 0},
				{0.5, 0, 1},
			},
		},
		[][]float64{
			{1, 0.2, 0.6},
			{0.2, 1, 0.1},
			{0.6, 0.1, 1},
		},
		movies)
	suite.Require().NoError(err)
	suite.server.Publish(d)
}

func (suite *ClientTestSuite) TestRecommend() {
	ctx := context.Background()
	serving, err := suite.client.IsServing(ctx)
	suite.NoError(err)
	suite.False(serving)
	_, err = suite.client.GetRecommendations(ctx, "7", 10)
	suite.Equal(codes.Unavailable, status.Code(err))

	suite.publish()
	serving, err = suite.client.IsServing(ctx)
	suite.NoError(err)
	suite.True(serving)

	// ties are broken by movie identifiers in numeric order
	movieIds, err := suite.client.GetRecommendations(ctx, "7", 0)
	suite.NoError(err)
	suite.Equal([]string{"2", "10"}, movieIds)
	movieIds, err = suite.client.GetRecommendationsByItem(ctx, "1", 1)
	suite.NoError(err)
	suite.Equal([]string{"10"}, movieIds)
	movieIds, err = suite.client.GetRecommendationsByItem(ctx, "2", 5)
	suite.NoError(err)
	suite.Equal([]string{"1", "10"}, movieIds)

	_, err = suite.client.GetRecommendations(ctx, "8", 10)
	suite.Equal(codes.NotFound, status.Code(err))
	_, err = suite.client.GetRecommendationsByItem(ctx, "1", -1)
	suite.Equal(codes.InvalidArgument, status.Code(err))
}

func TestClient(t *testing.T) {
	suite.Run(t, new(ClientTestSuite))
}

func TestClientTLS(t *testing.T) {
	dir := t.TempDir()
	ca := testcerts.NewCA()
	caCert, caKey := filepath.Join(dir, "ca.pem"), filepath.Join(dir, "ca.key")
	if err := ca.ToFile(caCert, caKey); err != nil {
		t.Fatal(err)
	}
	keyPair, err := ca.NewKeyPair("localhost")
	if err != nil {
		t.Fatal(err)
	}
	cert, key := filepath.Join(dir, "cert.pem"), filepath.Join(dir, "cert.key")
	if err = keyPair.ToFile(cert, key); err != nil {
		t.Fatal(err)
	}
	suite.Run(t, &ClientTestSuite{tls: &util.TLSConfig{SSLCA: caCert, SSLCert: cert, SSLKey: key}})
}
