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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RecommendSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "gorse_movies",
		Subsystem: "server",
		Name:      "recommend_seconds",
	}, []string{"recommender"})
	RequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gorse_movies",
		Subsystem: "server",
		Name:      "requests_total",
	}, []string{"method", "code"})
	CacheRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gorse_movies",
		Subsystem: "server",
		Name:      "cache_requests_total",
	}, []string{"result"})
	LoadDatasetSeconds = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "gorse_movies",
		Subsystem: "server",
		Name:      "load_dataset_seconds",
	})
	ServerState = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "gorse_movies",
		Subsystem: "server",
		Name:      "state",
	})
)
