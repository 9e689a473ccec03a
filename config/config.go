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

package config

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/gorse-io/gorse-movies/common/log"
	"github.com/juju/errors"
	"github.com/spf13/viper"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/zipkin"
	"go.opentelemetry.io/otel/sdk/resource"
	tracesdk "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
)

const EnvPrefix = "GORSE_MOVIES"

// Config is the configuration for the recommendation service.
type Config struct {
	Server  ServerConfig    `mapstructure:"server"`
	Dataset DatasetConfig   `mapstructure:"dataset"`
	S3      S3Config        `mapstructure:"s3"`
	GCS     GCSConfig       `mapstructure:"gcs"`
	Azure   AzureBlobConfig `mapstructure:"azure"`
	Cache   CacheConfig     `mapstructure:"cache"`
	Tracing TracingConfig   `mapstructure:"tracing"`
}

// ServerConfig is the configuration for the gRPC and HTTP endpoints.
type ServerConfig struct {
	Host                 string `mapstructure:"host"`
	Port                 int    `mapstructure:"port" validate:"gte=0,lte=65535"`
	HttpHost             string `mapstructure:"http_host"`
	HttpPort             int    `mapstructure:"http_port" validate:"gte=0,lte=65535"`
	NumWorkers           int    `mapstructure:"num_workers" validate:"gt=0"`
	DefaultN             int    `mapstructure:"default_n" validate:"gt=0"`
	MaxRequestsPerSecond int    `mapstructure:"max_requests_per_second" validate:"gte=0"`
	SSLMode              bool   `mapstructure:"ssl_mode"`
	SSLCA                string `mapstructure:"ssl_ca" validate:"required_if=SSLMode true"`
	SSLCert              string `mapstructure:"ssl_cert" validate:"required_if=SSLMode true"`
	SSLKey               string `mapstructure:"ssl_key" validate:"required_if=SSLMode true"`
}

// DatasetConfig locates the precomputed artifacts. Storage is a local directory or a
// URL of the form s3://bucket/prefix, gcs://bucket/prefix or azblob://container/prefix.
type DatasetConfig struct {
	Storage               string `mapstructure:"storage" validate:"required"`
	RatingsFile           string `mapstructure:"ratings_file" validate:"required"`
	ItemSimilarityFile    string `mapstructure:"item_similarity_file" validate:"required"`
	FeatureSimilarityFile string `mapstructure:"feature_similarity_file" validate:"required"`
	IndexFile             string `mapstructure:"index_file" validate:"required"`
	LoadJobs              int    `mapstructure:"load_jobs" validate:"gt=0"`
}

type S3Config struct {
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UseSSL          bool   `mapstructure:"use_ssl"`
}

type GCSConfig struct {
	CredentialsFile string `mapstructure:"credentials_file"`
}

type AzureBlobConfig struct {
	Endpoint         string `mapstructure:"endpoint"`
	AccountName      string `mapstructure:"account_name"`
	AccountKey       string `mapstructure:"account_key"`
	ConnectionString string `mapstructure:"connection_string"`
}

// CacheConfig controls the in-process result cache. A zero TTL disables it.
type CacheConfig struct {
	TTL  time.Duration `mapstructure:"ttl" validate:"gte=0"`
	Size uint64        `mapstructure:"size"`
}

type TracingConfig struct {
	EnableTracing     bool    `mapstructure:"enable_tracing"`
	Exporter          string  `mapstructure:"exporter" validate:"oneof=otlp otlphttp zipkin"`
	CollectorEndpoint string  `mapstructure:"collector_endpoint"`
	Sampler           string  `mapstructure:"sampler" validate:"oneof=always never ratio"`
	Ratio             float64 `mapstructure:"ratio" validate:"gte=0,lte=1"`
}

func GetDefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:       "0.0.0.0",
			Port:       50051,
			HttpHost:   "0.0.0.0",
			HttpPort:   8087,
			NumWorkers: 10,
			DefaultN:   10,
		},
		Dataset: DatasetConfig{
			Storage:               ".",
			RatingsFile:           "user_movie_df.csv",
			ItemSimilarityFile:    "item_similarity.csv",
			FeatureSimilarityFile: "cosine_similarity_matrix.npy",
			IndexFile:             "movie_indices.csv",
			LoadJobs:              4,
		},
		Cache: CacheConfig{
			Size: 10000,
		},
		Tracing: TracingConfig{
			Exporter: "otlp",
			Sampler:  "always",
			Ratio:    1,
		},
	}
}

func (config *Config) Validate() error {
	validate := validator.New()
	return validate.Struct(config)
}

func (config *Config) TLSEnabled() bool {
	return config.Server.SSLMode
}

func (config *TracingConfig) NewTracerProvider() (trace.TracerProvider, error) {
	if !config.EnableTracing {
		return noop.NewTracerProvider(), nil
	}

	var exporter tracesdk.SpanExporter
	var err error
	switch config.Exporter {
	case "otlp":
		client := otlptracegrpc.NewClient(otlptracegrpc.WithInsecure(), otlptracegrpc.WithEndpoint(config.CollectorEndpoint))
		exporter, err = otlptrace.New(context.Background(), client)
		if err != nil {
			return nil, errors.Trace(err)
		}
	case "otlphttp":
		client := otlptracehttp.NewClient(otlptracehttp.WithInsecure(), otlptracehttp.WithEndpoint(config.CollectorEndpoint))
		exporter, err = otlptrace.New(context.Background(), client)
		if err != nil {
			return nil, errors.Trace(err)
		}
	case "zipkin":
		exporter, err = zipkin.New(config.CollectorEndpoint)
		if err != nil {
			return nil, errors.Trace(err)
		}
	default:
		return nil, errors.NotSupportedf("exporter %s", config.Exporter)
	}

	var sampler tracesdk.Sampler
	switch config.Sampler {
	case "always":
		sampler = tracesdk.AlwaysSample()
	case "never":
		sampler = tracesdk.NeverSample()
	case "ratio":
		sampler = tracesdk.TraceIDRatioBased(config.Ratio)
	default:
		return nil, errors.NotSupportedf("sampler %s", config.Sampler)
	}

	return tracesdk.NewTracerProvider(
		tracesdk.WithSampler(sampler),
		tracesdk.WithBatcher(exporter),
		tracesdk.WithResource(resource.NewSchemaless(
			attribute.String("service.name", "gorse-movies"),
		)),
	), nil
}

func setDefaultOn(v *viper.Viper) {
	defaultConfig := GetDefaultConfig()
	// [server]
	v.SetDefault("server.host", defaultConfig.Server.Host)
	v.SetDefault("server.port", defaultConfig.Server.Port)
	v.SetDefault("server.http_host", defaultConfig.Server.HttpHost)
	v.SetDefault("server.http_port", defaultConfig.Server.HttpPort)
	v.SetDefault("server.num_workers", defaultConfig.Server.NumWorkers)
	v.SetDefault("server.default_n", defaultConfig.Server.DefaultN)
	v.SetDefault("server.max_requests_per_second", defaultConfig.Server.MaxRequestsPerSecond)
	// [dataset]
	v.SetDefault("dataset.storage", defaultConfig.Dataset.Storage)
	v.SetDefault("dataset.ratings_file", defaultConfig.Dataset.RatingsFile)
	v.SetDefault("dataset.item_similarity_file", defaultConfig.Dataset.ItemSimilarityFile)
	v.SetDefault("dataset.feature_similarity_file", defaultConfig.Dataset.FeatureSimilarityFile)
	v.SetDefault("dataset.index_file", defaultConfig.Dataset.IndexFile)
	v.SetDefault("dataset.load_jobs", defaultConfig.Dataset.LoadJobs)
	// [cache]
	v.SetDefault("cache.ttl", defaultConfig.Cache.TTL)
	v.SetDefault("cache.size", defaultConfig.Cache.Size)
	// [tracing]
	v.SetDefault("tracing.exporter", defaultConfig.Tracing.Exporter)
	v.SetDefault("tracing.sampler", defaultConfig.Tracing.Sampler)
	v.SetDefault("tracing.ratio", defaultConfig.Tracing.Ratio)
}

type configBinding struct {
	key string
	env string
}

var bindings = []configBinding{
	{"server.host", "SERVER_HOST"},
	{"server.port", "SERVER_PORT"},
	{"server.http_host", "SERVER_HTTP_HOST"},
	{"server.http_port", "SERVER_HTTP_PORT"},
	{"server.num_workers", "SERVER_NUM_WORKERS"},
	{"dataset.storage", "DATASET_STORAGE"},
	{"s3.endpoint", "S3_ENDPOINT"},
	{"s3.access_key_id", "S3_ACCESS_KEY_ID"},
	{"s3.secret_access_key", "S3_SECRET_ACCESS_KEY"},
	{"gcs.credentials_file", "GCS_CREDENTIALS_FILE"},
	{"azure.account_name", "AZURE_ACCOUNT_NAME"},
	{"azure.account_key", "AZURE_ACCOUNT_KEY"},
	{"azure.connection_string", "AZURE_CONNECTION_STRING"},
}

// LoadConfig loads configuration from a TOML file. Environment variables prefixed with
// GORSE_MOVIES_ override file values. An empty path loads defaults and environment only.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaultOn(v)
	for _, binding := range bindings {
		if err := v.BindEnv(binding.key, fmt.Sprintf("%s_%s", EnvPrefix, binding.env)); err != nil {
			log.Logger().Fatal("failed to bind a Viper key to a ENV variable", zap.Error(err))
		}
	}
	// load config file
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Trace(err)
		}
	}
	return unmarshal(v)
}

// ReadConfig parses TOML text. Used by tests and embedded configurations.
func ReadConfig(text string) (*Config, error) {
	v := viper.New()
	setDefaultOn(v)
	v.SetConfigType("toml")
	if err := v.ReadConfig(strings.NewReader(text)); err != nil {
		return nil, errors.Trace(err)
	}
	return unmarshal(v)
}

func unmarshal(v *viper.Viper) (*Config, error) {
	var conf Config
	if err := v.Unmarshal(&conf, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))); err != nil {
		return nil, errors.Trace(err)
	}
	if err := conf.Validate(); err != nil {
		return nil, errors.Annotate(err, "invalid config")
	}
	return &conf, nil
}
