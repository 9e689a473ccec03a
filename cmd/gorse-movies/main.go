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

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/gorse-io/gorse-movies/cmd/version"
	"github.com/gorse-io/gorse-movies/common/log"
	"github.com/gorse-io/gorse-movies/common/util"
	"github.com/gorse-io/gorse-movies/config"
	"github.com/gorse-io/gorse-movies/dataset"
	"github.com/gorse-io/gorse-movies/server"
	"github.com/gorse-io/gorse-movies/storage/blob"
	"github.com/juju/errors"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.uber.org/zap"
)

var rootCommand = &cobra.Command{
	Use:   "gorse-movies",
	Short: "Movie recommendation service over gRPC.",
	Run: func(cmd *cobra.Command, args []string) {
		// show version
		if showVersion, _ := cmd.PersistentFlags().GetBool("version"); showVersion {
			fmt.Println(version.BuildInfo())
			return
		}

		// setup logger
		debug, _ := cmd.PersistentFlags().GetBool("debug")
		log.SetLogger(cmd.PersistentFlags(), debug)

		// load config
		configPath, _ := cmd.PersistentFlags().GetString("config")
		log.Logger().Info("load config", zap.String("config", configPath))
		cfg, err := config.LoadConfig(configPath)
		if err != nil {
			log.Logger().Fatal("failed to load config", zap.Error(err))
		}

		// setup trace provider
		tp, err := cfg.Tracing.NewTracerProvider()
		if err != nil {
			log.Logger().Fatal("failed to create trace provider", zap.Error(err))
		}
		otel.SetTracerProvider(tp)
		otel.SetErrorHandler(log.GetErrorHandler())
		otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))

		store, err := blob.NewStore(cfg)
		if err != nil {
			log.Logger().Fatal("failed to open storage", zap.Error(err))
		}

		// start listening before loading so that probes see the loading state
		s := server.NewServer(cfg)
		defer s.Close()
		done := make(chan error, 1)
		go func() {
			done <- s.ListenAndServe()
		}()
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		go func() {
			defer util.CheckPanic()
			<-ctx.Done()
			s.Shutdown()
		}()

		if err = s.Load(ctx, store); err != nil {
			log.Logger().Fatal("failed to load dataset", zap.Error(err))
		}
		if err = <-done; err != nil {
			log.Logger().Fatal("failed to serve", zap.Error(err))
		}
		log.Logger().Info("stop gorse-movies successfully")
	},
}

var uploadCommand = &cobra.Command{
	Use:   "upload <dir>",
	Short: "Upload dataset artifacts from a local directory to the configured storage.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		debug, _ := cmd.Flags().GetBool("debug")
		log.SetLogger(cmd.Flags(), debug)
		configPath, _ := cmd.Flags().GetString("config")
		cfg, err := config.LoadConfig(configPath)
		if err != nil {
			log.Logger().Fatal("failed to load config", zap.Error(err))
		}
		if err = upload(cmd.Context(), cfg, args[0]); err != nil {
			log.Logger().Fatal("failed to upload dataset", zap.Error(err))
		}
	},
}

func upload(ctx context.Context, cfg *config.Config, dir string) error {
	store, err := blob.NewStore(cfg)
	if err != nil {
		return errors.Trace(err)
	}
	for _, name := range dataset.Artifacts(cfg.Dataset) {
		path := filepath.Join(dir, name)
		stat, err := os.Stat(path)
		if err != nil {
			return errors.Trace(err)
		}
		file, err := os.Open(path)
		if err != nil {
			return errors.Trace(err)
		}
		pbReader := progressbar.NewReader(file, progressbar.DefaultBytes(stat.Size(), "Uploading "+name))
		err = blob.Upload(ctx, store, name, &pbReader)
		_ = file.Close()
		if err != nil {
			return errors.Annotatef(err, "failed to upload %s", name)
		}
		log.Logger().Info("artifact uploaded", zap.String("file", name), zap.String("storage", cfg.Dataset.Storage))
	}
	return nil
}

func init() {
	log.AddFlags(rootCommand.PersistentFlags())
	rootCommand.PersistentFlags().Bool("debug", false, "use debug log mode")
	rootCommand.PersistentFlags().BoolP("version", "v", false, "gorse-movies version")
	rootCommand.PersistentFlags().StringP("config", "c", "", "configuration file path")
	rootCommand.AddCommand(uploadCommand)
}

func main() {
	if err := rootCommand.Execute(); err != nil {
		log.Logger().Fatal("failed to execute", zap.Error(err))
	}
}
