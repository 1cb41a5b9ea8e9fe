package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-extras/cobraflags"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/talkincode/catalog/config"
	"github.com/talkincode/catalog/internal/adminapi"
	"github.com/talkincode/catalog/internal/app"
	"github.com/talkincode/catalog/internal/webserver"
)

var configFile string

const graceFlag = "grace"

var sweepFlags = map[string]cobraflags.Flag{
	graceFlag: &cobraflags.StringFlag{
		Name:  graceFlag,
		Value: "",
		Usage: "Only remove files older than this duration (defaults to upload.sweep_grace)",
	},
}

func main() {
	root := &cobra.Command{
		Use:          "catalog",
		Short:        "Product catalog service",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&configFile, "config", "c", "catalog.yml", "config file, missing file uses defaults")

	root.AddCommand(newServeCommand(), newMigrateCommand(), newSweepCommand())
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// setup loads the config and opens the application
func setup() (*app.Application, error) {
	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		return nil, err
	}
	application := app.NewApplication(cfg)
	if err := application.Init(); err != nil {
		return nil, err
	}
	return application, nil
}

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Migrate the database and serve the catalog api",
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := setup()
			if err != nil {
				return err
			}
			defer application.Release()

			if err := application.MigrateDB(false); err != nil {
				return err
			}
			if err := application.StartJobs(); err != nil {
				return err
			}

			server := webserver.NewAdminServer(application.Config(), application.ImageStore().Root)
			adminapi.Init(server, application)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			g, gctx := errgroup.WithContext(ctx)
			g.Go(server.Start)
			g.Go(func() error {
				<-gctx.Done()
				zap.S().Info("shutting down web server")
				return server.Shutdown(context.Background())
			})
			return g.Wait()
		},
	}
}

func newMigrateCommand() *cobra.Command {
	var track bool
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := setup()
			if err != nil {
				return err
			}
			defer application.Release()
			if err := application.MigrateDB(track); err != nil {
				return err
			}
			zap.S().Info("database migration done")
			return nil
		},
	}
	cmd.Flags().BoolVar(&track, "track", false, "log the migration statements")
	return cmd
}

func newSweepCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Remove stored images no product references",
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := setup()
			if err != nil {
				return err
			}
			defer application.Release()

			if grace := sweepFlags[graceFlag].GetString(); grace != "" {
				d, err := time.ParseDuration(grace)
				if err != nil {
					return errors.Wrapf(err, "invalid --%s", graceFlag)
				}
				application.Config().Upload.SweepGrace = d
			}

			removed, err := application.SweepImages(cmd.Context())
			if err != nil {
				return err
			}
			for _, name := range removed {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
	cobraflags.RegisterMap(cmd, sweepFlags)
	return cmd
}
