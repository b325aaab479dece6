package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/ztrue/shutdown"
	"github.com/zeuslawyer/remix-simulator/internal/config"
	"github.com/zeuslawyer/remix-simulator/internal/db"
	"github.com/zeuslawyer/remix-simulator/internal/metrics"
	"github.com/zeuslawyer/remix-simulator/internal/provider/simulator"
	"github.com/zeuslawyer/remix-simulator/internal/server"
	"github.com/zeuslawyer/remix-simulator/internal/telemetry"
	"github.com/zeuslawyer/remix-simulator/internal/tracing"
	"golang.org/x/sync/errgroup"
)

func NewCommand(version, commit string) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "remix-simulator",
		Short:   "JSON-RPC gateway in front of an in-process Ethereum simulator",
		Version: fmt.Sprintf("%s - %s", version, commit),
		Annotations: map[string]string{
			"version": version,
			"commit":  commit,
		},
		RunE:          run,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	config.RegisterFlags(cmd)
	return cmd
}

func run(cmd *cobra.Command, _ []string) error {
	config, err := config.LoadConfig(cmd)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	err = config.Validate()
	if err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: config.SlogLevel()}))
	slog.SetDefault(logger)
	slog.Info("remix-simulator", "version", cmd.Annotations["version"], "commit", cmd.Annotations["commit"])

	ctx := cmd.Context()

	shutdownTracing, err := tracing.Setup(ctx, config, cmd.Annotations["version"])
	if err != nil {
		return fmt.Errorf("failed to set up tracing: %w", err)
	}

	database, err := db.MakeDB(config)
	if err != nil {
		return fmt.Errorf("failed to make database: %w", err)
	}
	sqlDB, err := database.DB()
	if err != nil {
		return fmt.Errorf("failed to get database handle: %w", err)
	}
	slog.Info("Database connection established", "driver", config.Persistence.Database.Driver)

	metrics := metrics.NewMetrics()

	sim := simulator.New(database, simulator.Options{
		ChainID:             config.Simulator.ChainID,
		Accounts:            config.Simulator.Accounts,
		InitialBalanceEther: config.Simulator.InitialBalanceEther,
		BlockGasLimit:       config.Simulator.BlockGasLimit,
	})

	recorder := telemetry.Recorder(telemetry.NewLogRecorder(logger))
	closeNATS := func() error { return nil }
	if config.NATS.Enabled {
		conn, err := telemetry.Connect(config)
		if err != nil {
			return err
		}
		slog.Info("Connected to NATS", "url", conn.ConnectedUrl())
		natsRecorder := telemetry.NewNATSRecorder(conn, config.NATS.SubjectPrefix)
		recorder = telemetry.Multi(recorder, natsRecorder)
		sim.OnData(natsRecorder.PublishData)
		closeNATS = conn.Drain
	}

	startOptions := server.StartOptionsFromConfig(config)
	server := server.NewServer(config, sim, metrics, recorder)
	err = server.Init(ctx)
	if err != nil {
		return err
	}

	_, err = server.Start(startOptions)
	if err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}

	stop := func(_ os.Signal) {
		slog.Info("Shutting down")

		errGrp := errgroup.Group{}

		errGrp.Go(func() error {
			return server.Stop()
		})

		errGrp.Go(func() error {
			return closeNATS()
		})

		errGrp.Go(func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return shutdownTracing(ctx)
		})

		err := errGrp.Wait()
		if err != nil {
			slog.Error("Shutdown error", "error", err.Error())
		}

		sim.Close()
		if err := sqlDB.Close(); err != nil {
			slog.Error("Failed to close database", "error", err.Error())
		}
		slog.Info("Shutdown complete")
	}

	if cmd.Annotations["version"] == "testing" {
		doneChannel := make(chan struct{})
		go func() {
			slog.Info("Sleeping for 2 seconds")
			time.Sleep(2 * time.Second)
			slog.Info("Sending SIGTERM")
			stop(syscall.SIGTERM)
			doneChannel <- struct{}{}
		}()
		<-doneChannel
	} else {
		shutdown.AddWithParam(stop)
		shutdown.Listen(syscall.SIGINT, syscall.SIGKILL, syscall.SIGTERM, syscall.SIGQUIT)
	}

	return nil
}
