package main

// @title           Deliveryhub API
// @version         1.0
// @description     Recurring delivery scheduling back office.

// @host      localhost:8888
// @BasePath  /

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/fatflowers/deliveryhub/internal/app"
	"github.com/fatflowers/deliveryhub/internal/app/service/duejob"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "deliveryhub",
		Short:        "Recurring delivery back office",
		SilenceUsage: true,
	}
	root.AddCommand(newServeCmd(), newProcessDueCmd())
	return root
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the due-today scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}
}

func newProcessDueCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "process-due",
		Short: "Generate today's due deliveries once and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProcessDue(cmd.Context())
		},
	}
}

func runServe() error {
	// Allow graceful stop with SIGINT/SIGTERM handled by fx
	a := fx.New(app.Module)
	startCtx, cancel := context.WithTimeout(context.Background(), app.DefaultStartTimeout)
	defer cancel()
	if err := a.Start(startCtx); err != nil {
		// Logging might not be ready; fallback to zap example
		zap.NewExample().Sugar().Errorf("failed to start app: %v", err)
		return err
	}

	// Block until signal
	<-a.Done()

	stopCtx, cancel2 := context.WithTimeout(context.Background(), app.DefaultStopTimeout)
	defer cancel2()
	if err := a.Stop(stopCtx); err != nil {
		zap.NewExample().Sugar().Errorf("failed to stop app: %v", err)
		return err
	}
	return nil
}

func runProcessDue(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	var (
		job *duejob.Job
		log *zap.SugaredLogger
	)
	a := fx.New(app.Core, fx.Populate(&job, &log), fx.NopLogger)
	startCtx, cancel := context.WithTimeout(ctx, app.DefaultStartTimeout)
	defer cancel()
	if err := a.Start(startCtx); err != nil {
		return fmt.Errorf("failed to start app: %w", err)
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), app.DefaultStopTimeout)
		defer cancel()
		_ = a.Stop(stopCtx)
	}()

	res, err := job.RunOnce(ctx)
	if err != nil {
		return err
	}
	log.Infow("process-due finished", "processed", res.Processed, "failed", res.Failed())
	if res.Failed() > 0 {
		return fmt.Errorf("%d of %d recurrencies failed", res.Failed(), res.Processed)
	}
	return nil
}
