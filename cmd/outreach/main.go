package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/justsurfingit/job-outreach/internal/config"
	"github.com/justsurfingit/job-outreach/internal/handlers"
	"github.com/justsurfingit/job-outreach/internal/logger"
	"github.com/justsurfingit/job-outreach/internal/services"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var cfgPath string
	root := &cobra.Command{
		Use:           "outreach",
		Short:         "Job outreach campaigns approved by email",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default ./config.yaml)")

	// oneShot runs a single pipeline stage with a fresh run id.
	oneShot := func(use, short string, requireLLM bool, job func(o *services.Outreach) services.JobFunc) *cobra.Command {
		return &cobra.Command{
			Use:   use,
			Short: short,
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withApp(cmd.Context(), cfgPath, requireLLM, func(ctx context.Context, a *app) error {
					log := a.log.With(zap.String("job", use), zap.String("run_id", uuid.NewString()))
					err := job(a.outreach)(ctx, log)
					if errors.Is(err, services.ErrJobLocked) {
						log.Info("skipped, another run holds the lock")
						return nil
					}
					return err
				})
			},
		}
	}

	root.AddCommand(
		oneShot("generate", "Draft today's batch and email the approval summary", true,
			func(o *services.Outreach) services.JobFunc { return o.Generate }),
		oneShot("monitor", "Apply approval replies from the inbox and revise edited drafts", true,
			func(o *services.Outreach) services.JobFunc { return o.Monitor }),
		oneShot("send", "Send approved drafts within the daily cap", false,
			func(o *services.Outreach) services.JobFunc { return o.Send }),
		scheduleCmd(&cfgPath),
		serveCmd(&cfgPath),
		seedCmd(&cfgPath),
	)
	return root
}

func scheduleCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "schedule",
		Short: "Run generate, monitor and send on their schedules until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), *cfgPath, true, func(ctx context.Context, a *app) error {
				sc := a.cfg.Schedule
				orch := services.NewOrchestrator(sc.Tick, a.log)
				if err := orch.Add("generate", sc.Generate, false, a.outreach.Generate); err != nil {
					return err
				}
				if err := orch.Add("monitor", sc.Monitor, true, a.outreach.Monitor); err != nil {
					return err
				}
				if err := orch.Add("send", sc.Send, true, a.outreach.Send); err != nil {
					return err
				}
				return orch.Run(ctx)
			})
		},
	}
}

func serveCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the operator API and metrics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), *cfgPath, false, func(ctx context.Context, a *app) error {
				var extractor handlers.JobExtractor
				if a.llm != nil {
					extractor = a.llm
				}
				r := handlers.NewRouter(
					handlers.NewJobHandler(extractor, a.jobs),
					handlers.NewCampaignHandler(a.profiles, a.store),
				)

				srv := &http.Server{Addr: ":" + a.cfg.Server.Port, Handler: r, ReadHeaderTimeout: 10 * time.Second}
				errCh := make(chan error, 1)
				go func() {
					a.log.Info("server starting", zap.String("addr", srv.Addr))
					if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
						errCh <- err
					}
					close(errCh)
				}()

				select {
				case err := <-errCh:
					return err
				case <-ctx.Done():
				}
				a.log.Info("shutdown signal received, stopping server")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				defer cancel()
				return srv.Shutdown(shutdownCtx)
			})
		},
	}
}

func seedCmd(cfgPath *string) *cobra.Command {
	var testJob bool
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create the owner profile (and a safe self-addressed test job)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), *cfgPath, false, func(ctx context.Context, a *app) error {
				res, err := a.profiles.Seed(ctx, a.cfg.Mail.Owner, testJob)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "owner %s ready (profile created: %t)\n", res.User.Email, res.ProfileCreated)
				if res.TestJob != nil {
					fmt.Fprintf(cmd.OutOrStdout(), "test job %q sends to %s\n", res.TestJob.Title, res.TestJob.RecruiterEmail)
				}
				if res.CancelledActives > 0 {
					fmt.Fprintf(cmd.OutOrStdout(), "cancelled %d active campaign(s)\n", res.CancelledActives)
				}
				fmt.Fprintln(cmd.OutOrStdout(), "run: outreach generate")
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&testJob, "test-job", true, "add a job post whose recruiter email is the owner")
	return cmd
}

// withApp loads config, builds the app and runs fn until it returns or the
// process is interrupted.
func withApp(parent context.Context, cfgPath string, requireLLM bool, fn func(ctx context.Context, a *app) error) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	log, err := logger.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}

	a, err := newApp(ctx, cfg, log, requireLLM)
	if err != nil {
		log.Error("startup failed", zap.Error(err))
		_ = log.Sync()
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}
