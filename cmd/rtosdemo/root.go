// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"code.hybscloud.com/rtos"
	"code.hybscloud.com/rtos/kernel"
	"code.hybscloud.com/rtos/kernel/hosted"
	"code.hybscloud.com/rtos/metrics"
)

const envPrefix = "RTOSDEMO"

func newRootCommand() *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	root := &cobra.Command{
		Use:          "rtosdemo",
		Short:        "Run rtos demo scenarios on the hosted kernel",
		SilenceUsage: true,
	}
	pf := root.PersistentFlags()
	pf.String("config", "", "YAML kernel configuration file")
	pf.String("log-level", "info", "log level (debug, info, warn, error)")
	pf.Duration("tick-period", 0, "tick interrupt period (overrides the config file)")
	pf.Int("heap-size", 0, "kernel heap in bytes (overrides the config file)")
	pf.Uint32("max-priorities", 0, "number of task priorities (overrides the config file)")
	if err := v.BindPFlags(pf); err != nil {
		panic(err)
	}

	root.AddCommand(newRunCommand(v), newConfigCommand(v), newScenariosCommand())
	return root
}

// loadConfig layers the config file, flags and RTOSDEMO_* variables over
// hosted.DefaultConfig.
func loadConfig(v *viper.Viper, logOut io.Writer) (hosted.Config, error) {
	cfg := hosted.DefaultConfig()
	if path := v.GetString("config"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return hosted.Config{}, fmt.Errorf("rtosdemo: read config: %w", err)
		}
		if cfg, err = hosted.ParseConfig(data); err != nil {
			return hosted.Config{}, err
		}
	}
	if v.IsSet("tick-period") {
		cfg.TickPeriod = v.GetDuration("tick-period")
	}
	if v.IsSet("heap-size") {
		cfg.HeapSize = v.GetInt("heap-size")
	}
	if v.IsSet("max-priorities") {
		cfg.MaxPriorities = kernel.Priority(v.GetUint32("max-priorities"))
		if cfg.TimerTaskPriority >= cfg.MaxPriorities && cfg.MaxPriorities > 0 {
			cfg.TimerTaskPriority = cfg.MaxPriorities - 1
		}
	}
	if err := cfg.Validate(); err != nil {
		return hosted.Config{}, err
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(v.GetString("log-level"))); err != nil {
		return hosted.Config{}, fmt.Errorf("rtosdemo: log level: %w", err)
	}
	cfg.Logger = slog.New(slog.NewTextHandler(logOut, &slog.HandlerOptions{Level: level}))
	return cfg, nil
}

func newConfigCommand(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective kernel configuration as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(v, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(&cfg); err != nil {
				return err
			}
			return enc.Close()
		},
	}
}

func newScenariosCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "scenarios",
		Short: "List the demo scenarios",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			for _, sc := range scenarios {
				fmt.Fprintf(cmd.OutOrStdout(), "%-10s %s\n", sc.name, sc.help)
			}
		},
	}
}

type runOptions struct {
	scenarios   []string
	rounds      int
	metricsAddr string
	serve       bool
}

func newRunCommand(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run demo scenarios concurrently on one scheduler",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(v, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			o := runOptions{
				scenarios:   v.GetStringSlice("scenario"),
				rounds:      v.GetInt("rounds"),
				metricsAddr: v.GetString("metrics-addr"),
				serve:       v.GetBool("serve"),
			}
			return runDemo(cmd.Context(), cfg, o, cmd.OutOrStdout())
		},
	}
	f := cmd.Flags()
	names := make([]string, 0, len(scenarios))
	for _, sc := range scenarios {
		names = append(names, sc.name)
	}
	f.StringSlice("scenario", names, "scenarios to run")
	f.Int("rounds", 20, "iterations per scenario")
	f.String("metrics-addr", "", "serve Prometheus metrics on this address")
	f.Bool("serve", false, "keep serving metrics after the scenarios until interrupted")
	if err := v.BindPFlags(f); err != nil {
		panic(err)
	}
	return cmd
}

// runDemo starts a scheduler over a hosted kernel, runs the selected
// scenarios concurrently and prints their summaries in order.
func runDemo(ctx context.Context, cfg hosted.Config, o runOptions, out io.Writer) error {
	selected := make([]scenario, 0, len(o.scenarios))
	for _, name := range o.scenarios {
		sc, ok := lookupScenario(name)
		if !ok {
			return fmt.Errorf("rtosdemo: unknown scenario %q", name)
		}
		selected = append(selected, sc)
	}
	if o.rounds <= 0 {
		return fmt.Errorf("rtosdemo: rounds must be positive, got %d", o.rounds)
	}

	k, err := hosted.New(cfg)
	if err != nil {
		return err
	}
	s := rtos.NewScheduler(k, rtos.WithLogger(cfg.Logger))
	log := s.Logger()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	if o.metricsAddr != "" {
		reg := prometheus.NewRegistry()
		if _, err := metrics.Register(metrics.DefaultNamespace, s, reg); err != nil {
			return err
		}
		srv := &http.Server{
			Addr:              o.metricsAddr,
			Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			log.Info("serving metrics", "addr", o.metricsAddr)
			if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdown, done := context.WithTimeout(context.Background(), 5*time.Second)
			defer done()
			return srv.Shutdown(shutdown)
		})
	}

	if err := s.Start(); err != nil {
		cancel()
		return errors.Join(err, g.Wait())
	}
	defer func() {
		s.End()
		k.Wait()
	}()
	stop := context.AfterFunc(ctx, s.End)
	defer stop()

	summaries := make([]string, len(selected))
	errs := make([]error, len(selected))
	var sg errgroup.Group
	for i, sc := range selected {
		sg.Go(func() error {
			tctx, err := s.Adopt(gctx, sc.name)
			if err == nil {
				start := s.Ticks()
				var sum string
				if sum, err = sc.run(tctx, s, o.rounds); err == nil {
					summaries[i] = fmt.Sprintf("%-10s %s (%d ticks)", sc.name, sum, s.Ticks()-start)
					return nil
				}
			}
			errs[i] = fmt.Errorf("rtosdemo: %s: %w", sc.name, err)
			// Unblock the other scenarios.
			s.End()
			return errs[i]
		})
	}
	sg.Wait()
	runErr := errors.Join(errs...)
	if runErr == nil {
		for _, line := range summaries {
			fmt.Fprintln(out, line)
		}
		st := s.Stats()
		fmt.Fprintf(out, "heap: %d/%d bytes free, low-water %d; timer callbacks %d\n",
			st.FreeHeap, st.HeapSize, st.MinEverFreeHeap, st.TimerCallbacks)
	}

	if runErr == nil && o.serve {
		log.Info("scenarios done, serving until interrupted")
		<-ctx.Done()
	}
	cancel()
	if err := g.Wait(); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}
