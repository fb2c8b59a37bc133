// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

// cdclog is an operational tool around the commit-log allocator: it can
// drive a synthetic write load against real directories to observe CDC
// admission behavior, and report the current size of a CDC raw directory.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/cockroachdb/cdclog/pkg/base"
	"github.com/cockroachdb/cdclog/pkg/commitlog"
	"github.com/cockroachdb/cdclog/pkg/schema"
	"github.com/cockroachdb/cdclog/pkg/util/humanizeutil"
	"github.com/cockroachdb/pebble/vfs"
	klog "github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "cdclog",
		Short:         "commit-log segment allocator tooling",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.AddCommand(runCmd(), sizeCmd())
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func runCmd() *cobra.Command {
	var (
		configPath string
		writers    int
		duration   time.Duration
		cdcRatio   float64
		writeSize  int64
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "drive a synthetic write load through the allocator",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := level.NewFilter(
				klog.NewLogfmtLogger(klog.NewSyncWriter(os.Stdout)), level.AllowInfo())

			f, err := os.Open(configPath)
			if err != nil {
				return err
			}
			cfg, err := base.LoadConfig(f)
			_ = f.Close()
			if err != nil {
				return err
			}

			reg := prometheus.NewRegistry()
			cl, err := commitlog.New(cfg, vfs.Default, logger, reg, commitlog.Options{})
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(
				context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			if err := cl.Start(ctx); err != nil {
				return err
			}
			defer func() {
				if err := cl.Shutdown(context.Background()); err != nil {
					level.Warn(logger).Log("msg", "shutdown", "err", err)
				}
			}()

			tracked := schema.MakeKeyspace("tracked", schema.NetworkTopologyStrategy, "dc1")
			plain := schema.MakeKeyspace("plain", schema.SimpleStrategy)

			var admitted, rejected atomic.Int64
			deadline := time.Now().Add(duration)
			var wg sync.WaitGroup
			for i := 0; i < writers; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					for n := 0; ; n++ {
						if ctx.Err() != nil || time.Now().After(deadline) {
							return
						}
						ks := plain
						if float64(n%100)/100 < cdcRatio {
							ks = tracked
						}
						mut := schema.NewMutation(ks, "dc1")
						_, err := cl.Allocate(ctx, mut, writeSize)
						switch {
						case err == nil:
							admitted.Add(1)
						case commitlog.IsCDCWriteRejected(err):
							rejected.Add(1)
						default:
							level.Error(logger).Log("msg", "allocation failed", "err", err)
							return
						}
					}
				}(i)
			}
			wg.Wait()

			level.Info(logger).Log(
				"msg", "load complete",
				"admitted", admitted.Load(),
				"rejected", rejected.Load(),
				"commitlog_bytes", humanizeutil.IBytes(cl.Manager().OnDiskSize()),
			)
			return nil
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "cdclog.yaml", "path to YAML config")
	cmd.Flags().IntVar(&writers, "writers", 4, "concurrent writer goroutines")
	cmd.Flags().DurationVar(&duration, "duration", 10*time.Second, "how long to run")
	cmd.Flags().Float64Var(&cdcRatio, "cdc-ratio", 0.5, "fraction of writes tracked by CDC")
	cmd.Flags().Int64Var(&writeSize, "write-size", 1024, "bytes per mutation")
	return cmd
}

func sizeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "size <dir>",
		Short: "report the total size of a CDC raw directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sizer := commitlog.MakeDirectorySizer(vfs.Default, args[0])
			total, err := sizer.Walk()
			if err != nil {
				return err
			}
			fmt.Printf("%s\t%d bytes (%s)\n", args[0], total, humanizeutil.IBytes(total))
			return nil
		},
	}
	return cmd
}
