/*
studentfs is a minimal, read-only FUSE filesystem that serves one virtual
file, student_info, containing a formatted report of a configured student
and live counters: the jiffies value at mount time, seconds of uptime, the
number of completed reads and the current jiffies value. Reports render at
read time from a monotonic tick counter, so consumers always see current
values. It includes a HTTP dashboard for basic filesystem metrics and
controlling operations and runtime behavior.

The following signals are observed and handled by the filesystem:
  - SIGTERM or SIGINT (CTRL+C) gracefully unmounts the filesystem
  - SIGUSR1 forces a garbage collection (within Go)
  - SIGUSR2 dumps a diagnostic stacktrace to standard error (stderr)

When enabled, the diagnostics server exposes the following routes over HTTP:
  - "/" for filesystem dashboard and event ring-buffer
  - "/report" for a counted read of the info file over HTTP
  - "/metrics.json" for the dashboard metrics in JSON format
  - "/gc" for forcing of a garbage collection (within Go)
  - "/reset" for resetting the FS metrics at runtime
  - "/set/bufsize/<string>" for adapting the report buffer capacity
  - "/set/verbose/<bool>" for toggling per-read event logging
*/
package main

import (
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"runtime/debug"
	"sync"
	"syscall"

	"bazil.org/fuse"
	"bazil.org/fuse/fs"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/studentfs/studentfs/internal/clock"
	"github.com/studentfs/studentfs/internal/config"
	"github.com/studentfs/studentfs/internal/filesystem"
	"github.com/studentfs/studentfs/internal/logging"
	"github.com/studentfs/studentfs/internal/procfile"
	"github.com/studentfs/studentfs/internal/webserver"
)

const (
	stackTraceBuffer = 1 << 24

	defaultRingBufferSize = 100
)

// Version is the program version (filled in from the Makefile).
var Version string

type programOpts struct {
	name             string
	group            int
	subgroup         int
	hz               uint64
	bufSize          uint64
	ringBufferSize   int
	allowOther       bool
	verbose          bool
	mountDir         string
	dashboardAddress string
}

func rootCmd() *cobra.Command {
	cfg := config.Load()
	defaults := procfile.DefaultParams()

	var opts programOpts
	var argBufSize string

	cmd := &cobra.Command{
		Use:     helpTextUse,
		Short:   helpTextShort,
		Long:    helpTextLong,
		Version: Version,
		Args:    cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			numBufSize, err := humanize.ParseBytes(argBufSize)
			if err != nil {
				return fmt.Errorf("failed to parse bufsize: %w", err)
			}

			opts.bufSize = numBufSize
			opts.mountDir = args[0]

			return run(opts)
		},
	}

	cmd.Flags().StringVarP(&opts.name, "name", "n", cfg.String("name", defaults.Name), "Student name reported in the info file")
	cmd.Flags().IntVarP(&opts.group, "group", "g", cfg.Int("group", defaults.Group), "Student group reported in the info file")
	cmd.Flags().IntVarP(&opts.subgroup, "subgroup", "s", cfg.Int("subgroup", defaults.Subgroup), "Student subgroup reported in the info file")
	cmd.Flags().Uint64Var(&opts.hz, "hz", cfg.Uint64("hz", clock.DefaultHz), "Tick rate of the jiffies counter (in Hz)")
	cmd.Flags().StringVarP(&argBufSize, "bufsize", "b", cfg.String("bufsize", humanize.IBytes(procfile.DefaultBufSize)), "Capacity of the report buffer (longer reports are clipped)")
	cmd.Flags().IntVar(&opts.ringBufferSize, "ring-buffer-size", cfg.Int("ring-buffer-size", defaultRingBufferSize), "Line capacity of the in-memory event log")
	cmd.Flags().BoolVar(&opts.allowOther, "allow-other", cfg.Bool("allow-other", false), "Allow other users to access the mounted filesystem")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", cfg.Bool("verbose", false), "Log each completed read of the info file")
	cmd.Flags().StringVarP(&opts.dashboardAddress, "webserver", "w", cfg.String("webserver", ""), "Address to serve the diagnostics dashboard on (e.g. :8000; but disabled when empty)")

	return cmd
}

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func run(opts programOpts) error {
	clk, err := clock.New(opts.hz)
	if err != nil {
		return fmt.Errorf("fs clock error: %w", err)
	}

	state, err := procfile.NewState(procfile.Params{
		Name:     opts.name,
		Group:    opts.group,
		Subgroup: opts.subgroup,
	}, clk)
	if err != nil {
		return fmt.Errorf("fs state error: %w", err)
	}

	rbuf := logging.NewRingBuffer(opts.ringBufferSize, os.Stderr)

	fsOpts := filesystem.DefaultOptions()
	fsOpts.BufSize.Store(opts.bufSize)
	fsOpts.Verbose.Store(opts.verbose)

	fsys, err := filesystem.NewFS(state, fsOpts, rbuf)
	if err != nil {
		return fmt.Errorf("fs setup error: %w", err)
	}
	defer fsys.Cleanup()

	var dash *webserver.InfoDashboard
	if opts.dashboardAddress != "" {
		dash, err = webserver.NewInfoDashboard(fsys, rbuf, Version)
		if err != nil {
			return fmt.Errorf("dashboard setup error: %w", err)
		}
	}

	rbuf.Printf("mounting studentfs at %q\n", opts.mountDir)

	c, err := fuse.Mount(opts.mountDir, buildMountOptions(opts)...)
	if err != nil {
		return fmt.Errorf("fs mount error: %w", err)
	}
	defer c.Close()
	defer fuse.Unmount(opts.mountDir) //nolint:errcheck

	params := state.Params()
	rbuf.Printf("%q created, reporting %s (group %d, subgroup %d)\n",
		procfile.FileName, params.Name, params.Group, params.Subgroup)
	rbuf.Printf("loaded at %d jiffies (HZ=%d)\n", state.LoadedAt(), state.Hz())

	var wg sync.WaitGroup
	errChan := make(chan error, 1)
	wg.Go(func() {
		defer close(errChan)
		if err := fs.Serve(c, fsys); err != nil {
			errChan <- fmt.Errorf("fs serve error: %w", err)
		}
	})

	notifyMountHelper(rbuf)

	if dash != nil {
		srv := dash.Serve(opts.dashboardAddress)
		defer srv.Close()
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		for range sig {
			rbuf.Println("Signal received, unmounting the filesystem...")

			if err := fuse.Unmount(opts.mountDir); err != nil {
				rbuf.Printf("Unmount error: %v (try again later)\n", err)

				continue
			}

			return
		}
	}()

	sig1 := make(chan os.Signal, 1)
	signal.Notify(sig1, syscall.SIGUSR1)
	go func() {
		for range sig1 {
			rbuf.Println("Signal received, forcing garbage collection...")
			runtime.GC()
			debug.FreeOSMemory()
		}
	}()

	sig2 := make(chan os.Signal, 1)
	signal.Notify(sig2, syscall.SIGUSR2)
	go func() {
		for range sig2 {
			rbuf.Println("Signal received, printing stacktrace (to stderr)...")
			buf := make([]byte, stackTraceBuffer)
			stacklen := runtime.Stack(buf, true)
			os.Stderr.Write(buf[:stacklen])
		}
	}()

	wg.Wait()

	rbuf.Printf("%q removed, total reads: %d\n", procfile.FileName, state.Reads())

	return <-errChan
}
