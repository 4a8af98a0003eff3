// Package webserver implements the diagnostics server.
package webserver

import (
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"runtime"
	"runtime/debug"
	"slices"
	"strconv"
	"sync/atomic"
	"text/template"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gorilla/mux"
	"github.com/klauspost/compress/gzhttp"
	"github.com/studentfs/studentfs/assets"
	"github.com/studentfs/studentfs/internal/filesystem"
	"github.com/studentfs/studentfs/internal/logging"
	"github.com/studentfs/studentfs/internal/procfile"
)

var (
	//go:embed templates/*.html
	templateFS    embed.FS
	indexTemplate = template.Must(template.ParseFS(templateFS, "templates/index.html"))

	// errInvalidArgument is for an invalid constructor argument.
	errInvalidArgument = errors.New("invalid argument")
)

// InfoDashboard is the implementation of the info file dashboard.
type InfoDashboard struct {
	version string
	fsys    *filesystem.FS
	rbuf    *logging.RingBuffer
}

// NewInfoDashboard returns a pointer to a new [InfoDashboard].
func NewInfoDashboard(fsys *filesystem.FS, rbuf *logging.RingBuffer, version string) (*InfoDashboard, error) {
	if fsys == nil {
		return nil, fmt.Errorf("%w: need filesystem", errInvalidArgument)
	}
	if rbuf == nil {
		return nil, fmt.Errorf("%w: need ring buffer", errInvalidArgument)
	}

	return &InfoDashboard{
		version: version,
		fsys:    fsys,
		rbuf:    rbuf,
	}, nil
}

// Serve serves the diagnostics dashboard as part of a [http.Server].
func (d *InfoDashboard) Serve(addr string) *http.Server {
	srv := &http.Server{Addr: addr, Handler: gzhttp.GzipHandler(d.dashboardMux())}

	go func() {
		defer func() {
			r := recover()
			if r != nil {
				fmt.Fprintf(os.Stderr, "(webserver) PANIC: %v\n", r)
				debug.PrintStack()
			}
		}()
		d.rbuf.Printf("serving dashboard on %s\n", addr)

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			d.rbuf.Printf("HTTP error: %v\n", err)
		}
	}()

	return srv
}

func (d *InfoDashboard) dashboardMux() *mux.Router {
	mux := mux.NewRouter()

	mux.HandleFunc("/", d.dashboardHandler)
	mux.HandleFunc("/metrics.json", d.metricsHandler)
	mux.HandleFunc("/report", d.reportHandler)
	mux.HandleFunc("/gc", d.gcHandler)
	mux.HandleFunc("/reset", d.resetMetricsHandler)

	mux.HandleFunc("/set/bufsize/{value}", d.bufsizeHandler)
	mux.HandleFunc("/set/verbose/{value}",
		d.booleanHandler("Verbose read logging", &d.fsys.Options.Verbose))

	mux.HandleFunc("/studentfs.svg", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "image/svg+xml")
		_, _ = w.Write(assets.Logo)
	})

	return mux
}

type infoDashboardData struct {
	AllocBytes          string   `json:"allocBytes"`
	AvgReportSize       string   `json:"avgReportSize"`
	BufSize             string   `json:"bufSize"`
	CurrentJiffies      string   `json:"currentJiffies"`
	FileName            string   `json:"fileName"`
	Group               int      `json:"group"`
	Hz                  uint64   `json:"hz"`
	LoadedAt            string   `json:"loadedAt"`
	Logs                []string `json:"logs"`
	ModuleUptime        string   `json:"moduleUptime"`
	Name                string   `json:"name"`
	NumGC               uint32   `json:"numGc"`
	ReadCount           int64    `json:"readCount"`
	RecentReads         int      `json:"recentReads"`
	RingBufferSize      int      `json:"ringBufferSize"`
	Subgroup            int      `json:"subgroup"`
	SysBytes            string   `json:"sysBytes"`
	TotalAlloc          string   `json:"totalAlloc"`
	TotalDeliveryErrors int64    `json:"totalDeliveryErrors"`
	TotalEOFs           int64    `json:"totalEofs"`
	TotalErrors         int64    `json:"totalErrors"`
	TotalReportBytes    string   `json:"totalReportBytes"`
	TotalSessions       int64    `json:"totalSessions"`
	TotalTruncations    int64    `json:"totalTruncations"`
	TrackerTTL          string   `json:"trackerTtl"`
	Uptime              string   `json:"uptime"`
	Verbose             string   `json:"verbose"`
	Version             string   `json:"version"`
}

func (d *InfoDashboard) collectMetrics() infoDashboardData {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	lines := d.rbuf.Lines()
	slices.Reverse(lines)

	params := d.fsys.State.Params()

	return infoDashboardData{
		AllocBytes:          humanize.IBytes(m.Alloc),
		AvgReportSize:       d.avgReportSize(),
		BufSize:             humanize.IBytes(d.fsys.Options.BufSize.Load()),
		CurrentJiffies:      formatTicks(d.fsys.State.Jiffies()),
		FileName:            procfile.FileName,
		Group:               params.Group,
		Hz:                  d.fsys.State.Hz(),
		LoadedAt:            formatTicks(d.fsys.State.LoadedAt()),
		Logs:                lines,
		ModuleUptime:        (time.Duration(d.fsys.State.Uptime()) * time.Second).String(),
		Name:                params.Name,
		NumGC:               m.NumGC,
		ReadCount:           d.fsys.State.Reads(),
		RecentReads:         d.fsys.RecentReads(),
		RingBufferSize:      d.rbuf.Size(),
		Subgroup:            params.Subgroup,
		SysBytes:            humanize.IBytes(m.Sys),
		TotalAlloc:          humanize.IBytes(m.TotalAlloc),
		TotalDeliveryErrors: d.fsys.Metrics.TotalDeliveryErrors.Load(),
		TotalEOFs:           d.fsys.Metrics.TotalEOFs.Load(),
		TotalErrors:         d.fsys.Metrics.Errors.Load(),
		TotalReportBytes:    d.totalReportBytes(),
		TotalSessions:       d.fsys.Metrics.TotalSessions.Load(),
		TotalTruncations:    d.fsys.Metrics.TotalTruncations.Load(),
		TrackerTTL:          d.fsys.Options.TrackerTTL.String(),
		Uptime:              humanize.Time(d.fsys.MountTime),
		Verbose:             enabledOrDisabled(d.fsys.Options.Verbose.Load()),
		Version:             d.version,
	}
}

func (d *InfoDashboard) dashboardHandler(w http.ResponseWriter, _ *http.Request) {
	data := d.collectMetrics()

	if err := indexTemplate.Execute(w, data); err != nil {
		d.rbuf.Printf("HTTP template execution error: %v\n", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (d *InfoDashboard) metricsHandler(w http.ResponseWriter, _ *http.Request) {
	data := d.collectMetrics()

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// reportHandler serves the info file content over HTTP.
// A served report is a completed read like any other and counts as one;
// a failed handoff to the requester is recorded, never retried.
func (d *InfoDashboard) reportHandler(w http.ResponseWriter, _ *http.Request) {
	data, err := d.fsys.ReadReport(0, -1)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)

		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if _, err := w.Write(data); err != nil {
		d.fsys.CountDeliveryFailure(err)
	}
}

func (d *InfoDashboard) gcHandler(w http.ResponseWriter, _ *http.Request) {
	runtime.GC()
	debug.FreeOSMemory()

	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	d.rbuf.Printf("GC forced via API, current heap: %s.\n", humanize.IBytes(m.Alloc))

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "GC forced, current heap: %s.\n", humanize.IBytes(m.Alloc))
}

// resetMetricsHandler zeroes the observational metrics.
// The read counter is part of the file state, not a metric, and stays as is.
func (d *InfoDashboard) resetMetricsHandler(w http.ResponseWriter, _ *http.Request) {
	d.fsys.Metrics.TotalSessions.Store(0)
	d.fsys.Metrics.TotalEOFs.Store(0)
	d.fsys.Metrics.TotalTruncations.Store(0)
	d.fsys.Metrics.TotalDeliveryErrors.Store(0)
	d.fsys.Metrics.TotalReportBytes.Store(0)
	d.fsys.Metrics.Errors.Store(0)

	d.rbuf.Println("Metrics reset via API.")

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "Metrics reset.")
}

func (d *InfoDashboard) bufsizeHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	val, err := humanize.ParseBytes(vars["value"])
	if err != nil {
		http.Error(w, fmt.Sprintf("Invalid string value: %v", err), http.StatusBadRequest)

		return
	}
	d.fsys.Options.BufSize.Store(val)

	d.rbuf.Printf("Report buffer capacity set via API: %s.\n", humanize.IBytes(val))

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "Report buffer capacity set: %s.\n", humanize.IBytes(val))
}

func (d *InfoDashboard) booleanHandler(desc string, target *atomic.Bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		vars := mux.Vars(r)

		val, err := strconv.ParseBool(vars["value"])
		if err != nil {
			http.Error(w, fmt.Sprintf("Invalid boolean value: %v", err), http.StatusBadRequest)

			return
		}
		target.Store(val)

		d.rbuf.Printf("%s set via API: %t.\n", desc, val)

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "%s set: %t.\n", desc, val)
	}
}
