// Package filesystem implements the virtual filesystem serving the info file.
package filesystem

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"bazil.org/fuse"
	"bazil.org/fuse/fs"
	"github.com/studentfs/studentfs/internal/logging"
	"github.com/studentfs/studentfs/internal/procfile"
)

const (
	fileBasePerm = 0o444 // RO
	dirBasePerm  = 0o555 // RO

	rootInode = 1 // Fixed inode of the root directory.
	infoInode = 2 // Fixed inode of the info file.

	statfsBlockSize = 4096
	statfsNamelen   = 255

	defaultTrackerSize = 1024
	defaultTrackerTTL  = 60 * time.Second
	defaultVerbose     = false
)

var (
	_ fs.FS               = (*FS)(nil)
	_ fs.FSStatfser       = (*FS)(nil)
	_ fs.FSInodeGenerator = (*FS)(nil)

	errMissingArgument = errors.New("missing argument")
)

// Options contains all settings for the operation of the filesystem.
// All non-atomic fields can no longer be modified at runtime (once mounted).
type Options struct {
	// BufSize is the report buffer capacity in bytes.
	// Reports beyond this capacity deliver clipped, they never fail.
	BufSize atomic.Uint64

	// Verbose controls if every completed read is logged with its
	// running count. Expect chatty logs under automated scanners.
	Verbose atomic.Bool

	// TrackerSize is the retention capacity of the recent-read tracker.
	TrackerSize uint64

	// TrackerTTL is how long a read counts as recent before it is evicted.
	TrackerTTL time.Duration
}

// DefaultOptions returns a pointer to [Options] with the default values.
func DefaultOptions() *Options {
	opts := &Options{
		TrackerSize: defaultTrackerSize,
		TrackerTTL:  defaultTrackerTTL,
	}
	opts.BufSize.Store(procfile.DefaultBufSize)
	opts.Verbose.Store(defaultVerbose)

	return opts
}

// Metrics contains all metrics which are collected within the filesystem.
type Metrics struct {
	// TotalSessions is the amount of opened info file sessions.
	TotalSessions atomic.Int64

	// TotalEOFs is the amount of continuation reads answered with EOF.
	TotalEOFs atomic.Int64

	// TotalTruncations is the amount of reports clipped to the buffer capacity.
	TotalTruncations atomic.Int64

	// TotalDeliveryErrors is the amount of reports that failed to reach a requester.
	TotalDeliveryErrors atomic.Int64

	// TotalReportBytes is the amount of report bytes handed to requesters.
	TotalReportBytes atomic.Int64

	// Errors is the amount of all errors during filesystem operation.
	Errors atomic.Int64
}

// FS is the core implementation of the filesystem.
type FS struct {
	State *procfile.State

	Options *Options
	Metrics *Metrics

	// MountTime is when the filesystem was activated.
	MountTime time.Time

	tracker *readTracker
	bufpool sync.Pool

	rbuf *logging.RingBuffer
}

// NewFS returns a pointer to a new [FS].
// You must call Cleanup() once all work is complete.
func NewFS(state *procfile.State, opts *Options, rbuf *logging.RingBuffer) (*FS, error) {
	if state == nil {
		return nil, fmt.Errorf("%w: need a file state", errMissingArgument)
	}
	if rbuf == nil {
		return nil, fmt.Errorf("%w: need a ring buffer", errMissingArgument)
	}
	if opts == nil {
		opts = DefaultOptions()
	}

	fsys := &FS{
		State:     state,
		Options:   opts,
		Metrics:   &Metrics{},
		MountTime: time.Now(),
		rbuf:      rbuf,
	}
	fsys.tracker = newReadTracker(opts.TrackerSize, opts.TrackerTTL)
	fsys.bufpool = sync.Pool{
		New: func() any {
			return &bytes.Buffer{}
		},
	}

	return fsys, nil
}

// Cleanup does filesystem cleanup and blocks until done.
func (fsys *FS) Cleanup() {
	fsys.tracker.Stop()
}

// Root returns the entry-point [fs.Node] of the filesystem.
func (fsys *FS) Root() (fs.Node, error) {
	return &rootDirNode{
		fsys: fsys,
	}, nil
}

// Statfs answers like an empty pseudo filesystem; the single info file
// advertises no size and materializes only when read.
func (fsys *FS) Statfs(_ context.Context, _ *fuse.StatfsRequest, resp *fuse.StatfsResponse) error {
	resp.Bsize = statfsBlockSize
	resp.Namelen = statfsNamelen
	resp.Files = 1

	return nil
}

// GenerateInode implements [fs.FSInodeGenerator] to prevent dynamic
// inode generation by the fallback method inside of the FUSE library.
//
// [FS] has only fixed inodes, so dynamic inode generation within the
// FUSE library (being the fallback on encountering zero inodes) is a core
// violation of this very design principle. Calls to this method will panic,
// revealing where internal inode handling does not produce the valid inode.
func (fsys *FS) GenerateInode(_ uint64, _ string) uint64 {
	panic("unhandled zero inode triggered an illegal dynamic generation")
}

// ReadReport runs one read against the info file and returns the bytes
// owed to the requester.
//
// A read at offset zero completes a counted read: the read counter bumps
// first, then a fresh report renders with that count already in it. The
// rendering clips to the configured buffer capacity (logged and counted,
// never an error) and then to the requester window when size is not
// negative. Any other offset answers with no data, which requesters take
// as EOF, and leaves the counter untouched.
func (fsys *FS) ReadReport(offset int64, size int) ([]byte, error) {
	if offset > 0 {
		fsys.Metrics.TotalEOFs.Add(1)

		return nil, nil
	}

	count := fsys.State.AddRead()

	buf := fsys.bufpool.Get().(*bytes.Buffer) //nolint:forcetypeassert
	defer func() {
		buf.Reset()
		fsys.bufpool.Put(buf)
	}()

	if err := fsys.State.WriteReport(buf); err != nil {
		fsys.rbuf.Printf("Error: %q->Read: %v\n", procfile.FileName, err)

		return nil, fsys.countError(err)
	}

	data := buf.Bytes()
	if limit := fsys.Options.BufSize.Load(); limit > 0 && uint64(len(data)) > limit {
		data = data[:limit]
		fsys.Metrics.TotalTruncations.Add(1)
		fsys.rbuf.Printf("%q->Read: report clipped to %d bytes\n", procfile.FileName, limit)
	}
	if size >= 0 && len(data) > size {
		data = data[:size]
	}

	out := make([]byte, len(data))
	copy(out, data)

	fsys.tracker.Record(count)
	fsys.Metrics.TotalReportBytes.Add(int64(len(out)))

	if fsys.Options.Verbose.Load() {
		fsys.rbuf.Printf("%q read (count: %d)\n", procfile.FileName, count)
	}

	return out, nil
}

// CountDeliveryFailure records a report that could not reach its requester.
// The read that produced the report stays counted.
func (fsys *FS) CountDeliveryFailure(err error) {
	fsys.Metrics.TotalDeliveryErrors.Add(1)
	fsys.rbuf.Printf("Error: %q->Deliver: %v\n", procfile.FileName, err)
}

// RecentReads returns the amount of reads still within the tracking window.
func (fsys *FS) RecentReads() int {
	return fsys.tracker.Recent()
}

// countError increments the error metrics, passing the error through.
func (fsys *FS) countError(err error) error {
	fsys.Metrics.Errors.Add(1)

	return err
}
