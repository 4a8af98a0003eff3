package filesystem

import (
	"bytes"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"bazil.org/fuse"
	"github.com/stretchr/testify/require"
	"github.com/studentfs/studentfs/internal/logging"
	"github.com/studentfs/studentfs/internal/procfile"
)

// fakeClock is a hand-settable [procfile.Clock] for deterministic reports.
type fakeClock struct {
	now uint64
	hz  uint64
}

func (c *fakeClock) Jiffies() uint64 { return c.now }
func (c *fakeClock) Hz() uint64      { return c.hz }

// testState builds a [procfile.State] around a deterministic clock.
func testState(t *testing.T) *procfile.State {
	t.Helper()

	st, err := procfile.NewState(
		procfile.Params{Name: "Ann Lee", Group: 3, Subgroup: 1},
		&fakeClock{now: 5000, hz: 100},
	)
	require.NoError(t, err)

	return st
}

// testFS builds a ready [FS] with its logs going to out.
func testFS(t *testing.T, out io.Writer) *FS {
	t.Helper()

	fsys, err := NewFS(testState(t), nil, logging.NewRingBuffer(64, out))
	require.NoError(t, err)
	t.Cleanup(fsys.Cleanup)

	return fsys
}

// Expectation: NewFS should reject missing arguments.
func Test_NewFS_MissingArguments_Error(t *testing.T) {
	t.Parallel()

	rbuf := logging.NewRingBuffer(64, io.Discard)

	fsys, err := NewFS(nil, nil, rbuf)
	require.Nil(t, fsys)
	require.ErrorIs(t, err, errMissingArgument)

	fsys, err = NewFS(testState(t), nil, nil)
	require.Nil(t, fsys)
	require.ErrorIs(t, err, errMissingArgument)
}

// Expectation: NewFS should fall back to the default options when given none.
func Test_NewFS_DefaultOptions_Success(t *testing.T) {
	t.Parallel()

	fsys := testFS(t, io.Discard)

	require.Equal(t, uint64(procfile.DefaultBufSize), fsys.Options.BufSize.Load())
	require.False(t, fsys.Options.Verbose.Load())
	require.Equal(t, uint64(defaultTrackerSize), fsys.Options.TrackerSize)
	require.Equal(t, defaultTrackerTTL, fsys.Options.TrackerTTL)
	require.NotZero(t, fsys.MountTime)
}

// Expectation: The root node should be the synthetic root directory.
func Test_FS_Root_Success(t *testing.T) {
	t.Parallel()

	fsys := testFS(t, io.Discard)

	node, err := fsys.Root()
	require.NoError(t, err)

	dn, ok := node.(*rootDirNode)
	require.True(t, ok)
	require.Same(t, fsys, dn.fsys)
}

// Expectation: A panic should occur when GenerateInode is called.
func Test_FS_GenerateInode_Panic(t *testing.T) {
	t.Parallel()

	defer func() {
		r := recover()
		require.NotNil(t, r, "GenerateInode must panic")
	}()

	fsys := testFS(t, io.Discard)

	fsys.GenerateInode(0, "")
}

// Expectation: Statfs should answer like an empty pseudo filesystem.
func Test_FS_Statfs_Success(t *testing.T) {
	t.Parallel()

	fsys := testFS(t, io.Discard)

	var resp fuse.StatfsResponse
	require.NoError(t, fsys.Statfs(t.Context(), &fuse.StatfsRequest{}, &resp))

	require.Equal(t, uint32(statfsBlockSize), resp.Bsize)
	require.Equal(t, uint32(statfsNamelen), resp.Namelen)
	require.Equal(t, uint64(1), resp.Files)
}

// Expectation: An offset-zero read should count and render its own read.
func Test_FS_ReadReport_CountsAndRenders_Success(t *testing.T) {
	t.Parallel()

	fsys := testFS(t, io.Discard)

	data, err := fsys.ReadReport(0, -1)
	require.NoError(t, err)
	require.Contains(t, string(data), "  Read count:        1\n")
	require.Contains(t, string(data), "  Name:              Ann Lee\n")

	data, err = fsys.ReadReport(0, -1)
	require.NoError(t, err)
	require.Contains(t, string(data), "  Read count:        2\n")

	require.Equal(t, int64(2), fsys.State.Reads())
	require.Equal(t, int64(2*len(data)), fsys.Metrics.TotalReportBytes.Load())
}

// Expectation: A continuation read should answer EOF and leave the counter alone.
func Test_FS_ReadReport_ContinuationEOF_Success(t *testing.T) {
	t.Parallel()

	fsys := testFS(t, io.Discard)

	data, err := fsys.ReadReport(0, -1)
	require.NoError(t, err)
	require.NotEmpty(t, data)

	cont, err := fsys.ReadReport(int64(len(data)), -1)
	require.NoError(t, err)
	require.Empty(t, cont)

	require.Equal(t, int64(1), fsys.State.Reads())
	require.Equal(t, int64(1), fsys.Metrics.TotalEOFs.Load())
}

// Expectation: A continuation read with no preceding read still counts nothing.
func Test_FS_ReadReport_ColdContinuation_Success(t *testing.T) {
	t.Parallel()

	fsys := testFS(t, io.Discard)

	data, err := fsys.ReadReport(512, -1)
	require.NoError(t, err)
	require.Empty(t, data)

	require.Zero(t, fsys.State.Reads())
}

// Expectation: Reports beyond the buffer capacity should deliver clipped.
func Test_FS_ReadReport_Truncation_Success(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	fsys := testFS(t, &out)

	full, err := fsys.ReadReport(0, -1)
	require.NoError(t, err)
	require.Zero(t, fsys.Metrics.TotalTruncations.Load())

	fsys.Options.BufSize.Store(100)

	clipped, err := fsys.ReadReport(0, -1)
	require.NoError(t, err)
	require.Len(t, clipped, 100)
	require.Equal(t, full[:100], clipped)

	require.Equal(t, int64(1), fsys.Metrics.TotalTruncations.Load())
	require.Equal(t, int64(2), fsys.State.Reads())
	require.Contains(t, out.String(), "clipped to 100 bytes")
}

// Expectation: An oversized name should clip at the default capacity, not fail.
func Test_FS_ReadReport_LongName_Truncation_Success(t *testing.T) {
	t.Parallel()

	st, err := procfile.NewState(
		procfile.Params{Name: strings.Repeat("N", 2*procfile.DefaultBufSize), Group: 3, Subgroup: 1},
		&fakeClock{now: 5000, hz: 100},
	)
	require.NoError(t, err)

	fsys, err := NewFS(st, nil, logging.NewRingBuffer(64, io.Discard))
	require.NoError(t, err)
	t.Cleanup(fsys.Cleanup)

	data, err := fsys.ReadReport(0, -1)
	require.NoError(t, err)
	require.Len(t, data, procfile.DefaultBufSize)

	require.Equal(t, int64(1), fsys.Metrics.TotalTruncations.Load())
	require.Equal(t, int64(1), fsys.State.Reads())
}

// Expectation: The requester window should clip after the buffer capacity.
func Test_FS_ReadReport_WindowClip_Success(t *testing.T) {
	t.Parallel()

	fsys := testFS(t, io.Discard)

	full, err := fsys.ReadReport(0, -1)
	require.NoError(t, err)

	head, err := fsys.ReadReport(0, 10)
	require.NoError(t, err)
	require.Equal(t, full[:10], head)

	none, err := fsys.ReadReport(0, 0)
	require.NoError(t, err)
	require.Empty(t, none)

	// Window clipping still counts; only nonzero offsets do not.
	require.Equal(t, int64(3), fsys.State.Reads())
}

// Expectation: Verbose mode should log every completed read with its count.
func Test_FS_ReadReport_Verbose_Success(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	fsys := testFS(t, &out)
	fsys.Options.Verbose.Store(true)

	_, err := fsys.ReadReport(0, -1)
	require.NoError(t, err)
	require.Contains(t, out.String(), "read (count: 1)")

	_, err = fsys.ReadReport(0, -1)
	require.NoError(t, err)
	require.Contains(t, out.String(), "read (count: 2)")
}

// Expectation: Concurrent reads must not lose counts or tear reports.
func Test_FS_ReadReport_Concurrency_Success(t *testing.T) {
	t.Parallel()

	fsys := testFS(t, io.Discard)

	var wg sync.WaitGroup
	for range 50 {
		wg.Go(func() {
			for range 20 {
				data, err := fsys.ReadReport(0, -1)
				require.NoError(t, err)
				require.True(t, strings.HasPrefix(string(data), "╔"))
				require.True(t, strings.HasSuffix(string(data), "╝\n"))
			}
		})
	}
	wg.Wait()

	require.Equal(t, int64(1000), fsys.State.Reads())
}

// Expectation: Completed reads should register in the recent-read window.
func Test_FS_RecentReads_Success(t *testing.T) {
	t.Parallel()

	fsys := testFS(t, io.Discard)

	for range 3 {
		_, err := fsys.ReadReport(0, -1)
		require.NoError(t, err)
	}

	require.Equal(t, 3, fsys.RecentReads())
}

// Expectation: A delivery failure should log and count, nothing more.
func Test_FS_CountDeliveryFailure_Success(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	fsys := testFS(t, &out)

	_, err := fsys.ReadReport(0, -1)
	require.NoError(t, err)

	fsys.CountDeliveryFailure(io.ErrClosedPipe)

	require.Equal(t, int64(1), fsys.Metrics.TotalDeliveryErrors.Load())
	require.Equal(t, int64(1), fsys.State.Reads())
	require.Contains(t, out.String(), "Deliver")
}

// Expectation: Reads should expire out of the tracking window after TTL.
func Test_readTracker_Expiry_Success(t *testing.T) {
	t.Parallel()

	tracker := newReadTracker(16, 50*time.Millisecond)
	t.Cleanup(tracker.Stop)

	tracker.Record(1)
	tracker.Record(2)
	require.Equal(t, 2, tracker.Recent())

	require.Eventually(t, func() bool {
		return tracker.Recent() == 0
	}, 2*time.Second, 10*time.Millisecond)
}
