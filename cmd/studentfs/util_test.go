package main

import (
	"io"
	"os"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/studentfs/studentfs/internal/logging"
)

// Expectation: The base mount options should mark the FS read-only and named.
func Test_buildMountOptions_Success(t *testing.T) {
	t.Parallel()

	base := buildMountOptions(programOpts{})
	require.Len(t, base, 3)

	shared := buildMountOptions(programOpts{allowOther: true})
	require.Len(t, shared, 4)
}

// Expectation: A readiness byte should reach the announced descriptor.
func Test_notifyMountHelper_Success(t *testing.T) {
	r, w, err := os.Pipe()
	require.NoError(t, err)
	defer r.Close()

	t.Setenv(helperFDEnv, strconv.Itoa(int(w.Fd())))

	rbuf := logging.NewRingBuffer(10, io.Discard)
	notifyMountHelper(rbuf)

	buf := make([]byte, 1)
	n, err := r.Read(buf)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.Equal(t, byte('+'), buf[0])

	require.Empty(t, rbuf.Lines())
}

// Expectation: An unset environment should be a silent no-op.
func Test_notifyMountHelper_Unset_Success(t *testing.T) {
	t.Setenv(helperFDEnv, "")

	rbuf := logging.NewRingBuffer(10, io.Discard)
	notifyMountHelper(rbuf)

	require.Empty(t, rbuf.Lines())
}

// Expectation: An unparseable descriptor value should be logged, not fatal.
func Test_notifyMountHelper_InvalidValue_Error(t *testing.T) {
	t.Setenv(helperFDEnv, "not-a-number")

	rbuf := logging.NewRingBuffer(10, io.Discard)
	notifyMountHelper(rbuf)

	lines := rbuf.Lines()
	require.Len(t, lines, 1)
	require.Contains(t, lines[0], "invalid STUDENTFS_HELPER_FD value")
}
