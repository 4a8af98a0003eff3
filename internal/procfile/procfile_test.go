package procfile

import (
	"bytes"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// fakeClock is a hand-settable [Clock] for deterministic reports.
type fakeClock struct {
	now uint64
	hz  uint64
}

func (c *fakeClock) Jiffies() uint64 { return c.now }
func (c *fakeClock) Hz() uint64      { return c.hz }

// failingWriter refuses every write, standing in for an unreachable requester.
type failingWriter struct{}

func (failingWriter) Write(_ []byte) (int, error) {
	return 0, errors.New("write refused")
}

// Expectation: NewState should reject a missing clock.
func Test_NewState_NilClock_Error(t *testing.T) {
	t.Parallel()

	st, err := NewState(DefaultParams(), nil)

	require.Nil(t, st)
	require.ErrorIs(t, err, errMissingArgument)
}

// Expectation: NewState should capture the load tick once, at construction.
func Test_NewState_CapturesLoadTick_Success(t *testing.T) {
	t.Parallel()

	clk := &fakeClock{now: 4321, hz: 100}

	st, err := NewState(DefaultParams(), clk)
	require.NoError(t, err)
	require.Equal(t, uint64(4321), st.LoadedAt())

	clk.now = 9999

	require.Equal(t, uint64(4321), st.LoadedAt())
	require.Equal(t, uint64(9999), st.Jiffies())
}

// Expectation: Uptime should be whole seconds since activation.
func Test_State_Uptime_Success(t *testing.T) {
	t.Parallel()

	clk := &fakeClock{now: 1000, hz: 100}

	st, err := NewState(DefaultParams(), clk)
	require.NoError(t, err)

	require.Equal(t, uint64(0), st.Uptime())

	clk.now = 1099
	require.Equal(t, uint64(0), st.Uptime())

	clk.now = 4000
	require.Equal(t, uint64(30), st.Uptime())
}

// Expectation: AddRead should count up from zero and report the new total.
func Test_State_AddRead_Success(t *testing.T) {
	t.Parallel()

	st, err := NewState(DefaultParams(), &fakeClock{hz: 100})
	require.NoError(t, err)

	require.Zero(t, st.Reads())
	require.Equal(t, int64(1), st.AddRead())
	require.Equal(t, int64(2), st.AddRead())
	require.Equal(t, int64(3), st.AddRead())
	require.Equal(t, int64(3), st.Reads())
}

// Expectation: Concurrent bumps must not lose increments.
func Test_State_AddRead_Concurrency_Success(t *testing.T) {
	t.Parallel()

	st, err := NewState(DefaultParams(), &fakeClock{hz: 100})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for range 100 {
		wg.Go(func() {
			for range 100 {
				st.AddRead()
			}
		})
	}
	wg.Wait()

	require.Equal(t, int64(10000), st.Reads())
}

// Expectation: WriteReport should render the exact report layout.
func Test_WriteReport_ExactFormat_Success(t *testing.T) {
	t.Parallel()

	clk := &fakeClock{now: 4295123456, hz: 100}

	st, err := NewState(Params{Name: "Ann Lee", Group: 3, Subgroup: 1}, clk)
	require.NoError(t, err)

	clk.now += 3000 // 30 seconds of uptime
	for range 7 {
		st.AddRead()
	}

	var buf bytes.Buffer
	require.NoError(t, st.WriteReport(&buf))

	expected := "╔══════════════════════════════════════════════════╗\n" +
		"║         Student Information                      ║\n" +
		"╠══════════════════════════════════════════════════╣\n" +
		"  Name:              Ann Lee\n" +
		"  Group:             3\n" +
		"  Subgroup:          1\n" +
		"  Module loaded at:  4295123456 jiffies\n" +
		"  Module uptime:     30 seconds\n" +
		"  Read count:        7\n" +
		"  Current jiffies:   4295126456\n" +
		"╚══════════════════════════════════════════════════╝\n"

	require.Equal(t, expected, buf.String())
}

// Expectation: A report should include the read that produced it.
func Test_WriteReport_ShowsOwnRead_Success(t *testing.T) {
	t.Parallel()

	st, err := NewState(DefaultParams(), &fakeClock{hz: 100})
	require.NoError(t, err)

	st.AddRead()

	var buf bytes.Buffer
	require.NoError(t, st.WriteReport(&buf))

	require.Contains(t, buf.String(), "  Name:              Kuharev Kirill\n")
	require.Contains(t, buf.String(), "  Read count:        1\n")
}

// Expectation: A refused write should error out without touching the counter.
func Test_WriteReport_WriterFailure_Error(t *testing.T) {
	t.Parallel()

	st, err := NewState(DefaultParams(), &fakeClock{hz: 100})
	require.NoError(t, err)

	st.AddRead()

	require.Error(t, st.WriteReport(failingWriter{}))
	require.Equal(t, int64(1), st.Reads())
}
