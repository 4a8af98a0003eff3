// Package procfile implements the student info file state and its report.
package procfile

import (
	"errors"
	"fmt"
	"io"
	"sync/atomic"
)

// FileName is the fixed name the info file is registered under.
const FileName = "student_info"

// DefaultBufSize is the report buffer capacity in bytes.
// Reports beyond this capacity are clipped, never refused.
const DefaultBufSize = 1024

var errMissingArgument = errors.New("missing argument")

// Clock provides the tick readings that timestamp the report.
type Clock interface {
	Jiffies() uint64
	Hz() uint64
}

// Params are the identity values shown in the report.
type Params struct {
	Name     string
	Group    int
	Subgroup int
}

// DefaultParams returns the built-in identity values.
func DefaultParams() Params {
	return Params{
		Name:     "Kuharev Kirill",
		Group:    9,
		Subgroup: 2,
	}
}

// State is the live state of one activation of the info file.
//
// The read counter starts at zero and only ever moves up; a later activation
// constructs a new [State] and with it a fresh counter. Counter access is
// atomic, so concurrent readers cannot lose increments.
type State struct {
	params Params
	clk    Clock
	loaded uint64
	reads  atomic.Int64
}

// NewState returns a pointer to a new [State], capturing the load tick.
func NewState(params Params, clk Clock) (*State, error) {
	if clk == nil {
		return nil, fmt.Errorf("%w: need a clock", errMissingArgument)
	}

	return &State{
		params: params,
		clk:    clk,
		loaded: clk.Jiffies(),
	}, nil
}

// Params returns the identity values of this activation.
func (st *State) Params() Params {
	return st.params
}

// Hz returns the tick rate of the underlying clock.
func (st *State) Hz() uint64 {
	return st.clk.Hz()
}

// LoadedAt returns the tick reading captured at activation.
func (st *State) LoadedAt() uint64 {
	return st.loaded
}

// Jiffies returns the current tick reading.
func (st *State) Jiffies() uint64 {
	return st.clk.Jiffies()
}

// Uptime returns whole seconds elapsed since activation.
func (st *State) Uptime() uint64 {
	return (st.clk.Jiffies() - st.loaded) / st.clk.Hz()
}

// Reads returns the number of completed reads within this activation.
func (st *State) Reads() int64 {
	return st.reads.Load()
}

// AddRead bumps the read counter and returns the new total.
// The bump happens before rendering, so a report includes its own read.
func (st *State) AddRead() int64 {
	return st.reads.Add(1)
}

// WriteReport renders the report into w.
// Uptime and the current reading derive from one tick sample, so the
// rendered lines cannot disagree with each other.
func (st *State) WriteReport(w io.Writer) error {
	now := st.clk.Jiffies()
	uptime := (now - st.loaded) / st.clk.Hz()

	_, err := fmt.Fprintf(w,
		"╔══════════════════════════════════════════════════╗\n"+
			"║         Student Information                      ║\n"+
			"╠══════════════════════════════════════════════════╣\n"+
			"  Name:              %s\n"+
			"  Group:             %d\n"+
			"  Subgroup:          %d\n"+
			"  Module loaded at:  %d jiffies\n"+
			"  Module uptime:     %d seconds\n"+
			"  Read count:        %d\n"+
			"  Current jiffies:   %d\n"+
			"╚══════════════════════════════════════════════════╝\n",
		st.params.Name, st.params.Group, st.params.Subgroup,
		st.loaded, uptime, st.reads.Load(), now)
	if err != nil {
		return fmt.Errorf("failed to render report: %w", err)
	}

	return nil
}
