package webserver

import (
	"math"
	"strconv"

	"github.com/dustin/go-humanize"
)

// avgReportSize returns a string of the average served report size.
func (d *InfoDashboard) avgReportSize() string {
	reads := d.fsys.State.Reads()
	served := d.fsys.Metrics.TotalReportBytes.Load()

	if reads == 0 || served < 0 {
		return "0 B"
	}

	return humanize.IBytes(uint64(served / reads))
}

// totalReportBytes returns a string of the total served report bytes.
func (d *InfoDashboard) totalReportBytes() string {
	served := d.fsys.Metrics.TotalReportBytes.Load()

	if served < 0 {
		return humanize.IBytes(0)
	}

	return humanize.IBytes(uint64(served))
}

// formatTicks returns a string of a tick reading with digit grouping.
func formatTicks(ticks uint64) string {
	if ticks > math.MaxInt64 {
		return strconv.FormatUint(ticks, 10)
	}

	return humanize.Comma(int64(ticks))
}

// enabledOrDisabled returns string "Enabled" or "Disabled" based on a boolean.
func enabledOrDisabled(v bool) string {
	if v {
		return "Enabled"
	}

	return "Disabled"
}
