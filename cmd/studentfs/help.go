package main

const (
	helpTextUse = "studentfs <mount-dir>"

	helpTextShort = "a read-only FUSE filesystem serving a student info file"

	helpTextLong = `studentfs is a read-only FUSE filesystem that serves a single virtual file,
student_info, with a formatted report of a configured student (name, group and
subgroup) alongside live counters - the jiffies value at mount time, seconds
of uptime, the number of completed reads and the current jiffies value. The
report is rendered fresh on every read, so consumers always see live values.
It includes a HTTP webserver for a responsive diagnostics dashboard and
runtime configurables.

When mounted, the following OS signals are observed at runtime:
- SIGTERM/SIGINT for gracefully unmounting the FS
- SIGUSR1 for forcing a garbage collection run within Go
- SIGUSR2 for printing a stack trace to standard error (stderr)

When enabled, the diagnostics dashboard exposes the following routes:
- "/" for filesystem dashboard and event ring-buffer
- "/report" for a counted read of the info file over HTTP
- "/metrics.json" for the dashboard metrics in JSON format
- "/gc" for forcing of a garbage collection (within Go)
- "/reset" for resetting the filesystem metrics at runtime
- "/set/bufsize/<string>" for adapting the report buffer capacity
- "/set/verbose/<bool>" for toggling per-read event logging`
)
