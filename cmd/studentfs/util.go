package main

import (
	"os"
	"strconv"

	"bazil.org/fuse"
	"github.com/studentfs/studentfs/internal/logging"
)

// helperFDEnv names the environment variable through which a supervising
// mount helper announces its readiness pipe (as a file descriptor number).
const helperFDEnv = "STUDENTFS_HELPER_FD"

func buildMountOptions(opts programOpts) []fuse.MountOption {
	mountOpts := []fuse.MountOption{
		fuse.ReadOnly(),
		fuse.FSName("studentfs"),
		fuse.Subtype("studentfs"),
	}

	if opts.allowOther {
		mountOpts = append(mountOpts, fuse.AllowOther())
	}

	return mountOpts
}

// notifyMountHelper writes a single readiness byte to the mount helper,
// when one has announced itself through the environment. The helper also
// polls the mount table, so a failure here only delays it.
func notifyMountHelper(rbuf *logging.RingBuffer) {
	fdStr := os.Getenv(helperFDEnv)
	if fdStr == "" {
		return
	}

	fd, err := strconv.ParseUint(fdStr, 10, 32)
	if err != nil {
		rbuf.Printf("Error: invalid %s value: %v\n", helperFDEnv, err)

		return
	}

	f := os.NewFile(uintptr(fd), "mount-helper-pipe")
	if f == nil {
		return
	}
	defer f.Close()

	if _, err := f.Write([]byte{'+'}); err != nil {
		rbuf.Printf("Error: failed to signal mount helper: %v\n", err)
	}
}
