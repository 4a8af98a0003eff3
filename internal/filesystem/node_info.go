package filesystem

import (
	"context"
	"syscall"

	"bazil.org/fuse"
	"bazil.org/fuse/fs"
)

var (
	_ fs.Node         = (*infoFileNode)(nil)
	_ fs.NodeOpener   = (*infoFileNode)(nil)
	_ fs.HandleReader = (*infoFileNode)(nil)
)

// infoFileNode is the registered info file within our filesystem.
// Like a proc file it advertises no size; content materializes per read.
type infoFileNode struct {
	fsys *FS // Pointer to our filesystem.
}

func (n *infoFileNode) Attr(_ context.Context, a *fuse.Attr) error {
	a.Mode = fileBasePerm
	a.Inode = infoInode

	a.Size = 0 // Content materializes per read.

	a.Atime = n.fsys.MountTime
	a.Ctime = n.fsys.MountTime
	a.Mtime = n.fsys.MountTime

	return nil
}

// Open starts a read session against the info file.
// DirectIO makes the kernel bypass the page cache and read until our EOF,
// so the advertised zero size does not clip the response to nothing.
func (n *infoFileNode) Open(_ context.Context, _ *fuse.OpenRequest, resp *fuse.OpenResponse) (fs.Handle, error) {
	resp.Flags |= fuse.OpenDirectIO
	n.fsys.Metrics.TotalSessions.Add(1)

	return n, nil
}

func (n *infoFileNode) Read(_ context.Context, req *fuse.ReadRequest, resp *fuse.ReadResponse) error {
	data, err := n.fsys.ReadReport(req.Offset, req.Size)
	if err != nil {
		return fuse.ToErrno(syscall.EIO)
	}

	resp.Data = data

	return nil
}
