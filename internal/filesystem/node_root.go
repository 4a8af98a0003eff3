package filesystem

import (
	"context"
	"os"
	"syscall"

	"bazil.org/fuse"
	"bazil.org/fuse/fs"
	"github.com/studentfs/studentfs/internal/procfile"
)

var (
	_ fs.Node               = (*rootDirNode)(nil)
	_ fs.HandleReadDirAller = (*rootDirNode)(nil)
	_ fs.NodeStringLookuper = (*rootDirNode)(nil)
)

// rootDirNode is the synthetic root directory of our filesystem.
// It holds exactly one entry, the registered info file.
type rootDirNode struct {
	fsys *FS // Pointer to our filesystem.
}

func (d *rootDirNode) Attr(_ context.Context, a *fuse.Attr) error {
	a.Mode = os.ModeDir | dirBasePerm
	a.Inode = rootInode

	a.Atime = d.fsys.MountTime
	a.Ctime = d.fsys.MountTime
	a.Mtime = d.fsys.MountTime

	return nil
}

func (d *rootDirNode) ReadDirAll(_ context.Context) ([]fuse.Dirent, error) {
	return []fuse.Dirent{
		{
			Name:  procfile.FileName,
			Type:  fuse.DT_File,
			Inode: infoInode,
		},
	}, nil
}

func (d *rootDirNode) Lookup(_ context.Context, name string) (fs.Node, error) {
	if name == procfile.FileName {
		return &infoFileNode{fsys: d.fsys}, nil
	}

	return nil, fuse.ToErrno(syscall.ENOENT)
}
