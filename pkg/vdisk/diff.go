package vdisk

import (
	"io"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/vorteil/vsparse/pkg/elog"
	"github.com/vorteil/vsparse/pkg/vhd"
	"github.com/vorteil/vsparse/pkg/vio"
)

// LocatorPaths returns the absolute and child-relative forms of parentPath
// as they are stored in the parent locators of a differencing image written
// to childPath. Both use Windows separators. The relative form is empty when
// the two files are on different volumes.
func LocatorPaths(parentPath, childPath string) (abs, rel string, err error) {

	abs, err = filepath.Abs(parentPath)
	if err != nil {
		return "", "", err
	}

	child, err := filepath.Abs(childPath)
	if err != nil {
		return "", "", err
	}

	r, err := filepath.Rel(filepath.Dir(child), abs)
	if err == nil {
		rel = windowsPath(r)
		if !strings.HasPrefix(rel, `.`) {
			rel = `.\` + rel
		}
	}

	return windowsPath(abs), rel, nil
}

func windowsPath(p string) string {
	return strings.ReplaceAll(filepath.ToSlash(p), "/", `\`)
}

// DifferencingArgs configures WriteDifferencing.
type DifferencingArgs struct {
	// Parent is the open image the new disk reads through to.
	Parent *vhd.Image

	// ParentPath and ChildPath locate the two files so the child can find
	// its parent again.
	ParentPath string
	ChildPath  string

	CreatorApp string
	Logger     elog.View
}

// WriteDifferencing writes an empty differencing image over args.Parent to
// w. The new image inherits the parent's capacity, geometry and block size.
func WriteDifferencing(w io.Writer, args *DifferencingArgs) error {

	if args == nil || args.Parent == nil {
		return errors.Wrap(vhd.ErrNoParent, "differencing image")
	}
	if args.Logger == nil {
		args.Logger = elog.Discard
	}

	if args.Parent.DiskType() == vhd.DiskTypeFixed {
		args.Logger.Debugf("parent is fixed, using default block size")
	}

	abs, rel, err := LocatorPaths(args.ParentPath, args.ChildPath)
	if err != nil {
		return err
	}

	footer := vhd.NewFooter(args.Parent.Size(), vhd.DiskTypeDifferencing)
	footer.Geometry = args.Parent.Footer().Geometry
	if args.CreatorApp != "" {
		footer.SetCreatorApp(args.CreatorApp)
	}

	args.Logger.Debugf("parent locators: %q, %q", abs, rel)

	return build(w, &vhd.BuilderArgs{
		Source:    vio.ZeroStream(args.Parent.Size()),
		Footer:    footer,
		BlockSize: args.Parent.BlockSize(),
		Parent:    vhd.ParentInfoFromImage(args.Parent, abs, rel),
		Logger:    args.Logger,
	}, args.Logger)
}
