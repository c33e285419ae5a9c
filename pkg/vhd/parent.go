package vhd

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/vorteil/vsparse/pkg/elog"
)

const maxChainDepth = 64

func (img *Image) attachParent(args *OpenArgs) error {

	if img.parent == nil && args.resolve != nil {
		p, err := args.resolve(img)
		if err != nil {
			return err
		}
		img.parent = p
		img.ownsParent = true
	}

	if img.parent == nil {
		return errors.Wrapf(ErrNoParent, "parent %q", img.header.ParentName())
	}

	err := img.checkChain()
	if err != nil {
		return err
	}

	if pi, ok := img.parent.(*Image); ok && pi.footer.UniqueID != img.header.ParentUniqueID {
		f := Finding{
			Severity: SeverityWarning,
			Message:  "parent unique id " + pi.footer.UniqueID.String() + " does not match header " + img.header.ParentUniqueID.String(),
		}
		img.log.Warnf("%s", f.Message)
		img.findings = append(img.findings, f)
	}

	return nil
}

// checkChain rejects parent chains that lead back to img or run too deep.
func (img *Image) checkChain() error {

	var p Parent = img.parent

	for depth := 1; p != nil; depth++ {

		if depth > maxChainDepth {
			return errors.Wrapf(ErrFormat, "parent chain deeper than %d images", maxChainDepth)
		}

		pi, ok := p.(*Image)
		if !ok {
			return nil
		}

		if pi == img {
			return errors.Wrap(ErrFormat, "image is its own parent")
		}

		if pi.footer.UniqueID == img.footer.UniqueID {
			return errors.Wrapf(ErrFormat, "parent chain contains this image's unique id %s", img.footer.UniqueID)
		}

		p = pi.parent
	}

	return nil
}

// readParent fills p with logical bytes at off as seen by the parent. Bytes
// beyond the parent, or every byte when there is none, are zero.
func (img *Image) readParent(p []byte, off int64) error {

	if img.footer.DiskType != DiskTypeDifferencing || img.parent == nil {
		zeroFill(p)
		return nil
	}

	psize := img.parent.Size()
	if off >= psize {
		zeroFill(p)
		return nil
	}

	n := int64(len(p))
	if off+n > psize {
		n = psize - off
	}

	k, err := img.parent.ReadAt(p[:n], off)
	if int64(k) < n {
		if err == nil || err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return errors.Wrapf(err, "reading parent at %#x", off)
	}

	zeroFill(p[n:])
	return nil
}

// OpenFileArgs controls OpenFile.
type OpenFileArgs struct {
	ReadOnly          bool
	DeferFooterCommit bool
	Logger            elog.Logger

	// Parent, if set, is used instead of resolving the parent locators.
	// It is not closed with the image.
	Parent Parent
}

// OpenFile opens the image at path. The parent of a differencing image is
// found through its locators, tried relative to the image's directory
// first, and opened read-only. Every file opened is closed with the image.
func OpenFile(path string, args *OpenFileArgs) (*Image, error) {
	return openFile(path, args, 0)
}

func openFile(path string, args *OpenFileArgs, depth int) (*Image, error) {

	if args == nil {
		args = &OpenFileArgs{}
	}

	if depth > maxChainDepth {
		return nil, errors.Wrapf(ErrFormat, "parent chain deeper than %d images", maxChainDepth)
	}

	flag := os.O_RDWR
	if args.ReadOnly {
		flag = os.O_RDONLY
	}

	f, err := os.OpenFile(path, flag, 0)
	if err != nil {
		return nil, err
	}

	var rs io.ReadSeeker = f
	if args.ReadOnly {
		rs = &readOnlyFile{f: f}
	}

	return Open(rs, &OpenArgs{
		Parent:            args.Parent,
		OwnsStream:        true,
		DeferFooterCommit: args.DeferFooterCommit,
		Logger:            args.Logger,
		resolve: func(img *Image) (Parent, error) {
			return resolveParent(img, path, args, depth)
		},
	})
}

func resolveParent(img *Image, child string, args *OpenFileArgs, depth int) (Parent, error) {

	candidates, err := img.parentCandidates(filepath.Dir(child))
	if err != nil {
		return nil, err
	}

	self, _ := filepath.Abs(child)

	for _, c := range candidates {

		abs, _ := filepath.Abs(c)
		if abs == self {
			return nil, errors.Wrapf(ErrFormat, "%s names itself as its parent", child)
		}

		if _, err := os.Stat(c); err != nil {
			img.log.Debugf("parent candidate %s: %v", c, err)
			continue
		}

		img.log.Debugf("opening parent %s", c)
		return openFile(c, &OpenFileArgs{ReadOnly: true, Logger: args.Logger}, depth+1)
	}

	return nil, errors.Wrapf(ErrNoParent, "none of %d candidate paths for %q exist", len(candidates), img.header.ParentName())
}

// parentCandidates lists possible parent paths, relative locators first,
// then absolute ones, then the bare parent name next to the image.
func (img *Image) parentCandidates(dir string) ([]string, error) {

	paths, err := img.ParentPaths()
	if err != nil && img.header.ParentName() == "" {
		return nil, err
	}

	var rel, abs []string
	for _, lp := range paths {
		p := localPath(lp.Path)
		if lp.Relative || !filepath.IsAbs(p) {
			rel = append(rel, filepath.Join(dir, p))
		} else {
			abs = append(abs, p)
		}
	}

	candidates := append(rel, abs...)
	if name := img.header.ParentName(); name != "" {
		candidates = append(candidates, filepath.Join(dir, filepath.Base(localPath(name))))
	}

	return candidates, nil
}

func localPath(p string) string {
	return filepath.FromSlash(strings.ReplaceAll(p, `\`, "/"))
}

type readOnlyFile struct {
	f *os.File
}

func (r *readOnlyFile) Read(p []byte) (int, error) {
	return r.f.Read(p)
}

func (r *readOnlyFile) ReadAt(p []byte, off int64) (int, error) {
	return r.f.ReadAt(p, off)
}

func (r *readOnlyFile) Seek(offset int64, whence int) (int64, error) {
	return r.f.Seek(offset, whence)
}

func (r *readOnlyFile) Close() error {
	return r.f.Close()
}
