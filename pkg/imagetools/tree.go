package imagetools

import (
	"fmt"
	"strings"

	"code.cloudfoundry.org/bytefmt"
	"github.com/vorteil/vsparse/pkg/vhd"
)

// TreeReport is a node of a printable tree.
type TreeReport struct {
	Name     string
	Children []TreeReport
}

func (tR *TreeReport) String() string {
	var b strings.Builder
	b.WriteString(tR.Name)
	b.WriteString("\n")
	for i := range tR.Children {
		tR.Children[i].render(&b, "", i == len(tR.Children)-1)
	}
	return strings.TrimSpace(b.String())
}

func (tR *TreeReport) render(b *strings.Builder, indent string, last bool) {

	branch, next := "├── ", "│   "
	if last {
		branch, next = "└── ", "    "
	}

	fmt.Fprintf(b, "%s%s%s\n", indent, branch, tR.Name)

	for i := range tR.Children {
		tR.Children[i].render(b, indent+next, i == len(tR.Children)-1)
	}
}

// TreeImage describes img and its parent chain. Each image lists its parent
// locators followed by the parent itself.
func TreeImage(img *vhd.Image, name string) TreeReport {

	treeOut := TreeReport{
		Name: fmt.Sprintf("%s (%s, %s)", name, img.DiskType(), bytefmt.ByteSize(uint64(img.Size()))),
	}

	if img.DiskType() != vhd.DiskTypeDifferencing {
		return treeOut
	}

	paths, err := img.ParentPaths()
	if err != nil {
		treeOut.Children = append(treeOut.Children, TreeReport{Name: "locators: " + err.Error()})
	}
	for _, p := range paths {
		treeOut.Children = append(treeOut.Children, TreeReport{
			Name: fmt.Sprintf("locator %s: %s", p.Code, p.Path),
		})
	}

	pname := img.Header().ParentName()
	switch p := img.Parent().(type) {
	case *vhd.Image:
		treeOut.Children = append(treeOut.Children, TreeImage(p, pname))
	case nil:
		treeOut.Children = append(treeOut.Children, TreeReport{Name: pname + " (missing)"})
	default:
		treeOut.Children = append(treeOut.Children, TreeReport{
			Name: fmt.Sprintf("%s (external, %s)", pname, bytefmt.ByteSize(uint64(p.Size()))),
		})
	}

	return treeOut
}
