//go:build linux

package devices

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/smazurov/capturebridge/pkg/linuxav/v4l2"
)

func init() {
	RegisterBackend("v4l2", NewV4L2Source, KindVideo)
}

// v4l2Source enumerates /dev/videoN capture nodes. Metadata, output and
// memory-to-memory nodes are the incompatible class and are filtered.
type v4l2Source struct {
	logger *slog.Logger
	list   func() ([]v4l2.Node, error)
	open   func(path string) (Binding, error)
}

// NewV4L2Source returns the Video4Linux2 backend.
func NewV4L2Source(logger *slog.Logger) Source {
	return &v4l2Source{
		logger: logger,
		list:   v4l2.ListNodes,
		open:   openV4L2,
	}
}

func (s *v4l2Source) Name() string { return "v4l2" }
func (s *v4l2Source) Init() error { return nil }
func (s *v4l2Source) Uninit() {}

func (s *v4l2Source) Open(kind Kind) (Category, error) {
	if kind != KindVideo {
		return nil, fmt.Errorf("v4l2 does not enumerate %s devices", kind)
	}
	nodes, err := s.list()
	if err != nil {
		return nil, err
	}
	return &v4l2Category{src: s, nodes: nodes}, nil
}

type v4l2Category struct {
	src   *v4l2Source
	nodes []v4l2.Node
}

func (c *v4l2Category) Next() (Candidate, error) {
	if len(c.nodes) == 0 {
		return nil, io.EOF
	}
	n := c.nodes[0]
	c.nodes = c.nodes[1:]
	return &v4l2Candidate{src: c.src, node: n}, nil
}

func (c *v4l2Category) Release() { c.nodes = nil }

type v4l2Candidate struct {
	src  *v4l2Source
	node v4l2.Node
}

func (c *v4l2Candidate) Legacy() bool {
	if c.node.Err != nil {
		// unreadable nodes fail in Identity instead
		return false
	}
	return !c.node.Caps.IsVideoCapture() || c.node.Caps.IsMemToMem()
}

func (c *v4l2Candidate) Identity() (string, string, error) {
	if c.node.Err != nil {
		return "", c.node.DevicePath, c.node.Err
	}
	return c.node.Card, c.node.StableID, nil
}

func (c *v4l2Candidate) Bind() (Binding, error) {
	return c.src.open(c.node.DevicePath)
}

func openV4L2(path string) (Binding, error) {
	dev, err := v4l2.Open(path)
	if err != nil {
		return nil, err
	}
	return dev, nil
}

func (c *v4l2Candidate) Release() {}
