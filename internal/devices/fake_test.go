package devices

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
)

type candidateSpec struct {
	name        string
	path        string
	legacy      bool
	identityErr error
	bindErr     error
}

type fakeSource struct {
	mu sync.Mutex

	openErr    error
	candidates []candidateSpec

	inits    int
	uninits  int
	opens    int
	binds    int
	closes   int
	released int
	live     map[string]int
}

func newFakeSource(specs ...candidateSpec) *fakeSource {
	return &fakeSource{candidates: specs, live: make(map[string]int)}
}

func (s *fakeSource) Name() string { return "fake" }

func (s *fakeSource) Init() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inits++
	return nil
}

func (s *fakeSource) Uninit() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.uninits++
}

func (s *fakeSource) Open(Kind) (Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.openErr != nil {
		return nil, s.openErr
	}
	s.opens++
	return &fakeCategory{src: s, specs: append([]candidateSpec(nil), s.candidates...)}, nil
}

func (s *fakeSource) liveBindings() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, n := range s.live {
		total += n
	}
	return total
}

type fakeCategory struct {
	src      *fakeSource
	specs    []candidateSpec
	released bool
}

func (c *fakeCategory) Next() (Candidate, error) {
	if len(c.specs) == 0 {
		return nil, io.EOF
	}
	spec := c.specs[0]
	c.specs = c.specs[1:]
	return &fakeCandidate{src: c.src, spec: spec}, nil
}

func (c *fakeCategory) Release() {
	c.src.mu.Lock()
	defer c.src.mu.Unlock()
	c.src.released++
	c.released = true
}

type fakeCandidate struct {
	src  *fakeSource
	spec candidateSpec
}

func (c *fakeCandidate) Legacy() bool { return c.spec.legacy }

func (c *fakeCandidate) Identity() (string, string, error) {
	if c.spec.identityErr != nil {
		return "", "", c.spec.identityErr
	}
	return c.spec.name, c.spec.path, nil
}

func (c *fakeCandidate) Bind() (Binding, error) {
	if c.spec.bindErr != nil {
		return nil, c.spec.bindErr
	}
	c.src.mu.Lock()
	defer c.src.mu.Unlock()
	c.src.binds++
	c.src.live[c.spec.path]++
	return &fakeBinding{src: c.src, path: c.spec.path}, nil
}

func (c *fakeCandidate) Release() {
	c.src.mu.Lock()
	defer c.src.mu.Unlock()
	c.src.released++
}

type fakeBinding struct {
	src  *fakeSource
	path string
}

func (b *fakeBinding) Close() error {
	b.src.mu.Lock()
	defer b.src.mu.Unlock()
	b.src.closes++
	b.src.live[b.path]--
	if b.src.live[b.path] < 0 {
		return errors.New("double close of " + b.path)
	}
	return nil
}

type recordingObserver struct {
	skipped []*SkipError
	passes  []int
}

func (o *recordingObserver) DeviceSkipped(err *SkipError) {
	o.skipped = append(o.skipped, err)
}

func (o *recordingObserver) Enumerated(_ Kind, devices []*Device) {
	o.passes = append(o.passes, len(devices))
}

// captureLogger returns a debug-level logger writing into buf.
func captureLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func countSkipLines(buf *bytes.Buffer) int {
	return strings.Count(buf.String(), `msg="Device skipped"`)
}
