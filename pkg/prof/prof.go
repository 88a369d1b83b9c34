//go:build profile

package prof

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"runtime/pprof"
	"sync"
)

// Profiling errors.
var (
	// ErrSessionActive indicates a profiling session is already running.
	ErrSessionActive = errors.New("profiling session already active")

	// ErrInvalidProfile indicates an invalid or unsupported profile type.
	ErrInvalidProfile = errors.New("invalid profile")
)

// Enabled reports whether profiling support was compiled in.
func Enabled() bool { return true }

// Session is a running profiling session started by [Start].
type Session struct {
	cpu  *os.File
	opts Options
}

var (
	mu     sync.Mutex
	active *Session
)

// Start begins a profiling session. CPU samples stream to opts.CPU while
// the session runs. Snapshot profiles are written by [Session.Stop].
func Start(opts Options) (*Session, error) {
	mu.Lock()
	defer mu.Unlock()

	if active != nil {
		return nil, ErrSessionActive
	}

	s := &Session{opts: opts}
	if opts.CPU != "" {
		f, err := os.Create(opts.CPU)
		if err != nil {
			return nil, err
		}
		if err := pprof.StartCPUProfile(f); err != nil {
			f.Close()
			return nil, err
		}
		s.cpu = f
	}
	if opts.Block != "" {
		runtime.SetBlockProfileRate(1)
	}

	active = s
	return s, nil
}

// Stop ends the session, closing the CPU profile and writing the heap and
// block profiles if requested. Stop is idempotent.
func (s *Session) Stop() error {
	mu.Lock()
	defer mu.Unlock()

	if active != s {
		return nil
	}
	active = nil

	var errs []error
	if s.cpu != nil {
		pprof.StopCPUProfile()
		errs = append(errs, s.cpu.Close())
		s.cpu = nil
	}
	if s.opts.Heap != "" {
		runtime.GC()
		errs = append(errs, Write(ProfileHeap, s.opts.Heap))
	}
	if s.opts.Block != "" {
		errs = append(errs, Write(ProfileBlock, s.opts.Block))
		runtime.SetBlockProfileRate(0)
	}
	return errors.Join(errs...)
}

// Write writes a snapshot of profile to path. [ProfileCPU] is rejected:
// CPU profiles are sampled over a [Session].
func Write(profile Profile, path string) error {
	p := pprof.Lookup(string(profile))
	if profile == ProfileCPU || p == nil {
		return fmt.Errorf("%w: %s", ErrInvalidProfile, profile)
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	return p.WriteTo(f, 0)
}
