package prof

// Profile names a runtime/pprof profile.
type Profile string

// Profile types.
const (
	ProfileCPU       Profile = "cpu"
	ProfileHeap      Profile = "heap"
	ProfileAllocs    Profile = "allocs"
	ProfileGoroutine Profile = "goroutine"
	ProfileBlock     Profile = "block"
)

// String returns the profile name.
func (p Profile) String() string {
	return string(p)
}

// Options selects what a profiling session records. Empty paths are
// skipped.
type Options struct {
	CPU   string // CPU profile path, sampled for the whole session
	Heap  string // Heap profile path, written when the session stops
	Block string // Block profile path, recorded for the session
}

// Empty reports whether opts requests no profiling at all.
func (o Options) Empty() bool {
	return o.CPU == "" && o.Heap == "" && o.Block == ""
}
