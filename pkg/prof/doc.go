// Package prof captures CPU and heap profiles of the PDM simulator.
//
// Profiling is compiled in only with the "profile" build tag:
//
//	go build -tags profile ./cmd/pdmsim
//	pdmsim run --cpuprofile cpu.prof --memprofile heap.prof
//
// Without the tag [Start] returns an inert [Session] and every call is a
// no-op, so callers never need their own build tags.
//
// A session samples CPU and, if requested, goroutine blocking from [Start]
// until [Session.Stop], which also writes the heap and block profiles:
//
//	s, err := prof.Start(prof.Options{CPU: "cpu.prof", Heap: "heap.prof"})
//	if err != nil {
//	    return err
//	}
//	defer s.Stop()
//
// Only one session may run at a time; a second [Start] returns
// [ErrSessionActive].
package prof
