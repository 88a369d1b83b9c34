//go:build !profile

package prof

// Profiling errors. Stubs never return them.
var (
	ErrSessionActive  error
	ErrInvalidProfile error
)

// Enabled reports whether profiling support was compiled in.
func Enabled() bool { return false }

// Session is a no-op profiling session.
type Session struct{}

// Start is a no-op when built without the "profile" tag.
func Start(_ Options) (*Session, error) {
	return &Session{}, nil
}

// Stop is a no-op when built without the "profile" tag.
func (*Session) Stop() error {
	return nil
}

// Write is a no-op when built without the "profile" tag.
func Write(_ Profile, _ string) error {
	return nil
}
