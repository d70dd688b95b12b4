//go:build !yzma

package llm

// NewYzmaBackend returns ErrUnavailable when built without the yzma tag.
func NewYzmaBackend(libPath string) (Backend, error) {
	return nil, ErrUnavailable
}
