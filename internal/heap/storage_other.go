//go:build !unix

package heap

// NewAnonStorage falls back to a plain growable slice on non-Unix
// platforms, where the mmap reservation path in storage_unix.go does not
// apply.
func NewAnonStorage(capBytes uint64) (*SliceStorage, error) {
	return NewSliceStorage(capBytes), nil
}
