package ngramlm

// Close releases the mapping or heap copy and, for models staged from a
// blobstore, the temporary file.
//
// It is safe to call more than once; later calls return the first result.
// Scoring a closed model panics with ErrClosed.
func (m *Model) Close() error {
	if m == nil {
		return nil
	}
	m.closeOnce.Do(func() {
		m.closed.Store(true)
		if m.release != nil {
			m.closeErr = m.release()
			m.release = nil
		}
	})
	return m.closeErr
}
