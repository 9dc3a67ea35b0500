package blob

// Option configures a FileStore.
type Option func(*FileStore)

// WithMaxBytes rejects objects larger than n bytes. Zero disables the check.
func WithMaxBytes(n int64) Option {
	return func(s *FileStore) {
		if n >= 0 {
			s.maxBytes = n
		}
	}
}
