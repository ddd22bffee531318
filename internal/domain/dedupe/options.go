package dedupe

// Option applies a configuration option to the InMemoryDeduper.
type Option func(*inMemoryDeduper)

// WithMaxSize sets the maximum number of ids to remember.
// If maxSize <= 0 the deduper is unbounded.
func WithMaxSize(maxSize int) Option {
	return func(d *inMemoryDeduper) {
		d.maxSize = maxSize
	}
}

// WithScope prefixes every id, so one process can keep separate namespaces.
func WithScope(scope string) Option {
	return func(d *inMemoryDeduper) {
		d.scope = scope
	}
}
