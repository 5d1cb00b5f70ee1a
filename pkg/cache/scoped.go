package cache

// ScopedKeyer wraps a Keyer with a prefix, giving separate key spaces to
// deployments that share one Redis database.
//
//	staging := NewScopedKeyer(NewDefaultKeyer(), "staging:")
type ScopedKeyer struct {
	inner  Keyer
	prefix string
}

// NewScopedKeyer creates a keyer with a prefix.
// The prefix is prepended to all generated keys.
func NewScopedKeyer(inner Keyer, prefix string) Keyer {
	if inner == nil {
		inner = NewDefaultKeyer()
	}
	return &ScopedKeyer{
		inner:  inner,
		prefix: prefix,
	}
}

// HTTPKey generates a prefixed key for HTTP response caching.
func (k *ScopedKeyer) HTTPKey(namespace, key string) string {
	return k.prefix + k.inner.HTTPKey(namespace, key)
}

// HistoryKey generates a prefixed key for release history caching.
func (k *ScopedKeyer) HistoryKey(registry, name string) string {
	return k.prefix + k.inner.HistoryKey(registry, name)
}
