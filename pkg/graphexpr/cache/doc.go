// Package cache holds named expression programs per graph.
//
// Each graph gets its own Cache, created lazily through a Registry. Names
// are keyed by their 128-bit xxh3 hash. A cached Program carries one
// reference owned by the cache; redefining or forgetting a name drops it.
//
// # Basic Usage
//
//	caches := cache.NewRegistry[graph.Graph]()
//	c := caches.GetOrCreate(g, func() *cache.Cache { return cache.New(g.Name()) })
//
//	prog, err := expr.Compile("vertex.deg > 2")
//	c.Define("busy", prog)
//
//	// Later compiles can refer to busy by name.
//	prog2, err := expr.Compile("busy && next.deg > 2", expr.WithResolver(c))
//
// # Thread Safety
//
// Cache and Registry are safe for concurrent use. Lookups take a read lock;
// Define, Forget and Clear take the write lock. Range iterates over a
// snapshot, so callbacks may mutate the cache.
package cache
