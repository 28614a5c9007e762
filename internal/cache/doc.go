// Package cache provides a small generic LRU cache.
//
//	c := cache.New[string, []uint8](32)
//	cov := c.GetOrCreate(key, func() []uint8 { return compute() })
//
// Cache is safe for concurrent use and must not be copied after creation.
package cache
