// Package store persists uploaded dependency lists and the release history
// of every package they mention.
//
// # Backends
//
//   - [MemoryStore]: process-local, used by the CLI and tests
//   - [SQLStore]: PostgreSQL through the pgx database/sql driver
//   - [MongoStore]: MongoDB, with a counters collection for list ids
//
// [Open] picks the backend from a URL:
//
//	s, err := store.Open(ctx, "postgres://localhost/depreview")
//
// # Invariants
//
// Lists are append-only: there is no update or delete. A package version,
// once recorded, never changes except that Yanked may go from false to true.
// Every backend applies [MergeVersions] on write to keep that rule.
//
// Writers of one package's history are serialized by a [Locker]: a
// [MemoryLocker] in a single process or a [RedisLocker] across instances.
package store
