package storage

// storage contains the KeyValue interface for working with a persistent key/
// value store, an implementation for BadgerDB, and the Journal that keeps
// dispatch outcomes in it. Apart from the Journal, the storage package deals
// only in opaque binary data.
