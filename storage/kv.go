package storage

import (
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned by Read when a key doesn't exist or has expired.
var ErrNotFound = errors.New("key not found")

// KVConfig contains settings specific to BadgerDB connections
type KVConfig struct {
	StorageDirPath  string
	KeyTTLDuration  time.Duration
	CleanupInterval time.Duration
}

// UnmarshalYAML parses the "journal" section of the config file. All three
// settings are required.
func (c *KVConfig) UnmarshalYAML(unmarshal func(interface{}) error) error {
	v := make(map[string]string)
	if err := unmarshal(&v); err != nil {
		return fmt.Errorf("can't parse the storage config: %v", err)
	}

	sp, ok := v["storageDir"]
	if !ok || sp == "" {
		return errors.New("the storage config must include a storageDir")
	}
	c.StorageDirPath = sp

	ttl, ok := v["keyTTL"]
	if !ok {
		return errors.New("the storage config must include a keyTTL")
	}
	d, err := time.ParseDuration(ttl)
	if err != nil {
		return fmt.Errorf("can't parse the keyTTL as a duration: %v", err)
	}
	c.KeyTTLDuration = d

	ci, ok := v["cleanupInterval"]
	if !ok {
		return errors.New("the storage config must include a cleanupInterval")
	}
	d, err = time.ParseDuration(ci)
	if err != nil {
		return fmt.Errorf("can't parse the cleanupInterval as a duration: %v", err)
	}
	c.CleanupInterval = d

	return nil
}

// KeyValue exposes a common interface for performing CRUD operations on an
// underlying storage layer.
//
// Implentations need to include connection logic in code to initialize
// a Store.
type KeyValue interface {
	// Replace the value of a key or create a new one if it doesn't exist
	Put(KVEntry) error
	// Return an entry given its key
	Read(key []byte) (KVEntry, error)
	// Cleanup performs routine deletion of old records. We assign
	// TTLs to KV pairs and delete them periodically.
	Cleanup() error
	// Drain/tear down the connection, or something analogous for
	// an embedded database
	Close() error
}

// KVEntry is what we'll write to and read from the KV store
type KVEntry struct {
	Key   []byte
	Value []byte
}
