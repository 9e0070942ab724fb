// Package store provides local persistent key-value storage for string
// values.
package store

// Store is the persistence contract: flat string keys, string values.
// Writes are idempotent; Remove of an absent key is not an error.
type Store interface {
	Get(key string) (string, bool)
	Set(key, value string) error
	Remove(key string) error
	Exists(key string) bool
}

const scratchKey = "__scratch__"

// VerifyWritable confirms the store accepts writes by setting and
// removing a scratch key. No entry is left behind.
func VerifyWritable(s Store) error {
	if err := s.Set(scratchKey, "ok"); err != nil {
		return err
	}
	return s.Remove(scratchKey)
}
