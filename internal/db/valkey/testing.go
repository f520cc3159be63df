package valkey

import "github.com/redis/rueidis"

// NewStoreForTest wraps a provided rueidis client (mock.NewClient in tests).
func NewStoreForTest(c rueidis.Client) *Store {
	return &Store{client: c}
}
