package port

import "context"

type IdempotencyStore interface {
	// Acquire reserves key and returns a release token, ok is false if the key is already held
	Acquire(ctx context.Context, key string) (token string, ok bool, err error)

	// Release frees key only if it is still held with token
	Release(ctx context.Context, key, token string) error
}
