package bridge

import (
	"context"
	"runtime"
	"time"
)

// ReleaseTimeout bounds the release call issued by AutoRelease.
var ReleaseTimeout = 10 * time.Second

// AutoRelease releases obj's server-side reference once owner becomes
// unreachable. It is a safety net; explicit release paths should stop the
// returned cleanup when they run.
//
// obj must not reference owner, or owner is never collected.
func AutoRelease[T any](owner *T, obj Object) runtime.Cleanup {
	return runtime.AddCleanup(owner, func(o Object) {
		// Cleanups share one goroutine; never block it on the network.
		go ReleaseQuietly(o, ReleaseTimeout)
	}, obj)
}

// ReleaseQuietly releases obj and discards any error.
func ReleaseQuietly(obj Object, timeout time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	_ = obj.Release(ctx)
}
