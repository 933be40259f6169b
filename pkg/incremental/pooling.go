package incremental

import "github.com/aardwolf-sfl/increcache/pkg/incremental/internal/pool"

// ConfigurePooling controls whether the per-query dependency-set scratch
// buffer is drawn from a sync.Pool (enabled, the default) or allocated
// fresh every time (disabled), the initial capacity pooled slices are
// allocated with, and the largest capacity Put will retain before
// discarding a slice instead of pooling it. It has no effect on a
// goroutine's query-call stack, which is never pooled — see
// internal/pool's package doc. Safe to call at any time, including after
// queries have already run: already-pooled slices are not retroactively
// resized, but every subsequent Get/Put consults the new configuration.
func ConfigurePooling(enabled bool, initialCap, maxSize int) {
	pool.Configure(pool.Config{Enabled: enabled, InitialCap: initialCap, MaxSize: maxSize})
}
