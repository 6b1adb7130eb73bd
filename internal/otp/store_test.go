package otp

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestConcurrentIssueLeavesOneLiveCode(t *testing.T) {
	store := NewMemoryStore().(*memoryStore)
	now := time.Now()

	errs := make(chan error, 16)
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs <- store.Issue(context.Background(), Code{
				ID:         uuid.NewString(),
				Scope:      "T1",
				Identifier: "alice@example.com",
				Digest:     fmt.Sprintf("digest-%d", i),
				ExpiresAt:  now.Add(time.Minute),
				CreatedAt:  now,
			})
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	live := 0
	for _, c := range store.codes {
		if c.Scope == "T1" && c.Identifier == "alice@example.com" && c.Live(now) {
			live++
		}
	}
	require.Equal(t, 1, live)
}

func TestIssueLocksIdentifierBeforeInvalidating(t *testing.T) {
	require.Contains(t, lockIdentifierSQL, "pg_advisory_xact_lock")
	require.Contains(t, lockIdentifierSQL, "$1")
	require.Contains(t, lockIdentifierSQL, "$2")
	require.True(t, strings.HasPrefix(invalidateSQL, "UPDATE otp_codes SET used = true"))
	require.Contains(t, invalidateSQL, "used = false")
}
