package websocket

import (
	"testing"
	"time"
)

// test document operation rate limiting (20/second)
func TestDocOpRateLimit(t *testing.T) {
	client := &Client{
		docOpTimestamps: make([]time.Time, 0, maxDocumentOpsPerSecond),
	}

	// first 20 operations should pass
	for i := 0; i < maxDocumentOpsPerSecond; i++ {
		if !client.checkDocOpRateLimit() {
			t.Errorf("Document operation %d should have been allowed, but was rate limited", i+1)
		}
	}

	// 21st operation should be rate limited
	if client.checkDocOpRateLimit() {
		t.Error("21st document operation should have been rate limited, but was allowed")
	}

	if len(client.docOpTimestamps) != maxDocumentOpsPerSecond {
		t.Errorf("Expected %d timestamps, got %d", maxDocumentOpsPerSecond, len(client.docOpTimestamps))
	}
}

// test rate limit window expiration (1 second window)
func TestDocOpRateLimitWindowExpiration(t *testing.T) {
	client := &Client{
		docOpTimestamps: make([]time.Time, 0, maxDocumentOpsPerSecond),
	}

	// simulate 20 operations from 2 seconds ago (should be expired)
	twoSecondsAgo := time.Now().Add(-2 * time.Second)
	for i := 0; i < maxDocumentOpsPerSecond; i++ {
		client.docOpTimestamps = append(client.docOpTimestamps, twoSecondsAgo)
	}

	// next operation should pass because old timestamps are expired
	if !client.checkDocOpRateLimit() {
		t.Error("Document operation should have been allowed after old timestamps expired")
	}

	// old timestamps should be cleaned up
	if len(client.docOpTimestamps) != 1 {
		t.Errorf("Expected 1 timestamp after cleanup, got %d", len(client.docOpTimestamps))
	}
}
