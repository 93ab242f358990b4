package batch_test

import (
	"testing"

	"go.uber.org/goleak"
)

// TestMain checks that no generator goroutine outlives a batch.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}
