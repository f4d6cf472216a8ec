package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/chronicle-ai/chronicle/pkg/models"
)

func TestWithRetry_PermanentFaultReturnsImmediately(t *testing.T) {
	calls := 0
	err := WithRetry(context.Background(), func() error {
		calls++
		return models.Faultf(models.FaultPermanentExternal, "llm.generate", "bad request")
	})

	assert.Error(t, err)
	assert.Equal(t, models.FaultPermanentExternal, models.KindOf(err))
	assert.Equal(t, 1, calls, "permanent faults must not be retried")
}

func TestWithRetry_PlainErrorTreatedAsPermanent(t *testing.T) {
	calls := 0
	err := WithRetry(context.Background(), func() error {
		calls++
		return errors.New("boom")
	})

	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestWithRetry_TransientFaultRetriedUntilContextExpires(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	calls := 0
	err := WithRetry(ctx, func() error {
		calls++
		return models.Faultf(models.FaultTransientExternal, "llm.generate", "rate limited")
	})

	assert.Error(t, err)
	assert.GreaterOrEqual(t, calls, 1)
}

func TestWithRetry_SuccessAfterTransient(t *testing.T) {
	calls := 0
	err := WithRetry(context.Background(), func() error {
		calls++
		if calls == 1 {
			return nil
		}
		return errors.New("unreachable")
	})

	assert.NoError(t, err)
	assert.Equal(t, 1, calls)
}
