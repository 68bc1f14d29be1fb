package broker

import (
	"context"
	"errors"
	"testing"
	"time"

	"library-service/internal/util"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConsumer(attempts int) *Consumer {
	return &Consumer{logger: util.GetLogger(), maxAttempts: attempts, retryBackoff: time.Millisecond}
}

func TestDeliverRetriesUntilHandlerSucceeds(t *testing.T) {
	c := testConsumer(3)
	calls := 0

	err := c.deliver(context.Background(), func(ctx context.Context, msg kafka.Message) error {
		calls++
		if calls < 3 {
			return errors.New("redis unavailable")
		}
		return nil
	}, kafka.Message{Offset: 7})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDeliverGivesUpAfterMaxAttempts(t *testing.T) {
	c := testConsumer(2)
	calls := 0
	failure := errors.New("bad payload")

	err := c.deliver(context.Background(), func(ctx context.Context, msg kafka.Message) error {
		calls++
		return failure
	}, kafka.Message{Offset: 8})

	assert.ErrorIs(t, err, failure)
	assert.Equal(t, 2, calls)
}

func TestDeliverStopsWhenCancelled(t *testing.T) {
	c := testConsumer(5)
	c.retryBackoff = time.Hour
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0

	err := c.deliver(ctx, func(ctx context.Context, msg kafka.Message) error {
		calls++
		cancel()
		return errors.New("failed")
	}, kafka.Message{})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}
