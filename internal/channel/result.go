package channel

import (
	"context"
	"fmt"

	"github.com/gugu/cmiuc-client/internal/transport/stomp"
)

type PublishStatus string

const (
	StatusEnqueued  PublishStatus = "enqueued"
	StatusDelivered PublishStatus = "delivered"
	StatusFailed    PublishStatus = "failed"
)

// PublishResult tells a caller whether a frame only left the client or was
// confirmed by the server.
type PublishResult struct {
	Destination string
	receipt     *stomp.Receipt
}

// Status does not block.
func (that *PublishResult) Status() PublishStatus {
	if that.receipt != nil && that.receipt.Received() {
		return StatusDelivered
	}

	return StatusEnqueued
}

// Wait blocks until the server confirms delivery. Without receipts enabled
// the frame can only ever be enqueued, which is returned right away.
func (that *PublishResult) Wait(ctx context.Context) (PublishStatus, error) {
	if that.receipt == nil {
		return StatusEnqueued, nil
	}

	if err := that.receipt.Wait(ctx); err != nil {
		return StatusFailed, fmt.Errorf("no receipt for %s: %w", that.Destination, err)
	}

	return StatusDelivered, nil
}
