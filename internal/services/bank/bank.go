package bank

import (
	"context"

	"gatepass/internal/status"
)

// Gateway is the payment side of the engine. CreateOrder opens a
// gateway order and returns the QR payload the attendee pays against;
// CheckTransaction is the trust boundary that confirms money actually
// moved. Settled transactions also arrive asynchronously on the channel
// installed with SetTransactionChannel.
type Gateway interface {
	Provider() string
	CreateOrder(ctx context.Context, form *status.OrderForm) (string, error)
	CheckTransaction(ctx context.Context, uuid string) (*status.Transaction, error)
	SetTransactionChannel(ch chan *status.Transaction)
	Close(ctx context.Context) error
}
