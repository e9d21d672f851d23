package payments

import (
	"context"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/paymentintent"

	pkgstripe "github.com/scribewell/plugin-gateway/pkg/stripe"
)

// StripeIntentClient exposes the subset of Stripe operations the payment
// service needs.
type StripeIntentClient interface {
	Create(ctx context.Context, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
	Get(ctx context.Context, id string, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
}

type stripeClientWrapper struct {
	client *pkgstripe.Client
}

// NewStripeClient wraps the shared Stripe client so the payment service can be tested.
func NewStripeClient(client *pkgstripe.Client) StripeIntentClient {
	if client == nil {
		return nil
	}
	return &stripeClientWrapper{client: client}
}

func (w *stripeClientWrapper) Create(ctx context.Context, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
	callCtx, cancel := w.client.CallContext(ctx)
	defer cancel()
	if params != nil {
		params.Context = callCtx
	}
	return paymentintent.New(params)
}

func (w *stripeClientWrapper) Get(ctx context.Context, id string, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
	callCtx, cancel := w.client.CallContext(ctx)
	defer cancel()
	if params == nil {
		params = &stripe.PaymentIntentParams{}
	}
	params.Context = callCtx
	return paymentintent.Get(id, params)
}
