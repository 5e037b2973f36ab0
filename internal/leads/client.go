// Package leads talks to the leads backend that runs SMS verification,
// contact creation, manual verification and offer submission.
package leads

import "context"

// Client is implemented by the network client and the simulator. Callers
// must not depend on which one is active.
type Client interface {
	ConnectBySms(ctx context.Context, req ConnectRequest) (*ConnectResponse, error)
	VerifyCode(ctx context.Context, req VerifyRequest) (*ConnectResponse, error)
	CreateContact(ctx context.Context, req CreateContactRequest) (*CreateContactResponse, error)
	VerifyManually(ctx context.Context, req ManualRequest) (*ManualResponse, error)
	SubmitApplication(ctx context.Context, req OffersRequest) (*OffersResponse, error)
}
