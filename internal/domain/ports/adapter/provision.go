package adapter

import (
	"context"

	"github.com/blablabl4/StreamAssist/internal/domain/model"
)

// ProvisionRequest describes one account to create on the operator panel.
type ProvisionRequest struct {
	Class     model.AccountClass
	PackageID int
	Phone     string
	Note      string
}

// ProvisioningGateway creates accounts on the upstream operator system.
// How the panel works internally (automation, captchas) is not this
// system's concern; the adapter only exposes this narrow call.
type ProvisioningGateway interface {
	Provision(ctx context.Context, req ProvisionRequest) (*model.Credentials, error)
}
