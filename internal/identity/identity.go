// Package identity is the boundary to the external identity provider.
// Authentication itself is delegated; the application only needs to disable
// and remove provider-side users when an account is swept for deletion.
package identity

import (
	"context"

	"go.uber.org/zap"
)

// Provider disables and deletes users at the identity provider
type Provider interface {
	DisableUser(ctx context.Context, email string) error
	DeleteUser(ctx context.Context, email string) error
}

// LogProvider records the calls without talking to a real provider; it
// stands in when no provider is configured.
type LogProvider struct {
	Logger *zap.Logger
}

func (p *LogProvider) DisableUser(ctx context.Context, email string) error {
	p.Logger.Info("identity provider: disable user", zap.String("email", email))
	return nil
}

func (p *LogProvider) DeleteUser(ctx context.Context, email string) error {
	p.Logger.Info("identity provider: delete user", zap.String("email", email))
	return nil
}
