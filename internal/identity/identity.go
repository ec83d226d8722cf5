// Package identity is the narrow interface to the external identity/role
// collaborator. The core only ever asks two questions: does an agent hold
// a role, and what credential backs it.
package identity

import (
	"context"
	"time"

	"github.com/Sensorica/nondominium-sub002/pkg/domain"
)

// Credential backs a role grant.
type Credential struct {
	Agent     domain.AgentID `json:"agent"`
	Role      string         `json:"role"`
	IssuedBy  domain.AgentID `json:"issued_by"`
	IssuedAt  time.Time      `json:"issued_at"`
	ExpiresAt *time.Time     `json:"expires_at,omitempty"`
}

func (c Credential) Expired(now time.Time) bool {
	return c.ExpiresAt != nil && !now.Before(*c.ExpiresAt)
}

type Directory interface {
	HasRole(ctx context.Context, agent domain.AgentID, role string) (bool, error)
	RoleCredential(ctx context.Context, agent domain.AgentID, role string) (*Credential, error)
}

// StaticDirectory is an in-process directory for tests and bootstrap
// deployments without an identity collaborator.
type StaticDirectory struct {
	Credentials []Credential
}

func (d *StaticDirectory) HasRole(ctx context.Context, agent domain.AgentID, role string) (bool, error) {
	cred, err := d.RoleCredential(ctx, agent, role)
	if err != nil {
		return false, err
	}
	return cred != nil, nil
}

func (d *StaticDirectory) RoleCredential(ctx context.Context, agent domain.AgentID, role string) (*Credential, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	for i := range d.Credentials {
		c := d.Credentials[i]
		if c.Agent == agent && c.Role == role && !c.Expired(now) {
			return &c, nil
		}
	}
	return nil, nil
}
