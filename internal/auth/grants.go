package auth

import (
	"context"
	"strings"
)

// GrantStore answers whether an identity carries the admin capability. A
// valid token without a grant is Forbidden, not Unauthorized.
type GrantStore interface {
	HasAdminGrant(ctx context.Context, email string) (bool, error)
}

// StaticGrants is a fixed in-memory grant set; the deployed system has
// exactly one admin identity configured.
type StaticGrants struct {
	emails map[string]bool
}

func NewStaticGrants(emails ...string) *StaticGrants {
	m := make(map[string]bool, len(emails))
	for _, e := range emails {
		m[strings.ToLower(strings.TrimSpace(e))] = true
	}
	return &StaticGrants{emails: m}
}

func (s *StaticGrants) HasAdminGrant(_ context.Context, email string) (bool, error) {
	return s.emails[strings.ToLower(strings.TrimSpace(email))], nil
}
