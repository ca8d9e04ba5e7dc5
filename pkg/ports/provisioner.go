package ports

import (
	"context"

	"github.com/aretw0/forge/pkg/domain"
)

// FragmentDeleter removes rendered fragments.
// Implementations return domain.ErrFragmentGone when the fragment no longer exists.
type FragmentDeleter interface {
	DeleteFragment(ctx context.Context, ref domain.FragmentRef) error
}

// FragmentSender delivers a fragment to a surface.
type FragmentSender interface {
	SendFragment(ctx context.Context, surface domain.Surface, fragment domain.Fragment) (domain.FragmentRef, error)
}

// FragmentTransport sends and deletes fragments.
type FragmentTransport interface {
	FragmentSender
	FragmentDeleter
}

// Provisioner is the chat platform's channel-provisioning collaborator.
type Provisioner interface {
	FragmentTransport

	// OpenPrivateSurface opens (or reuses) a 1:1 channel with the owner.
	// It fails when the owner does not accept private messages.
	OpenPrivateSurface(ctx context.Context, ownerID string) (domain.Surface, error)

	// EphemeralSurface gets or creates the owner's ephemeral group channel.
	EphemeralSurface(ctx context.Context, ownerID string, origin domain.EventContext) (domain.Surface, error)

	// DeleteSurface removes an ephemeral surface and everything on it.
	DeleteSurface(ctx context.Context, surface domain.Surface) error
}
