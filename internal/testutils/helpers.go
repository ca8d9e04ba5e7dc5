// Package testutils holds fakes shared by package tests.
package testutils

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/aretw0/forge/pkg/domain"
)

// ErrPrivateClosed mimics a user who refuses direct messages.
var ErrPrivateClosed = errors.New("cannot send messages to this user")

// Sent is one fragment delivered through the fake.
type Sent struct {
	Ref      domain.FragmentRef
	Surface  domain.Surface
	Fragment domain.Fragment
}

// FakeProvisioner is an in-memory ports.Provisioner that records every call.
type FakeProvisioner struct {
	mu sync.Mutex

	next      int
	live      map[domain.FragmentRef]Sent
	sent      []Sent
	deleted   []domain.FragmentRef
	surfaces  map[string]domain.Surface
	dropped   []domain.Surface
	ephemeral int
	refusals  int

	// PrivateClosed lists owners whose private channel cannot be opened.
	PrivateClosed map[string]bool
	// PrivateRefused lists owners whose private channel opens but refuses every fragment.
	PrivateRefused map[string]bool
	// FailSend makes every SendFragment call fail.
	FailSend bool
	// FailDelete lists fragment ids whose deletion fails with a transient error.
	FailDelete map[string]bool
	// FailEphemeral makes ephemeral provisioning fail.
	FailEphemeral bool
}

// NewFakeProvisioner creates an empty fake.
func NewFakeProvisioner() *FakeProvisioner {
	return &FakeProvisioner{
		live:          make(map[domain.FragmentRef]Sent),
		surfaces:      make(map[string]domain.Surface),
		PrivateClosed:  make(map[string]bool),
		PrivateRefused: make(map[string]bool),
		FailDelete:     make(map[string]bool),
	}
}

// OpenPrivateSurface returns "dm-<owner>" unless the owner is closed.
func (f *FakeProvisioner) OpenPrivateSurface(ctx context.Context, ownerID string) (domain.Surface, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.PrivateClosed[ownerID] {
		return domain.Surface{}, ErrPrivateClosed
	}
	return domain.Surface{ID: "dm-" + ownerID, Kind: domain.SurfacePrivate}, nil
}

// EphemeralSurface gets or creates "forge-<owner>".
func (f *FakeProvisioner) EphemeralSurface(ctx context.Context, ownerID string, origin domain.EventContext) (domain.Surface, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailEphemeral {
		return domain.Surface{}, errors.New("missing permissions")
	}
	name := "forge-" + ownerID
	if s, ok := f.surfaces[name]; ok {
		return s, nil
	}
	f.ephemeral++
	s := domain.Surface{ID: name, Kind: domain.SurfaceEphemeral}
	f.surfaces[name] = s
	return s, nil
}

// DeleteSurface removes the surface and every fragment on it.
func (f *FakeProvisioner) DeleteSurface(ctx context.Context, surface domain.Surface) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.surfaces, surface.ID)
	f.dropped = append(f.dropped, surface)
	for ref := range f.live {
		if ref.SurfaceID == surface.ID {
			delete(f.live, ref)
		}
	}
	return nil
}

// SendFragment stores the fragment and returns a sequential id.
func (f *FakeProvisioner) SendFragment(ctx context.Context, surface domain.Surface, fragment domain.Fragment) (domain.FragmentRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailSend {
		return domain.FragmentRef{}, errors.New("gateway timeout")
	}
	if surface.Kind == domain.SurfacePrivate && f.PrivateRefused[strings.TrimPrefix(surface.ID, "dm-")] {
		f.refusals++
		return domain.FragmentRef{}, fmt.Errorf("%w: %w", domain.ErrChannelUnavailable, ErrPrivateClosed)
	}
	f.next++
	ref := domain.FragmentRef{SurfaceID: surface.ID, ID: fmt.Sprintf("m%d", f.next)}
	s := Sent{Ref: ref, Surface: surface, Fragment: fragment}
	f.live[ref] = s
	f.sent = append(f.sent, s)
	return ref, nil
}

// DeleteFragment removes a live fragment or reports it gone.
func (f *FakeProvisioner) DeleteFragment(ctx context.Context, ref domain.FragmentRef) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailDelete[ref.ID] {
		return errors.New("rate limited")
	}
	if _, ok := f.live[ref]; !ok {
		return domain.ErrFragmentGone
	}
	delete(f.live, ref)
	f.deleted = append(f.deleted, ref)
	return nil
}

// Live returns the fragments still on screen, ordered by id.
func (f *FakeProvisioner) Live() []Sent {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Sent, 0, len(f.live))
	for _, s := range f.live {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ref.ID < out[j].Ref.ID })
	return out
}

// LiveOn returns the fragments still on a surface.
func (f *FakeProvisioner) LiveOn(surfaceID string) []Sent {
	var out []Sent
	for _, s := range f.Live() {
		if s.Ref.SurfaceID == surfaceID {
			out = append(out, s)
		}
	}
	return out
}

// Sent returns every fragment ever sent, in order.
func (f *FakeProvisioner) Sent() []Sent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Sent(nil), f.sent...)
}

// Last returns the most recently sent fragment.
func (f *FakeProvisioner) Last() Sent {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) == 0 {
		return Sent{}
	}
	return f.sent[len(f.sent)-1]
}

// Deleted returns every successfully deleted fragment.
func (f *FakeProvisioner) Deleted() []domain.FragmentRef {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.FragmentRef(nil), f.deleted...)
}

// DroppedSurfaces returns every deleted surface.
func (f *FakeProvisioner) DroppedSurfaces() []domain.Surface {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.Surface(nil), f.dropped...)
}

// EphemeralCreated returns how many ephemeral surfaces were provisioned.
func (f *FakeProvisioner) EphemeralCreated() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ephemeral
}

// Refusals returns how many sends a private surface refused.
func (f *FakeProvisioner) Refusals() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.refusals
}

// SetFailSend toggles send failures.
func (f *FakeProvisioner) SetFailSend(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.FailSend = v
}
