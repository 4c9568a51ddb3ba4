package authority_test

import (
	"testing"

	"github.com/xraph/tollgate/authority"
	"github.com/xraph/tollgate/id"
)

func TestVerifyMatchingPlatform(t *testing.T) {
	platformID := id.NewPlatformID()
	cap := authority.MintPlatformCap(platformID)

	if !authority.Verify(cap, platformID) {
		t.Error("capability must authorize the platform it was minted for")
	}
	if cap.PlatformID().String() != platformID.String() {
		t.Errorf("PlatformID: got %s, want %s", cap.PlatformID(), platformID)
	}
}

func TestVerifyRejectsOtherPlatform(t *testing.T) {
	capA := authority.MintPlatformCap(id.NewPlatformID())
	platformB := id.NewPlatformID()

	if authority.Verify(capA, platformB) {
		t.Error("capability for platform A must never authorize platform B")
	}
}

func TestVerifyNilCap(t *testing.T) {
	if authority.Verify(nil, id.NewPlatformID()) {
		t.Error("nil capability must authorize nothing")
	}
	if authority.VerifyAdmin(nil, id.NewProtocolID()) {
		t.Error("nil admin capability must authorize nothing")
	}
}

func TestVerifyAdmin(t *testing.T) {
	protocolID := id.NewProtocolID()
	cap := authority.MintAdminCap(protocolID)

	if !authority.VerifyAdmin(cap, protocolID) {
		t.Error("admin capability must authorize its protocol")
	}
	if authority.VerifyAdmin(cap, id.NewProtocolID()) {
		t.Error("admin capability must not authorize a different protocol")
	}
}

func TestCapIDsArePrefixed(t *testing.T) {
	admin := authority.MintAdminCap(id.NewProtocolID())
	if admin.ID().Prefix() != id.PrefixAdminCap {
		t.Errorf("admin cap prefix: got %q, want %q", admin.ID().Prefix(), id.PrefixAdminCap)
	}

	plat := authority.MintPlatformCap(id.NewPlatformID())
	if plat.ID().Prefix() != id.PrefixPlatformCap {
		t.Errorf("platform cap prefix: got %q, want %q", plat.ID().Prefix(), id.PrefixPlatformCap)
	}
}
