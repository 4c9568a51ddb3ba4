// Package authority mints and verifies the capability tokens that gate
// treasury withdrawals.
//
// A capability is an opaque token whose possession is the sole proof of
// authorization: there is no address-based permission list anywhere in
// Tollgate. Tokens carry an immutable reference to the one resource they
// authorize and can only be constructed by this package: the fields are
// unexported, so callers cannot forge one with a struct literal.
package authority

import "github.com/xraph/tollgate/id"

// AdminCap grants withdrawal rights over the protocol treasury. Exactly one
// is minted, at protocol initialization; whoever holds it is the protocol
// administrator.
type AdminCap struct {
	capID      id.AdminCapID
	protocolID id.ProtocolID
}

// MintAdminCap creates the admin capability bound to the given protocol.
// Called once by Engine.InitProtocol.
func MintAdminCap(protocolID id.ProtocolID) *AdminCap {
	return &AdminCap{
		capID:      id.NewAdminCapID(),
		protocolID: protocolID,
	}
}

// ID returns the capability's own identifier.
func (c *AdminCap) ID() id.AdminCapID { return c.capID }

// ProtocolID returns the protocol this capability authorizes.
func (c *AdminCap) ProtocolID() id.ProtocolID { return c.protocolID }

// PlatformCap grants withdrawal rights over exactly one platform's treasury.
// One is minted per platform, at platform-creation time.
type PlatformCap struct {
	capID      id.PlatformCapID
	platformID id.PlatformID
}

// MintPlatformCap creates a capability bound to the given platform.
// Called once per platform by Engine.CreatePlatform.
func MintPlatformCap(platformID id.PlatformID) *PlatformCap {
	return &PlatformCap{
		capID:      id.NewPlatformCapID(),
		platformID: platformID,
	}
}

// ID returns the capability's own identifier.
func (c *PlatformCap) ID() id.PlatformCapID { return c.capID }

// PlatformID returns the platform this capability authorizes.
func (c *PlatformCap) PlatformID() id.PlatformID { return c.platformID }

// VerifyAdmin reports whether cap authorizes withdrawals from the protocol.
// A nil capability authorizes nothing.
func VerifyAdmin(cap *AdminCap, protocolID id.ProtocolID) bool {
	return cap != nil && cap.protocolID.String() == protocolID.String()
}

// Verify reports whether cap authorizes withdrawals from the platform. The
// check is structural: cap's embedded platform id must equal the target's.
// This is the sole defense against a capability minted for platform X being
// used to drain platform Y.
func Verify(cap *PlatformCap, platformID id.PlatformID) bool {
	return cap != nil && cap.platformID.String() == platformID.String()
}
