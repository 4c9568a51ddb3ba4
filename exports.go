package tollgate

import "github.com/xraph/tollgate/types"

// Re-export common types for convenience so users don't have to import types package.

// Funds is re-exported from types package.
type Funds = types.Funds

// Entity is re-exported from types package.
type Entity = types.Entity

// Re-export Funds constructors
var (
	Of   = types.Of
	Zero = types.Zero
	Sum  = types.Sum
)

// Re-export Entity constructor
var NewEntity = types.NewEntity
