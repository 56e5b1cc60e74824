package borrow

import "github.com/kolkov/borrowsan/internal/borrow/api"

// Version information for the borrowsan runtime.
const (
	// Version is the current version of the borrowsan runtime.
	Version = "0.1.0"

	// VersionMajor is the major version number.
	VersionMajor = 0

	// VersionMinor is the minor version number.
	VersionMinor = 1

	// VersionPatch is the patch version number.
	VersionPatch = 0
)

// Info provides runtime information about the borrow sanitizer.
type Info struct {
	// Version is the runtime version string.
	Version string

	// Model is the aliasing discipline enforced.
	Model string

	// Enabled indicates whether tracking is active.
	Enabled bool
}

// GetInfo returns information about the borrowsan runtime.
//
// Example:
//
//	info := borrow.GetInfo()
//	fmt.Printf("Borrow Sanitizer %s (%s)\n", info.Version, info.Model)
func GetInfo() Info {
	return Info{
		Version: Version,
		Model:   "Aliasing XOR Mutability (lazy revocation)",
		Enabled: api.Enabled(),
	}
}
