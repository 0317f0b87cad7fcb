package models

import "fmt"

const (
	RoleAdmin    = "admin"
	RoleReviewer = "reviewer"
	RoleDriver   = "driver"
	RoleSystem   = "system"
)

// Module keys used for capability resolution.
const (
	ModuleDocuments  = "documents"
	ModuleOnboarding = "onboarding"
	ModuleDrivers    = "drivers"
)

type Actor struct {
	ID       string `json:"id"`
	Role     string `json:"role"`
	DriverID *int64 `json:"driver_id,omitempty"`
}

func (a Actor) String() string {
	return fmt.Sprintf("%s:%s", a.Role, a.ID)
}

// SystemActor is used by background jobs such as the reminder sweep.
var SystemActor = Actor{ID: "scheduler", Role: RoleSystem}

type Capability uint8

const (
	CapView Capability = 1 << iota
	CapAdd
	CapEdit
	CapDelete
)

var capabilityNames = map[string]Capability{
	"view":   CapView,
	"add":    CapAdd,
	"edit":   CapEdit,
	"delete": CapDelete,
}

// ParseCapability maps a permission name stored in role_permissions.
func ParseCapability(name string) (Capability, bool) {
	c, ok := capabilityNames[name]
	return c, ok
}

func (c Capability) String() string {
	for name, v := range capabilityNames {
		if v == c {
			return name
		}
	}
	return "unknown"
}

// CapabilitySet is the set of capabilities an actor holds on one module.
type CapabilitySet uint8

func NewCapabilitySet(caps ...Capability) CapabilitySet {
	var s CapabilitySet
	for _, c := range caps {
		s |= CapabilitySet(c)
	}
	return s
}

func (s CapabilitySet) Has(c Capability) bool {
	return s&CapabilitySet(c) != 0
}
