package shared

// Capability identifies an atomic permission a caller may hold.
type Capability string

// Core platform capabilities.
const (
	CapUserView   Capability = "user:view"
	CapUserAdd    Capability = "user:add"
	CapUserChange Capability = "user:change"
	CapUserDelete Capability = "user:delete"

	CapGroupView   Capability = "group:view"
	CapGroupAdd    Capability = "group:add"
	CapGroupChange Capability = "group:change"
	CapGroupDelete Capability = "group:delete"
)

// CapabilityInfo describes a capability for catalog and display purposes.
type CapabilityInfo struct {
	Resource string
	Action   string
	Label    string
}

var capabilityCatalog = map[Capability]CapabilityInfo{
	CapUserView:    {Resource: "user", Action: "view", Label: "Can view users"},
	CapUserAdd:     {Resource: "user", Action: "add", Label: "Can add users"},
	CapUserChange:  {Resource: "user", Action: "change", Label: "Can change users"},
	CapUserDelete:  {Resource: "user", Action: "delete", Label: "Can delete users"},
	CapGroupView:   {Resource: "group", Action: "view", Label: "Can view groups"},
	CapGroupAdd:    {Resource: "group", Action: "add", Label: "Can add groups"},
	CapGroupChange: {Resource: "group", Action: "change", Label: "Can change groups"},
	CapGroupDelete: {Resource: "group", Action: "delete", Label: "Can delete groups"},
}

// AllCapabilities lists every capability known to the platform.
func AllCapabilities() []Capability {
	return []Capability{
		CapUserView,
		CapUserAdd,
		CapUserChange,
		CapUserDelete,
		CapGroupView,
		CapGroupAdd,
		CapGroupChange,
		CapGroupDelete,
	}
}

// Describe returns catalog metadata for a capability.
func (c Capability) Describe() (CapabilityInfo, bool) {
	info, ok := capabilityCatalog[c]
	return info, ok
}

// ParseCapability maps a stored permission code onto the closed capability set.
// Unknown codes are rejected so free-form strings never become capabilities.
func ParseCapability(code string) (Capability, bool) {
	c := Capability(code)
	if _, ok := capabilityCatalog[c]; !ok {
		return "", false
	}
	return c, true
}
