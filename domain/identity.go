// Package domain contains core concepts of the chat system.
// This file defines identities and their capabilities.
// No runtime, network, or UI logic should be added here.
package domain

// Capability names a permitted interaction role. Capabilities are not
// exclusive: a user may hold both.
type Capability string

const (
	CapabilityRequester Capability = "requester"
	CapabilityResponder Capability = "responder"
)

// Identity is the authenticated user attached to a live connection.
// It is established once by the auth layer and never changes for the
// lifetime of the connection.
type Identity struct {
	ID           string
	FullName     string
	Capabilities []Capability
}

func (i Identity) Has(c Capability) bool {
	for _, cap := range i.Capabilities {
		if cap == c {
			return true
		}
	}
	return false
}

// CapabilitiesFromRoles maps stored role names onto capabilities,
// ignoring roles that do not grant one.
func CapabilitiesFromRoles(roles []string) []Capability {
	var caps []Capability
	for _, r := range roles {
		switch Capability(r) {
		case CapabilityRequester, CapabilityResponder:
			caps = append(caps, Capability(r))
		}
	}
	return caps
}
