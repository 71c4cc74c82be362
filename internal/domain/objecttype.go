package domain

import "fmt"

// ObjectType identifies the CRM entity category a property belongs to.
type ObjectType string

// Object types the syncer knows how to handle.
const (
	ObjectTypeContact ObjectType = "contact"
	ObjectTypeCompany ObjectType = "company"
	ObjectTypeDeal    ObjectType = "deal"
	ObjectTypeTicket  ObjectType = "ticket"
)

// AllObjectTypes is the default set synced when the config names none.
var AllObjectTypes = []ObjectType{
	ObjectTypeContact,
	ObjectTypeCompany,
	ObjectTypeDeal,
	ObjectTypeTicket,
}

// ParseObjectType converts a config string into an ObjectType.
func ParseObjectType(s string) (ObjectType, error) {
	switch ObjectType(s) {
	case ObjectTypeContact, ObjectTypeCompany, ObjectTypeDeal, ObjectTypeTicket:
		return ObjectType(s), nil
	}
	return "", fmt.Errorf("unknown object type %q", s)
}

// String returns the API path segment for the object type.
func (t ObjectType) String() string {
	return string(t)
}
