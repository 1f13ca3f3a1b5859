package field

import (
	"github.com/joshuapare/ndkit/nd"
	"github.com/joshuapare/ndkit/nd/db"
)

// Ownership is fixed when a relationship field is declared.
type Ownership uint8

const (
	// NonOwning links never delete anything when broken, other than
	// releasing a refcounted target that lost its last reference.
	NonOwning Ownership = iota

	// Owning marks a field that points at the record's owner. The record
	// only exists while the link does: clearing the field, or breaking the
	// link from the owner's side, schedules the record for deletion.
	Owning
)

func (o Ownership) String() string {
	if o == Owning {
		return "owning"
	}
	return "non-owning"
}

// addressOf returns the address of v, or 0 for a nil node.
func addressOf[T nd.Node](v T) db.Address {
	var zero T
	if any(v) == any(zero) {
		return 0
	}
	return v.Address()
}
