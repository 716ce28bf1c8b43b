package model

// Equipment is a machine on the floor (a body maker, a trimmer, ...).
// Rows are owned by the maintenance module; tooling only reads them.
type Equipment struct {
	ID   uint64 // equipment.id
	Code string // equipment.code
	Name string // equipment.name
}

// Label is the machine name shown in the BM# column.
func (e Equipment) Label() string {
	if e.Name != "" {
		return e.Name
	}
	return e.Code
}

// SlotPrefix is the equipment part of a slot display code.
func (e Equipment) SlotPrefix() string {
	if e.Code != "" {
		return e.Code
	}
	return e.Name
}
