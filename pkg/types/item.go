package types

// IDField is the one required field of every stored item.
const IDField = "id"

// Item is an arbitrary flat record: field name to tagged scalar value.
// The table store owns the persisted copy; callers own the in-memory
// copies they pass in and receive.
type Item map[string]Value

// ID returns the canonical text of the item's id field, or "" when the
// field is absent or null.
func (it Item) ID() string {
	return it[IDField].Text()
}

// SetID sets the item's id field to the given string.
func (it Item) SetID(id string) {
	it[IDField] = StringValue(id)
}

// Clone returns a shallow copy of the item. Values are immutable, so a
// shallow copy is an independent record.
func (it Item) Clone() Item {
	if it == nil {
		return nil
	}
	out := make(Item, len(it))
	for k, v := range it {
		out[k] = v
	}
	return out
}
