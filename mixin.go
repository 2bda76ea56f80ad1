package reactor

import "sort"

// AttachMixin appends m to e's mixin table, keeping it priority-sorted
// (lower Priority considered earlier by cascading rule lookup, §4.3).
// Mixins are ordinarily supplied via EntityConfig.Mixins at construction;
// this exists for the rare case of composing a mixin after construction
// but before the entity starts dispatching concurrently.
func (e *Entity) AttachMixin(m Mixin) error {
	e.mixins = append(e.mixins, m)
	sort.SliceStable(e.mixins, func(i, j int) bool { return e.mixins[i].Priority < e.mixins[j].Priority })
	return nil
}

// Mixins returns the entity's mixin table in lookup order.
func (e *Entity) Mixins() []Mixin { return e.mixins }
