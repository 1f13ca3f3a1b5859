// Package field declares record layouts and the typed fields that read and
// write them.
//
// A layout is built once, before any record exists:
//
//	keyDef := field.NewNodeStruct("Key")
//	keyName := field.NewString(keyDef, "name")
//	keyParent := field.NewManyToOne[*Key](keyDef, "parent", keyChildren, field.Owning)
//	keyDef.Done()
//
// Every field receives the next free offset in declaration order, so two
// fields of one layout never overlap. Fields take the record address on every
// call and hold no per-record state.
//
// Relationship fields keep both directions of a link in step: writing a
// forward pointer also updates the back-pointer on the target, and breaking
// an owning link schedules the orphaned side for deletion through nd.Nd.
package field
