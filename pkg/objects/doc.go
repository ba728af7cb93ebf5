// Package objects implements the reflective type system underpinning the
// configuration compiler: object types with field metadata, per-type
// instance registries, attribute-masked serialization, lifecycle hooks and
// the inter-object dependency graph.
//
// Concrete object types embed ObjectBase and declare their fields with
// `config` struct tags carrying the attribute flags:
//
//	type Host struct {
//		objects.ObjectBase
//
//		Address   string  `config:"address,config" validate:"required"`
//		LastState int     `config:"last_state,state"`
//	}
//
// Fields flagged "config" are populated from configuration declarations and
// serialized into the persistence sink; fields flagged "state" carry runtime
// state and are migrated across object reloads.
package objects
