// Package compiler turns registered configuration items into live, validated
// config objects. It implements the commit pipeline (materialize, name,
// validate, load callbacks), the dependency-ordered all-loaded pass with
// child-object expansion, the activation engine and the single-object reload
// protocol.
//
// Declarations enter the system as Items built with an ItemBuilder and
// registered with an ItemRegistry. CommitItems drives a batch to a committed
// state; ActivateItems brings the batch's objects live. Batches are
// partitioned by activation context, which travels in a context.Context
// derived with NewActivationScope.
package compiler
