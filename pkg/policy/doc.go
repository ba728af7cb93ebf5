// Package policy provides Open Policy Agent (OPA) integration for openmon.
//
// Policies are written in Rego and evaluated against config objects before
// they are committed. The Engine compiles and evaluates policies, the Loader
// reads them from .rego and .json files with hot reload via fsnotify, and
// Admission adapts the engine to the commit pipeline's admission hook.
//
// Built-in policies cover object naming, loopback host addresses, and check
// interval bounds. Custom policies query the same input document:
//
//	package custom.policies.addresses
//
//	import rego.v1
//
//	deny contains violation if {
//		input.type == "Host"
//		not input.properties.address
//
//		violation := {
//			"message": sprintf("Host '%s' must declare an address", [input.name]),
//			"severity": "error",
//			"object": input.name,
//		}
//	}
//
// Violations with error or critical severity block the object in enforcing
// mode; advisory mode logs them and admits the object anyway.
package policy
