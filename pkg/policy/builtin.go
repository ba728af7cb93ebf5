package policy

import (
	"time"
)

// GetBuiltinPolicies returns all built-in policies.
func GetBuiltinPolicies() []Policy {
	return []Policy{
		objectNamingPolicy(),
		loopbackAddressPolicy(),
		checkIntervalPolicy(),
	}
}

// objectNamingPolicy enforces object naming conventions.
func objectNamingPolicy() Policy {
	return Policy{
		Name:        "object-naming",
		Description: "Enforces object naming conventions (no whitespace, no reserved prefixes)",
		Severity:    SeverityError,
		Enabled:     true,
		Tags:        []string{"naming", "conventions"},
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
		Rego: `package openmon.policies.naming

import rego.v1

deny contains violation if {
	name := input.name

	# Object names must not be empty
	name == ""
	violation := {
		"message": sprintf("%s object must have a name", [input.type]),
		"severity": "error",
		"object": name,
	}
}

deny contains violation if {
	name := input.name

	# Names must not contain whitespace
	regex.match("\\s", name)
	violation := {
		"message": sprintf("%s name '%s' must not contain whitespace", [input.type, name]),
		"severity": "error",
		"object": name,
	}
}

deny contains violation if {
	name := input.name

	# Leading underscore is reserved for internal objects
	startswith(name, "_")
	violation := {
		"message": sprintf("%s name '%s' must not start with an underscore", [input.type, name]),
		"severity": "error",
		"object": name,
	}
}

deny contains violation if {
	name := input.name

	count(name) > 255
	violation := {
		"message": sprintf("%s name '%s' must not exceed 255 characters", [input.type, name]),
		"severity": "error",
		"object": name,
	}
}`,
	}
}

// loopbackAddressPolicy flags hosts that point checks at the loopback interface.
func loopbackAddressPolicy() Policy {
	return Policy{
		Name:        "loopback-address",
		Description: "Flags Host objects whose address resolves to the loopback interface",
		Severity:    SeverityWarning,
		Enabled:     true,
		Tags:        []string{"hosts", "addresses"},
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
		Rego: `package openmon.policies.addresses

import rego.v1

loopback_addresses := ["127.0.0.1", "::1", "localhost"]

deny contains violation if {
	input.type == "Host"
	address := input.properties.address

	some loopback in loopback_addresses
	address == loopback

	violation := {
		"message": sprintf("Host '%s' uses loopback address %s", [input.name, address]),
		"severity": "warning",
		"object": input.name,
	}
}`,
	}
}

// checkIntervalPolicy warns about check intervals too short to be useful.
func checkIntervalPolicy() Policy {
	return Policy{
		Name:        "check-interval-bounds",
		Description: "Warns when check_interval is below the scheduler's useful minimum",
		Severity:    SeverityWarning,
		Enabled:     true,
		Tags:        []string{"checks", "scheduling"},
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
		Rego: `package openmon.policies.checks

import rego.v1

min_check_interval := 5

deny contains violation if {
	interval := input.properties.check_interval

	interval > 0
	interval < min_check_interval

	violation := {
		"message": sprintf("%s '%s' check_interval %v is below the minimum of %d seconds", [input.type, input.name, interval, min_check_interval]),
		"severity": "warning",
		"object": input.name,
	}
}`,
	}
}
