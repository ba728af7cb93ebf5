// Package monitoring provides the built-in monitoring object types: Host,
// Service and Notification, plus the CheckResult payload that check
// executions report back with.
//
// Services carry a composite name of the form "host!service" and
// load-depend on their host. Notifications are derived objects: during the
// all-loaded pass a service declares one notification per configured
// contact, named "host!service!contact". Both derivations register edges in
// the dependency graph so that reloading a host tears down its services and
// notifications as well.
package monitoring
