// Package config is the configuration front end of the openmon daemon.
//
// It covers three concerns:
//
//  1. Daemon configuration - DaemonConfig parsed from CUE (validated against
//     the built-in daemon schema) or YAML, selected by file extension, with
//     struct-tag validation on top.
//  2. Declaration manifests - YAML files listing object declarations. The
//     Loader validates each entry against the declaration schema and
//     compiles it into a compiler.Item, carrying source locations for
//     diagnostics.
//  3. Starlark evaluation - declaration bodies (`script`) and the
//     modified-attributes restore file run under StarlarkEvaluator with a
//     bounded execution time. Declaration scripts address the object under
//     construction as `this`.
//
// # Daemon configuration
//
//	cfg, err := config.LoadDaemonConfig("/etc/openmon/openmon.cue")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// # Declaration manifests
//
//	loader := config.NewLoader(types, config.NewStarlarkEvaluator(cfg.StarlarkTimeout()))
//	items, err := loader.LoadDirectory(ctx, cfg.ConfDir)
//
// A manifest looks like:
//
//	objects:
//	  - type: Host
//	    name: web01
//	    properties:
//	      address: 192.0.2.1
//	  - type: Service
//	    name: ping
//	    script: |
//	      this.host_name = "web01"
//	      this.check_command = "ping4"
//
// # Modified attributes
//
// Operator-modified attributes are replayed during activation from a
// Starlark file calling set_attr(type, name, field, value):
//
//	modAttrs := evaluator.ModAttrsFunc(cfg.ModAttrsPath, types)
package config
