/*
Package config loads graphexpr engine settings from YAML or JSON.

# Overview

A Config wraps the decoded map[string]any and offers typed accessors that
fall back to a default when a key is missing or holds the wrong type. Load
turns a Config into validated Settings for an engine:

	cfg, err := config.FromFile("graphexpr.yaml")
	if err != nil {
	    return err
	}
	settings, err := config.Load(cfg)
	if err != nil {
	    return err
	}

# Keys

	memory_order      log2 of the default memory tape size (default 6)
	max_memory_order  largest tape order an evaluator may own (default 20)
	metrics           record OpenTelemetry metrics (default false)
	tracing           emit OpenTelemetry spans (default false)
	seed              random seed for evaluators, 0 seeds randomly (default 0)
	log_compile       log every compile at Debug (default true)
	workers           parallel evaluation workers, 0 uses GOMAXPROCS
	batch_timeout     deadline for one parallel batch, 0 disables it
	expressions       map of name to expression text defined on first use

Durations accept Go duration strings ("250ms") or a number of seconds.
Integers decoded from JSON arrive as float64 and are accepted when they have
no fractional part.

# Thread Safety

Config is read-only after construction and safe for concurrent reads.
*/
package config
