/*
Package types defines the data structures shared by scbackend's storage,
registry, and API packages.

# Core Types

Projects:
  - Project: a named payload (Body) plus free-form JSON metadata (Meta)
  - ProjectMeta: decoded metadata written by the API on create

Instances:
  - InstanceState: created, running, degraded, closed
  - InstanceInfo: read-only projection returned by registry.List

The state machine for one instance is:

	absent ──add──► created ──engine ok──► running ──remove──► closed
	                   │                                        ▲
	                   └──engine failed──► degraded ──remove────┘

A closed instance never comes back; adding the same id again creates a new
instance with a new RunID and an empty buffer.

# Identifiers

Project names and instance ids share one namespace and must match
^[\w-]+$ (at most 64 characters). ValidID enforces this at the API edge.
*/
package types
