/*
Package log provides structured logging for scbackend using zerolog.

The package keeps one global zerolog.Logger that every other package writes
through. Components derive child loggers carrying a "component" field, and
the relay pipeline adds identifiers for the instance, project, or subscriber
a line is about, so a single event can be followed from the engine that
emitted it to the sockets it was written to.

# Architecture

	┌───────────────────── LOGGING ─────────────────────┐
	│                                                     │
	│  log.Init(Config)                                   │
	│    - Level: debug / info / warn / error             │
	│    - JSONOutput: JSON lines or console              │
	│    - Output: any io.Writer (stdout by default)      │
	│                      │                              │
	│                      ▼                              │
	│  log.Logger (global zerolog.Logger)                 │
	│                      │                              │
	│      ┌───────────────┼────────────────┐             │
	│      ▼               ▼                ▼             │
	│  WithComponent   WithInstanceID   WithSubscriberID  │
	│  "registry"      "demo-project"   "3f2a..."         │
	│  "broadcast"                                        │
	│  "api"                                              │
	└─────────────────────────────────────────────────────┘

# Levels

The relay logs lifecycle changes (instance added, subscriber connected) at
info, per-event traffic at debug, lookups of unknown instances and unknown
event kinds at warn, and engine failures or recovered listener panics at
error. Fatal is reserved for cmd/scbackend start-up failures.

# Usage

	log.Init(log.Config{
		Level:      log.ParseLevel(cfg.LogLevel),
		JSONOutput: cfg.LogJSON,
	})

	logger := log.WithComponent("registry")
	logger.Info().Str("instance_id", id).Msg("instance added")

The zero value of Logger discards everything, so packages can log freely in
tests without calling Init.
*/
package log
