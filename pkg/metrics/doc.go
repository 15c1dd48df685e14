/*
Package metrics provides Prometheus metrics and health reporting for scbackend.

All metrics are package-level vars registered with the default Prometheus
registry at init and exposed by Handler() on /metrics. The health checker is a
process-wide table of component states served on /health, /ready and /live.

# Architecture

	┌──────────────────── METRICS SYSTEM ─────────────────────┐
	│                                                           │
	│  registry ──► EventsTotal{stage}                          │
	│           ──► DrainsTotal{buffer}                         │
	│           ──► DrainCoalescedTotal{buffer}                 │
	│           ──► ListenerPanicsTotal                         │
	│           ──► EngineStartDuration                         │
	│                                                           │
	│  broadcast ─► SubscribersTotal                            │
	│           ──► InboundMessagesTotal{type}                  │
	│           ──► EventsTotal{delivered|dropped}              │
	│                                                           │
	│  api ───────► APIRequestsTotal{method,route,status}       │
	│           ──► APIRequestDuration{method,route}            │
	│                                                           │
	│  Collector (every 15s)                                    │
	│    registry.List() ──► InstancesTotal{state}              │
	│    broadcaster.Count() ──► SubscribersTotal               │
	│                                                           │
	│              promhttp.Handler() on /metrics               │
	└───────────────────────────────────────────────────────────┘

# Event stages

An event is counted once per stage it passes:

	emitted      engine produced it on its emission channel
	triggered    caller pushed it through Registry.TriggerExternal
	republished  instance drain copied it onto the central buffer
	published    central drain handed it to the broadcaster
	delivered    queued on one subscriber's outbound channel
	dropped      a subscriber's outbound channel (or an engine's
	             emission channel) was full

# Health

Components register themselves as healthy or unhealthy:

	metrics.RegisterComponent(metrics.ComponentStorage, true, "bolt")
	metrics.UpdateComponent(metrics.ComponentBroadcast, false, "listener closed")

/health is 503 when any component is unhealthy. /ready is 503 until storage,
registry and broadcast are all registered healthy. /live is always 200.

# Timing

	timer := metrics.NewTimer()
	err := eng.Start()
	timer.ObserveDuration(metrics.EngineStartDuration)
*/
package metrics
