/*
Package engine defines the execution engine contract and ships a rule-driven
script engine.

An Engine runs one project payload. Everything it does is reported on its
emission channel, which the owning registry instance pumps into the instance
buffer. The engine never calls back into registry state.

	Factory() ──► Engine
	               │ Load(ctx, payload)   PROJECT_LOADED
	               │ Start()              PROJECT_START, RUNTIME_STEP...
	               │ Deliver(ev)          (Sink, optional) rule output
	               │ Stop()               PROJECT_STOP, channel closed
	               ▼
	          Events() <-chan events.Event

Emission never blocks the engine. When the channel is full the event is
dropped and counted under scbackend_events_total{stage="dropped"}.

# Script programs

	{
	  "targets": [{"name": "Stage"}],
	  "rules": [
	    {"on": "ping",  "emit": "message"},
	    {"on": "greet", "emit": "message", "data": {"text": "hello"}},
	    {"on": "*",     "emit": "seen"}
	  ]
	}

Each delivered event runs every rule whose "on" matches its kind ("*" matches
all). A rule emits "emit" with "data", or with the delivered payload when
"data" is absent.
*/
package engine
