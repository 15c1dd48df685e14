/*
Package broadcast fans relayed events out to WebSocket subscribers.

Subscribers connect to the stream endpoint, may send a handshake, and then
receive every event the registry publishes from that moment on. Nothing is
replayed to late joiners.

# Architecture

	┌────────────────────── BROADCASTER ───────────────────────┐
	│                                                            │
	│  registry central drain                                    │
	│        │ Publish(ev)  (encode once, snapshot subscribers)  │
	│        ▼                                                   │
	│  ┌──────────┐  ┌──────────┐  ┌──────────┐                  │
	│  │ sub.out  │  │ sub.out  │  │ sub.out  │  buffered chans; │
	│  └────┬─────┘  └────┬─────┘  └────┬─────┘  full = dropped  │
	│       ▼             ▼             ▼                        │
	│   writeLoop     writeLoop     writeLoop   one per conn     │
	│       │             │             │                        │
	│   readLoop ──► ParseInbound ──► handleMessage ──► reply    │
	│   (rate limited per subscriber)                           │
	└────────────────────────────────────────────────────────────┘

A write error or a closed connection removes only that subscriber.
Publish never waits on a subscriber.

# Wire format

Outbound event:

	{"type":"event","event":"message","data":{...},"timestamp":"2024-05-01T12:00:00.000Z"}

Inbound handshake and its reply:

	{"type":"handshake"}
	{"type":"handshake","status":"ok","timestamp":"...","serverVersion":"1.0.2"}

Errors, sent to the offending subscriber only, connection left open:

	{"type":"error","message":"Invalid JSON"}
	{"type":"error","message":"Missing type field"}
	{"type":"error","message":"Unknown type"}

Timestamps are UTC with millisecond precision.
*/
package broadcast
