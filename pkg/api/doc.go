/*
Package api provides the HTTP API for managing projects and their running
instances.

The router is chi with request id, real ip, panic recovery, permissive CORS
and Prometheus instrumentation. Every error response has the same shape:

	{"error": "Project not found", "code": 404}

# Routes

	GET    /health /ready /live /metrics

	GET    /api/projects                  list, newest first
	POST   /api/projects                  {"name","code","description"}
	GET    /api/projects/{id}
	PUT    /api/projects/{id}             {"body"}
	DELETE /api/projects/{id}             stops a running instance first
	POST   /api/projects/{id}/run         add instance if absent, PROJECT_START
	POST   /api/projects/{id}/stop        PROJECT_STOP, then remove

	GET    /api/runners
	GET    /api/runners/{id}
	POST   /api/runners/{id}              add instance for an existing project
	DELETE /api/runners/{id}
	POST   /api/runners/{id}/trigger      {"event","data"}

Legacy aliases: GET /projects, GET /project/{id}, GET /runners,
GET /runner/add/{id}, GET /runner/remove/{id}, POST /runner/{id}/trigger.
The legacy add and remove routes answer 200 for duplicates and unknown ids.

# Error mapping

	storage.ErrProjectNotFound, registry.ErrInstanceNotFound  404
	storage.ErrProjectExists, registry.ErrInstanceExists      409
	malformed body, invalid id, missing field                400
	anything else                                            500 (logged)
*/
package api
