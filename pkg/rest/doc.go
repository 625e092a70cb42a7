// Package rest exposes the connector over HTTP with JSON bodies.
//
// All endpoints live under /v1. Addresses are passed as the `addr` query
// parameter or body field; resource documents travel as YAML strings.
//
//	Method | Path          | Body / query                          | Response
//	-------|---------------|---------------------------------------|--------------------------------
//	GET    | /v1/filter    | ?addr=                                | {"filter": "config|resource|none"}
//	GET    | /v1/subpaths  |                                       | {"subpaths": [...]}
//	GET    | /v1/list      | ?subpath=                             | {"paths": [...]}
//	GET    | /v1/get       | ?addr=                                | {"resource_definition": "..."}, 404 when absent
//	POST   | /v1/plan      | {"addr", "current"?, "desired"?}      | {"steps": [{"op_definition", "friendly_message"}]}
//	POST   | /v1/op_exec   | {"addr", "op"}                        | {"outputs", "friendly_message"}
//	POST   | /v1/diag      | {"addr", "body"}                      | {"diagnostics": [...]}
//	POST   | /v1/eq        | {"addr", "a", "b"}                    | {"equal": bool}
//	GET    | /v1/skeletons |                                       | {"skeletons": [{"addr", "body"}]}
//	POST   | /v1/task_exec | {"addr", "body", "arg", "state"}      | {"state", "outputs", "friendly_message"}
//	POST   | /v1/reload    |                                       | {"subpaths": [...]}
//
// GET /v1/get returns the bare YAML document instead when the request
// accepts application/yaml.
//
// Errors are returned as {"message", "code"}. Malformed addresses, documents
// and operations map to 400, unknown clusters to 404, broker failures to
// 502 and timeouts to 504.
package rest
