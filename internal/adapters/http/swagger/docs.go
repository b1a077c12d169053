package swagger

import "github.com/swaggo/swag"

// InstanceName is the swag registry key of the pitwall document.
const InstanceName = "pitwall"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/api/session/create": {
            "post": {
                "tags": ["sessions"],
                "summary": "Create a session",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [
                    {"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/CreateSessionRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/Session"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/Error"}}
                }
            }
        },
        "/api/session/{id}": {
            "get": {
                "tags": ["sessions"],
                "summary": "Get a session",
                "produces": ["application/json"],
                "parameters": [{"in": "path", "name": "id", "type": "string", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/Session"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/Error"}}
                }
            }
        },
        "/api/session/{id}/close": {
            "post": {
                "tags": ["sessions"],
                "summary": "Close a session",
                "produces": ["application/json"],
                "parameters": [{"in": "path", "name": "id", "type": "string", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/Session"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/Error"}}
                }
            }
        },
        "/api/session/{id}/predictions": {
            "get": {
                "tags": ["sessions"],
                "summary": "List recorded predictions",
                "produces": ["application/json"],
                "parameters": [{"in": "path", "name": "id", "type": "string", "required": true}],
                "responses": {
                    "200": {"description": "OK"},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/Error"}}
                }
            }
        },
        "/api/session/{id}/story": {
            "post": {
                "tags": ["stories"],
                "summary": "Compose the race story of a session",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [
                    {"in": "path", "name": "id", "type": "string", "required": true},
                    {"in": "body", "name": "request", "schema": {"$ref": "#/definitions/SessionStoryRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/RaceStory"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/Error"}}
                }
            }
        },
        "/api/predict/{task}": {
            "post": {
                "tags": ["predictions"],
                "summary": "Submit telemetry for one lap",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [
                    {"in": "path", "name": "task", "type": "string", "required": true, "enum": ["lap-time", "pit", "tire", "all"]},
                    {"in": "header", "name": "Idempotency-Key", "type": "string"},
                    {"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/PredictionRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/PredictionResult"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/Error"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/Error"}},
                    "409": {"description": "Session closed", "schema": {"$ref": "#/definitions/Error"}},
                    "422": {"description": "Validation failed", "schema": {"$ref": "#/definitions/Error"}},
                    "503": {"description": "Models unavailable", "schema": {"$ref": "#/definitions/Error"}}
                }
            }
        },
        "/api/race/story": {
            "post": {
                "tags": ["stories"],
                "summary": "Compose a story from supplied events",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [
                    {"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/RaceStoryRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/RaceStory"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/Error"}}
                }
            }
        },
        "/health": {
            "get": {
                "tags": ["ops"],
                "summary": "Readiness",
                "produces": ["application/json"],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/HealthStatus"}},
                    "503": {"description": "Degraded", "schema": {"$ref": "#/definitions/HealthStatus"}}
                }
            }
        }
    },
    "definitions": {
        "Error": {
            "type": "object",
            "properties": {"code": {"type": "string"}, "message": {"type": "string"}}
        },
        "CreateSessionRequest": {
            "type": "object",
            "required": ["vehicle_id"],
            "properties": {"vehicle_id": {"type": "integer"}, "race_name": {"type": "string"}}
        },
        "Session": {
            "type": "object",
            "properties": {
                "session_id": {"type": "string"},
                "vehicle_id": {"type": "integer"},
                "race_name": {"type": "string"},
                "status": {"type": "string"},
                "created_at": {"type": "string"},
                "closed_at": {"type": "string"},
                "prediction_count": {"type": "integer"}
            }
        },
        "PredictionRequest": {
            "type": "object",
            "required": ["session_id", "vehicle_id", "lap", "telemetry"],
            "properties": {
                "session_id": {"type": "string"},
                "vehicle_id": {"type": "integer"},
                "lap": {"type": "integer"},
                "telemetry": {"type": "object"},
                "tire_compound": {"type": "string"},
                "explain": {"type": "boolean"},
                "request_id": {"type": "string"}
            }
        },
        "PredictionResult": {
            "type": "object",
            "properties": {
                "session_id": {"type": "string"},
                "vehicle_id": {"type": "integer"},
                "lap": {"type": "integer"},
                "lap_time": {"type": "object"},
                "pit": {"type": "object"},
                "tire": {"type": "object"},
                "explanation": {"type": "object"}
            }
        },
        "RaceEvent": {
            "type": "object",
            "properties": {"lap": {"type": "integer"}, "kind": {"type": "string"}, "event": {"type": "string"}}
        },
        "SessionStoryRequest": {
            "type": "object",
            "properties": {
                "race_events": {"type": "array", "items": {"$ref": "#/definitions/RaceEvent"}},
                "summary_stats": {"type": "object"}
            }
        },
        "RaceStoryRequest": {
            "type": "object",
            "required": ["vehicle_id"],
            "properties": {
                "session_id": {"type": "string"},
                "vehicle_id": {"type": "integer"},
                "race_events": {"type": "array", "items": {"$ref": "#/definitions/RaceEvent"}},
                "summary_stats": {"type": "object"}
            }
        },
        "RaceStory": {
            "type": "object",
            "properties": {
                "session_id": {"type": "string"},
                "vehicle_id": {"type": "integer"},
                "story": {"type": "string"},
                "generated": {"type": "boolean"},
                "events": {"type": "array", "items": {"$ref": "#/definitions/RaceEvent"}},
                "summary": {"type": "object"}
            }
        },
        "HealthStatus": {
            "type": "object",
            "properties": {
                "status": {"type": "string"},
                "models_loaded": {"type": "boolean"},
                "provider_available": {"type": "boolean"},
                "sessions": {"type": "object"},
                "error": {"type": "string"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it.
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "Pitwall Race Prediction API",
	Description:      "Per-lap race predictions and narrative race stories.",
	InfoInstanceName: InstanceName,
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
