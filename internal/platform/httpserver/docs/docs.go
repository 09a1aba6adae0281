// Package docs registers the voteledger OpenAPI document with swag so the
// swagger UI can serve it at /swagger/doc.json.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"},
        "UserID": {"type": "apiKey", "name": "X-User-Id", "in": "header"}
    },
    "paths": {
        "/v1/ledger/initialize": {
            "post": {
                "summary": "Initialize the ledger with the caller as admin",
                "security": [{"BearerAuth": [], "UserID": []}],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/InitializeResponse"}},
                    "401": {"description": "Unauthenticated", "schema": {"$ref": "#/definitions/ErrorResponse"}},
                    "409": {"description": "Already initialized", "schema": {"$ref": "#/definitions/ErrorResponse"}}
                }
            }
        },
        "/v1/ledger/admin": {
            "get": {
                "summary": "Stored admin identity",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/AdminResponse"}}}
            }
        },
        "/v1/ledger/stats": {
            "get": {
                "summary": "Aggregate ledger statistics",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/StatsResponse"}}}
            }
        },
        "/v1/ledger/winner": {
            "get": {
                "summary": "Entity ranked first",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/EntityResponse"}},
                    "404": {"description": "No entities", "schema": {"$ref": "#/definitions/ErrorResponse"}}
                }
            }
        },
        "/v1/ledger/totals": {
            "get": {
                "summary": "Total entities and votes",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/TotalsResponse"}}}
            }
        },
        "/v1/entities": {
            "get": {
                "summary": "Entities ranked by votes",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/EntityListResponse"}}}
            },
            "post": {
                "summary": "Register an entity",
                "security": [{"BearerAuth": [], "UserID": []}],
                "parameters": [{"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/RegisterEntityRequest"}}],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/EntityResponse"}},
                    "400": {"description": "Invalid name", "schema": {"$ref": "#/definitions/ErrorResponse"}},
                    "409": {"description": "Already exists", "schema": {"$ref": "#/definitions/ErrorResponse"}}
                }
            }
        },
        "/v1/entities/{name}": {
            "delete": {
                "summary": "Remove an entity (admin only)",
                "security": [{"BearerAuth": [], "UserID": []}],
                "parameters": [{"in": "path", "name": "name", "required": true, "type": "string"}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/RemoveResponse"}},
                    "403": {"description": "Not admin", "schema": {"$ref": "#/definitions/ErrorResponse"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ErrorResponse"}}
                }
            }
        },
        "/v1/entities/{name}/votes": {
            "get": {
                "summary": "Vote count for an entity",
                "parameters": [{"in": "path", "name": "name", "required": true, "type": "string"}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/EntityVotesResponse"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ErrorResponse"}}
                }
            },
            "post": {
                "summary": "Vote for an entity",
                "security": [{"BearerAuth": [], "UserID": []}],
                "parameters": [{"in": "path", "name": "name", "required": true, "type": "string"}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/VoteResponse"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ErrorResponse"}},
                    "409": {"description": "Already voted", "schema": {"$ref": "#/definitions/ErrorResponse"}}
                }
            }
        },
        "/v1/users/{user_id}/votes": {
            "get": {
                "summary": "Names a user voted for, in cast order",
                "parameters": [{"in": "path", "name": "user_id", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/UserVotesResponse"}}}
            }
        },
        "/v1/users/{user_id}/votes/{name}": {
            "get": {
                "summary": "Whether a user voted for a name",
                "parameters": [
                    {"in": "path", "name": "user_id", "required": true, "type": "string"},
                    {"in": "path", "name": "name", "required": true, "type": "string"}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/HasVotedResponse"}}}
            }
        },
        "/v1/scoreboard": {
            "get": {
                "summary": "Event-fed scoreboard projection",
                "parameters": [{"in": "query", "name": "limit", "type": "integer"}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ScoreboardResponse"}},
                    "503": {"description": "No scoreboard configured", "schema": {"$ref": "#/definitions/ErrorResponse"}}
                }
            }
        }
    },
    "definitions": {
        "ErrorResponse": {"type": "object", "properties": {"code": {"type": "string"}, "message": {"type": "string"}}},
        "RegisterEntityRequest": {"type": "object", "properties": {"name": {"type": "string", "maxLength": 30}}},
        "InitializeResponse": {"type": "object", "properties": {"admin": {"type": "string"}}},
        "AdminResponse": {"type": "object", "properties": {"admin": {"type": "string"}, "initialized": {"type": "boolean"}}},
        "EntityResponse": {"type": "object", "properties": {"name": {"type": "string"}, "vote_count": {"type": "integer"}, "creator": {"type": "string"}, "rank": {"type": "integer"}}},
        "EntityListResponse": {"type": "object", "properties": {"items": {"type": "array", "items": {"$ref": "#/definitions/EntityResponse"}}}},
        "EntityVotesResponse": {"type": "object", "properties": {"name": {"type": "string"}, "votes": {"type": "integer"}}},
        "VoteResponse": {"type": "object", "properties": {"name": {"type": "string"}, "voter": {"type": "string"}, "vote_count": {"type": "integer"}}},
        "RemoveResponse": {"type": "object", "properties": {"name": {"type": "string"}, "removed": {"type": "boolean"}}},
        "UserVotesResponse": {"type": "object", "properties": {"user_id": {"type": "string"}, "names": {"type": "array", "items": {"type": "string"}}}},
        "HasVotedResponse": {"type": "object", "properties": {"user_id": {"type": "string"}, "name": {"type": "string"}, "voted": {"type": "boolean"}}},
        "TotalsResponse": {"type": "object", "properties": {"total_animals": {"type": "integer"}, "total_votes": {"type": "integer"}}},
        "StatsResponse": {"type": "object", "properties": {"total_animals": {"type": "integer"}, "total_votes": {"type": "integer"}, "highest_votes": {"type": "integer"}}},
        "ScoreboardResponse": {"type": "object", "properties": {"items": {"type": "array", "items": {"type": "object", "properties": {"name": {"type": "string"}, "votes": {"type": "integer"}}}}}}
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "voteledger API",
	Description:      "Community voting ledger: register entities, vote once per entity, rank by votes.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
