// Package docs registers the OpenAPI description served by gin-swagger.
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
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "paths": {
        "/auth/signup": {"post": {"tags": ["Auth"], "summary": "Register an account", "operationId": "signUp",
            "parameters": [{"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.SignUpRequest"}}],
            "responses": {"201": {"description": "Created"}, "400": {"description": "Validation failed", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}, "409": {"description": "Email already registered", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}}}},
        "/auth/signin": {"post": {"tags": ["Auth"], "summary": "Sign in", "operationId": "signIn",
            "parameters": [{"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.SignInRequest"}}],
            "responses": {"200": {"description": "OK"}, "401": {"description": "Invalid credentials", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}}}},
        "/auth/signout": {"post": {"tags": ["Auth"], "summary": "Sign out", "operationId": "signOut", "responses": {"204": {"description": "No Content"}}}},
        "/auth/refresh": {"post": {"tags": ["Auth"], "summary": "Rotate the session token", "operationId": "refreshToken", "security": [{"BearerAuth": []}],
            "responses": {"200": {"description": "OK"}, "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}}}},
        "/me": {"get": {"tags": ["Profile"], "summary": "Current user", "operationId": "me", "security": [{"BearerAuth": []}], "responses": {"200": {"description": "OK"}}}},
        "/me/profile": {"put": {"tags": ["Profile"], "summary": "Update the profile", "operationId": "updateProfile", "security": [{"BearerAuth": []}],
            "parameters": [{"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.UpdateProfileRequest"}}],
            "responses": {"200": {"description": "OK"}, "400": {"description": "Validation failed", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}}}},
        "/plans": {"get": {"tags": ["Plans"], "summary": "Subscription plans", "operationId": "listPlans", "responses": {"200": {"description": "OK"}}}},
        "/subscription": {"get": {"tags": ["Plans"], "summary": "Active subscription of the caller", "operationId": "currentSubscription", "security": [{"BearerAuth": []}], "responses": {"200": {"description": "OK"}}}},
        "/chats": {
            "get": {"tags": ["Chats"], "summary": "List chats", "operationId": "listChats", "security": [{"BearerAuth": []}],
                "parameters": [{"type": "integer", "name": "page", "in": "query"}, {"type": "integer", "name": "page_size", "in": "query"}, {"type": "string", "name": "If-None-Match", "in": "header"}],
                "responses": {"200": {"description": "OK"}, "304": {"description": "Not Modified"}}},
            "post": {"tags": ["Chats"], "summary": "Create chat", "operationId": "createChat", "security": [{"BearerAuth": []}],
                "parameters": [{"in": "body", "name": "body", "schema": {"$ref": "#/definitions/handlers.CreateChatRequest"}}],
                "responses": {"201": {"description": "Created"}}}
        },
        "/chats/{id}/title": {"put": {"tags": ["Chats"], "summary": "Rename chat", "operationId": "updateChatTitle", "security": [{"BearerAuth": []}],
            "parameters": [{"type": "string", "format": "uuid", "name": "id", "in": "path", "required": true}, {"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.UpdateChatTitleRequest"}}],
            "responses": {"204": {"description": "No Content"}, "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}, "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}}}},
        "/chats/{id}/messages": {
            "get": {"tags": ["Messages"], "summary": "List messages", "operationId": "listMessages", "security": [{"BearerAuth": []}],
                "parameters": [{"type": "string", "format": "uuid", "name": "id", "in": "path", "required": true}, {"type": "string", "enum": ["html"], "name": "format", "in": "query"}],
                "responses": {"200": {"description": "OK"}, "304": {"description": "Not Modified"}}},
            "post": {"tags": ["Messages"], "summary": "Append a message", "operationId": "postMessage", "security": [{"BearerAuth": []}],
                "parameters": [{"type": "string", "format": "uuid", "name": "id", "in": "path", "required": true}, {"type": "string", "name": "Idempotency-Key", "in": "header"}, {"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.PostMessageRequest"}}],
                "responses": {"200": {"description": "Replayed"}, "201": {"description": "Created"}, "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}}}
        },
        "/session": {"get": {"tags": ["Session"], "summary": "Session snapshot", "operationId": "getSession", "security": [{"BearerAuth": []}], "responses": {"200": {"description": "OK"}}}},
        "/session/conversations": {"post": {"tags": ["Session"], "summary": "Start a new conversation", "operationId": "startConversation", "security": [{"BearerAuth": []}],
            "parameters": [{"in": "body", "name": "body", "schema": {"$ref": "#/definitions/handlers.StartConversationRequest"}}],
            "responses": {"201": {"description": "Created"}}}},
        "/session/conversation/{id}": {"put": {"tags": ["Session"], "summary": "Open a conversation", "operationId": "selectConversation", "security": [{"BearerAuth": []}],
            "parameters": [{"type": "string", "format": "uuid", "name": "id", "in": "path", "required": true}],
            "responses": {"200": {"description": "OK"}, "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}}}},
        "/session/messages": {"post": {"tags": ["Session"], "summary": "Send a message in the current conversation", "operationId": "submitMessage", "security": [{"BearerAuth": []}],
            "parameters": [{"type": "boolean", "name": "wait", "in": "query"}, {"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.SubmitRequest"}}],
            "responses": {"200": {"description": "Resolved"}, "202": {"description": "Accepted"}, "409": {"description": "No conversation or reply pending", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}}}},
        "/session/events": {"get": {"tags": ["Session"], "summary": "Stream session snapshots", "operationId": "sessionEvents", "produces": ["text/event-stream"], "security": [{"BearerAuth": []}], "responses": {"200": {"description": "OK"}}}}
    },
    "definitions": {
        "handlers.ErrorResponse": {"type": "object", "properties": {"request_id": {"type": "string"}, "code": {"type": "string"}, "message": {"type": "string"}}},
        "handlers.SignUpRequest": {"type": "object", "required": ["email", "password"], "properties": {"email": {"type": "string"}, "password": {"type": "string"}, "full_name": {"type": "string"}, "phone": {"type": "string"}}},
        "handlers.SignInRequest": {"type": "object", "required": ["email", "password"], "properties": {"email": {"type": "string"}, "password": {"type": "string"}}},
        "handlers.UpdateProfileRequest": {"type": "object", "properties": {"full_name": {"type": "string"}, "phone": {"type": "string"}}},
        "handlers.CreateChatRequest": {"type": "object", "properties": {"title": {"type": "string"}}},
        "handlers.UpdateChatTitleRequest": {"type": "object", "required": ["title"], "properties": {"title": {"type": "string"}}},
        "handlers.PostMessageRequest": {"type": "object", "required": ["content"], "properties": {"role": {"type": "string", "enum": ["user", "assistant"]}, "content": {"type": "string"}}},
        "handlers.StartConversationRequest": {"type": "object", "properties": {"title": {"type": "string"}}},
        "handlers.SubmitRequest": {"type": "object", "required": ["content"], "properties": {"content": {"type": "string"}}}
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it.
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/api/v1",
	Schemes:          []string{},
	Title:            "tributarIA API",
	Description:      "Authenticated chat assistant for the Brazilian tax reform.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
