// Package docs holds the Swagger document served under /swagger.
// Regenerate with: swag init -g cmd/server/main.go -o docs
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
    "paths": {
        "/auth/login": {
            "post": {
                "description": "Sign in with email and password and receive an access token",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["auth"],
                "summary": "Sign in",
                "parameters": [
                    {"description": "Credentials", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/models.LoginRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/models.TokenResponse"}},
                    "400": {"description": "Invalid request", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "401": {"description": "Invalid credentials", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/auth/password-reset": {
            "post": {
                "description": "Email a password reset link. The response is the same whether or not the account exists.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["auth"],
                "summary": "Request password reset",
                "parameters": [
                    {"description": "Account email", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/models.PasswordResetRequest"}}
                ],
                "responses": {
                    "202": {"description": "Accepted", "schema": {"$ref": "#/definitions/handlers.MessageResponse"}},
                    "400": {"description": "Invalid request", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "500": {"description": "Internal server error", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "503": {"description": "Email is not configured", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/auth/password-reset/confirm": {
            "post": {
                "description": "Set a new password with the token from the reset email",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["auth"],
                "summary": "Confirm password reset",
                "parameters": [
                    {"description": "Reset token and new password", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/models.PasswordResetConfirmRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.MessageResponse"}},
                    "400": {"description": "Invalid request or token", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "500": {"description": "Internal server error", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/auth/register": {
            "post": {
                "security": [{"BearerAuth": []}],
                "description": "Create a teacher account. Only a signed-in teacher can register another teacher.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["auth"],
                "summary": "Register teacher",
                "parameters": [
                    {"description": "New account", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/models.RegisterRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/models.User"}},
                    "400": {"description": "Invalid request", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "401": {"description": "Authentication required", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "403": {"description": "Insufficient permissions", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "409": {"description": "Email already exists", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/auth/session": {
            "get": {
                "security": [{"BearerAuth": []}],
                "description": "Get the session of the access token",
                "produces": ["application/json"],
                "tags": ["auth"],
                "summary": "Current session",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/models.Session"}},
                    "401": {"description": "Authentication required", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/categories": {
            "get": {
                "description": "Get all categories with display titles and the class levels each one allows",
                "produces": ["application/json"],
                "tags": ["categories"],
                "summary": "List categories",
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/models.CategoryInfo"}}}
                }
            }
        },
        "/materials": {
            "get": {
                "description": "Get materials of a category and type. With a class, materials without a class are included.",
                "produces": ["application/json"],
                "tags": ["materials"],
                "summary": "List materials",
                "parameters": [
                    {"type": "string", "description": "Category (jee, ncert, neet, olympiad, cuet, ntse)", "name": "category", "in": "query", "required": true},
                    {"type": "string", "description": "Material type (material, pyq, solution)", "name": "type", "in": "query", "required": true},
                    {"type": "integer", "description": "Class level", "name": "class", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/models.Material"}}},
                    "400": {"description": "Invalid filter", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            },
            "post": {
                "security": [{"BearerAuth": []}],
                "description": "Create a material. Videos carry a YouTube URL, images and PDFs carry a file.",
                "consumes": ["multipart/form-data"],
                "produces": ["application/json"],
                "tags": ["materials"],
                "summary": "Upload material",
                "parameters": [
                    {"type": "string", "description": "Name", "name": "name", "in": "formData", "required": true},
                    {"type": "string", "description": "Category", "name": "category", "in": "formData", "required": true},
                    {"type": "string", "description": "Material type", "name": "type", "in": "formData", "required": true},
                    {"type": "string", "description": "File type (img, video, pdf)", "name": "file_type", "in": "formData", "required": true},
                    {"type": "integer", "description": "Chapter", "name": "chapter", "in": "formData"},
                    {"type": "integer", "description": "Class level", "name": "class", "in": "formData"},
                    {"type": "string", "description": "YouTube URL for videos", "name": "youtube_url", "in": "formData"},
                    {"type": "file", "description": "Image or PDF", "name": "file", "in": "formData"}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/models.Material"}},
                    "400": {"description": "Invalid request", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "401": {"description": "Authentication required", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "413": {"description": "Upload too large", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/materials/{id}": {
            "get": {
                "description": "Get a single material by ID",
                "produces": ["application/json"],
                "tags": ["materials"],
                "summary": "Get material",
                "parameters": [
                    {"type": "integer", "description": "Material ID", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/models.Material"}},
                    "404": {"description": "Material not found", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            },
            "delete": {
                "security": [{"BearerAuth": []}],
                "description": "Delete a material record. Deleting a missing record succeeds with affected 0.",
                "produces": ["application/json"],
                "tags": ["materials"],
                "summary": "Delete material",
                "parameters": [
                    {"type": "integer", "description": "Material ID", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.DeleteResponse"}},
                    "401": {"description": "Authentication required", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        }
    },
    "definitions": {
        "handlers.DeleteResponse": {
            "type": "object",
            "properties": {"affected": {"type": "integer"}}
        },
        "handlers.ErrorResponse": {
            "type": "object",
            "properties": {"error": {"type": "string"}, "field": {"type": "string"}}
        },
        "handlers.MessageResponse": {
            "type": "object",
            "properties": {"message": {"type": "string"}}
        },
        "models.CategoryInfo": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "title": {"type": "string"},
                "class_options": {"type": "array", "items": {"type": "integer"}}
            }
        },
        "models.LoginRequest": {
            "type": "object",
            "properties": {"email": {"type": "string"}, "password": {"type": "string"}}
        },
        "models.PasswordResetConfirmRequest": {
            "type": "object",
            "properties": {"token": {"type": "string"}, "password": {"type": "string"}}
        },
        "models.PasswordResetRequest": {
            "type": "object",
            "properties": {"email": {"type": "string"}}
        },
        "models.Material": {
            "type": "object",
            "properties": {
                "id": {"type": "integer"},
                "name": {"type": "string"},
                "file_type": {"type": "string"},
                "file_url": {"type": "string"},
                "chapter": {"type": "integer"},
                "class": {"type": "integer"},
                "type": {"type": "string"},
                "category": {"type": "string"},
                "page_count": {"type": "integer"},
                "created_at": {"type": "string"}
            }
        },
        "models.RegisterRequest": {
            "type": "object",
            "properties": {"email": {"type": "string"}, "password": {"type": "string"}}
        },
        "models.Session": {
            "type": "object",
            "properties": {
                "user_id": {"type": "integer"},
                "email": {"type": "string"},
                "role": {"type": "string"},
                "expires_at": {"type": "string"}
            }
        },
        "models.TokenResponse": {
            "type": "object",
            "properties": {
                "access_token": {"type": "string"},
                "token_type": {"type": "string"},
                "expires_at": {"type": "string"}
            }
        },
        "models.User": {
            "type": "object",
            "properties": {
                "id": {"type": "integer"},
                "email": {"type": "string"},
                "role": {"type": "string"},
                "created_at": {"type": "string"}
            }
        }
    },
    "securityDefinitions": {
        "BearerAuth": {
            "description": "Type \"Bearer\" followed by a space and the access token",
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:8080",
	BasePath:         "/api/v1",
	Schemes:          []string{},
	Title:            "Study Materials API",
	Description:      "API for browsing, uploading and deleting study materials",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
