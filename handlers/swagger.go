package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RegisterSwagger registers minimal Swagger/OpenAPI endpoints for the API.
// - GET /swagger/index.html  -> a small HTML page that loads the OpenAPI JSON
// - GET /swagger/doc.json    -> machine-readable OpenAPI JSON
func RegisterSwagger(rg *gin.Engine) {
	rg.GET("/swagger/index.html", func(c *gin.Context) {
		c.Header("Content-Type", "text/html; charset=utf-8")
		c.String(http.StatusOK, swaggerHTML)
	})

	rg.GET("/swagger/doc.json", func(c *gin.Context) {
		c.Data(http.StatusOK, "application/json; charset=utf-8", []byte(swaggerJSON))
	})
}

const swaggerHTML = `<!doctype html>
<html>
  <head>
    <meta charset="utf-8" />
    <title>socialhub API - Swagger</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@4/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@4/swagger-ui-bundle.js"></script>
    <script>
      window.ui = SwaggerUIBundle({
        url: '/swagger/doc.json',
        dom_id: '#swagger-ui',
      })
    </script>
  </body>
</html>`

const swaggerJSON = `{
  "openapi": "3.0.0",
  "info": { "title": "socialhub-api", "version": "v1.0.0" },
  "paths": {
    "/api/auth/register": {
      "post": {
        "summary": "Create an account and start a session (sets the refreshToken cookie)",
        "requestBody": { "content": { "application/json": { "schema": {"type":"object","properties":{"email":{"type":"string"},"password":{"type":"string"},"username":{"type":"string"},"name":{"type":"string"}}}}}},
        "responses": { "201": { "description": "user and accessToken" }, "400": { "description": "validation error" }, "409": { "description": "email or username taken" } }
      }
    },
    "/api/auth/login": {
      "post": {
        "summary": "Password login by email or username (sets the refreshToken cookie)",
        "requestBody": { "content": { "application/json": { "schema": {"type":"object","properties":{"identifier":{"type":"string"},"password":{"type":"string"}}}}}},
        "responses": { "200": { "description": "user and accessToken" }, "400": { "description": "invalid credentials" }, "429": { "description": "rate limited" } }
      }
    },
    "/api/auth/refresh": {
      "post": { "summary": "Rotate the refreshToken cookie and return a new access token", "responses": { "200": { "description": "new accessToken" }, "401": { "description": "missing, invalid, expired or revoked refresh token" } } }
    },
    "/api/auth/logout": {
      "post": { "summary": "Revoke every session of the cookie's identity and clear the cookie", "responses": { "200": { "description": "ok" } } }
    },
    "/api/auth/me": {
      "get": { "summary": "Profile of the bearer", "responses": { "200": { "description": "user" }, "401": { "description": "not authorized" }, "404": { "description": "no such user" } } }
    },
    "/api/messages/{to}": {
      "post": { "summary": "Send a direct message", "responses": { "201": { "description": "message" }, "400": { "description": "invalid input" }, "404": { "description": "recipient not found" } } },
      "get": { "summary": "Conversation with a user", "responses": { "200": { "description": "messages, oldest first" } } }
    },
    "/api/messages/{id}/read": {
      "patch": { "summary": "Mark a received message read", "responses": { "200": { "description": "ok and readAt" }, "404": { "description": "not the recipient's message" } } }
    },
    "/health": { "get": { "summary": "Liveness check", "responses": { "200": { "description": "healthy" } } } },
    "/ready": { "get": { "summary": "Readiness check", "responses": { "200": { "description": "ready" }, "503": { "description": "not ready" } } } },
    "/metrics": { "get": { "summary": "Prometheus metrics", "responses": { "200": { "description": "metrics" } } } }
  }
}`
