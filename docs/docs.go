// Package docs holds the OpenAPI description served at /swagger.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "license": {
            "name": "MIT",
            "url": "https://opensource.org/licenses/MIT"
        },
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/api/led/command": {
            "post": {
                "description": "Validate a single-character command and deliver it to the device, reconnecting and retrying as needed",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["LED"],
                "summary": "Send LED command",
                "parameters": [
                    {
                        "description": "Command request",
                        "name": "request",
                        "in": "body",
                        "required": true,
                        "schema": {"$ref": "#/definitions/handler.CommandRequest"}
                    }
                ],
                "responses": {
                    "200": {"description": "Command sent", "schema": {"$ref": "#/definitions/utils.APIResponse"}},
                    "400": {"description": "Invalid command", "schema": {"$ref": "#/definitions/utils.APIResponse"}},
                    "500": {"description": "Device unavailable or send failed", "schema": {"$ref": "#/definitions/utils.APIResponse"}}
                }
            }
        },
        "/api/led/status": {
            "get": {
                "description": "Report whether the device is connected and on which port. Never touches the device.",
                "produces": ["application/json"],
                "tags": ["LED"],
                "summary": "Device status",
                "responses": {
                    "200": {"description": "Connection status", "schema": {"$ref": "#/definitions/handler.StatusResponse"}}
                }
            }
        },
        "/api/led/connect": {
            "post": {
                "description": "Close any existing connection and re-initialize the device",
                "produces": ["application/json"],
                "tags": ["LED"],
                "summary": "Reconnect device",
                "responses": {
                    "200": {"description": "Device connected", "schema": {"$ref": "#/definitions/utils.APIResponse"}},
                    "500": {"description": "Could not connect", "schema": {"$ref": "#/definitions/utils.APIResponse"}}
                }
            }
        },
        "/api/led/response": {
            "get": {
                "description": "Read one newline-terminated line from the device. Never reconnects.",
                "produces": ["application/json"],
                "tags": ["LED"],
                "summary": "Read device response",
                "parameters": [
                    {
                        "type": "string",
                        "default": "1s",
                        "description": "Read timeout as a Go duration",
                        "name": "timeout",
                        "in": "query"
                    }
                ],
                "responses": {
                    "200": {"description": "Line read (empty on timeout)", "schema": {"$ref": "#/definitions/handler.DeviceResponse"}},
                    "400": {"description": "Invalid timeout", "schema": {"$ref": "#/definitions/utils.APIResponse"}},
                    "503": {"description": "Device not connected or read failed", "schema": {"$ref": "#/definitions/utils.APIResponse"}}
                }
            }
        },
        "/api/led/ports": {
            "get": {
                "description": "List serial ports with USB details where available",
                "produces": ["application/json"],
                "tags": ["LED"],
                "summary": "List serial ports",
                "responses": {
                    "200": {
                        "description": "Ports listed",
                        "schema": {
                            "allOf": [
                                {"$ref": "#/definitions/utils.APIResponse"},
                                {
                                    "type": "object",
                                    "properties": {
                                        "data": {"type": "array", "items": {"$ref": "#/definitions/discovery.PortInfo"}}
                                    }
                                }
                            ]
                        }
                    },
                    "500": {"description": "Enumeration failed", "schema": {"$ref": "#/definitions/utils.APIResponse"}}
                }
            }
        },
        "/health": {
            "get": {
                "description": "Get overall service health including the device connection",
                "produces": ["application/json"],
                "tags": ["Health"],
                "summary": "Health check",
                "responses": {
                    "200": {"description": "Service is up; status is degraded while the device is disconnected", "schema": {"$ref": "#/definitions/handler.HealthResponse"}}
                }
            }
        },
        "/ready": {
            "get": {
                "description": "Ready when the device is connected",
                "produces": ["application/json"],
                "tags": ["Health"],
                "summary": "Readiness check",
                "responses": {
                    "200": {"description": "Service is ready"},
                    "503": {"description": "Service is not ready"}
                }
            }
        },
        "/live": {
            "get": {
                "description": "Check if service is alive",
                "produces": ["application/json"],
                "tags": ["Health"],
                "summary": "Liveness check",
                "responses": {
                    "200": {"description": "Service is alive"}
                }
            }
        },
        "/ws/events": {
            "get": {
                "description": "WebSocket stream of device_event messages, one per connection state change. Clients may send ping or status messages.",
                "tags": ["Events"],
                "summary": "Device event stream",
                "responses": {
                    "101": {"description": "Switching Protocols"}
                }
            }
        }
    },
    "definitions": {
        "discovery.PortInfo": {
            "type": "object",
            "properties": {
                "name": {"type": "string"},
                "is_usb": {"type": "boolean"},
                "vid": {"type": "string"},
                "pid": {"type": "string"},
                "serial_number": {"type": "string"},
                "product": {"type": "string"}
            }
        },
        "handler.CheckResult": {
            "type": "object",
            "properties": {
                "status": {"type": "string"},
                "message": {"type": "string"},
                "data": {"type": "object", "additionalProperties": true}
            }
        },
        "handler.CommandRequest": {
            "type": "object",
            "required": ["command"],
            "properties": {
                "command": {"type": "string", "example": "a"}
            }
        },
        "handler.DeviceResponse": {
            "type": "object",
            "properties": {
                "status": {"type": "string", "example": "success"},
                "response": {"type": "string"},
                "timestamp": {"type": "string"},
                "request_id": {"type": "string"}
            }
        },
        "handler.HealthResponse": {
            "type": "object",
            "properties": {
                "status": {"type": "string"},
                "timestamp": {"type": "string"},
                "service": {"type": "string"},
                "version": {"type": "string"},
                "uptime": {"type": "string"},
                "checks": {"type": "object", "additionalProperties": {"$ref": "#/definitions/handler.CheckResult"}}
            }
        },
        "handler.StatusResponse": {
            "type": "object",
            "properties": {
                "status": {"type": "string", "example": "connected"},
                "port": {"type": "string", "example": "/dev/ttyACM0"},
                "timestamp": {"type": "string"},
                "request_id": {"type": "string"}
            }
        },
        "utils.APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "details": {"type": "string"}
            }
        },
        "utils.APIResponse": {
            "type": "object",
            "properties": {
                "status": {"type": "string", "example": "success"},
                "message": {"type": "string"},
                "data": {},
                "error": {"$ref": "#/definitions/utils.APIError"},
                "timestamp": {"type": "string"},
                "request_id": {"type": "string"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "LED Relay API",
	Description:      "Sends single-character commands to a serial-attached LED controller and reports its connection status.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
