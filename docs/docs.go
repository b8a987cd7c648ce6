// Package docs registers the OpenAPI document served under /swagger/.
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
        "/command": {
            "post": {
                "description": "Accepts a JSON body with the command text, or raw audio bytes of a spoken command.\nAudio is transcribed first. The command is then run through the assistant pipeline\n(special-case heuristics, intent classification, OS action, response composition).",
                "consumes": [
                    "application/json",
                    "audio/wav",
                    "audio/ogg"
                ],
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "command"
                ],
                "summary": "Run a typed or spoken command",
                "parameters": [
                    {
                        "description": "Typed command. For audio, POST the bytes directly with the appropriate Content-Type.",
                        "name": "command",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/http.CommandRequest"
                        }
                    },
                    {
                        "type": "string",
                        "description": "Sender identifier (used with raw audio uploads)",
                        "name": "X-Nagato-Source",
                        "in": "header"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "Assistant reply",
                        "schema": {
                            "$ref": "#/definitions/message.Reply"
                        }
                    },
                    "400": {
                        "description": "Invalid request body",
                        "schema": {
                            "type": "string"
                        }
                    },
                    "500": {
                        "description": "Internal processing error",
                        "schema": {
                            "type": "string"
                        }
                    }
                }
            }
        }
    },
    "definitions": {
        "http.CommandRequest": {
            "type": "object",
            "properties": {
                "source": {
                    "type": "string",
                    "example": "phone"
                },
                "text": {
                    "type": "string",
                    "example": "open Safari and search for best pizza in Rome"
                }
            }
        },
        "message.AssistantResponse": {
            "type": "object",
            "properties": {
                "action_taken": {
                    "type": "string"
                },
                "message": {
                    "type": "string"
                },
                "success": {
                    "type": "boolean"
                },
                "voice_feedback": {
                    "type": "string"
                }
            }
        },
        "message.Reply": {
            "type": "object",
            "properties": {
                "error": {
                    "type": "string"
                },
                "path": {
                    "type": "string"
                },
                "request_id": {
                    "type": "string"
                },
                "response": {
                    "$ref": "#/definitions/message.AssistantResponse"
                },
                "text": {
                    "type": "string"
                },
                "transcript": {
                    "type": "string"
                }
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
	Title:            "Nagato Assistant API",
	Description:      "Send typed or spoken commands to the Nagato desktop assistant.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
