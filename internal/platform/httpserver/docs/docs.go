// Package docs registers the swagger document served under /swagger/.
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
        "/campaigns": {
            "post": {
                "summary": "Create campaign",
                "tags": [
                    "campaigns"
                ],
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "201": {
                        "description": "OK"
                    },
                    "404": {
                        "description": "Not Found"
                    },
                    "409": {
                        "description": "Conflict"
                    },
                    "422": {
                        "description": "Unprocessable Entity"
                    }
                },
                "parameters": [
                    {
                        "description": "request body",
                        "name": "body",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "type": "object"
                        }
                    }
                ]
            }
        },
        "/campaigns/{campaign_id}": {
            "get": {
                "summary": "Get campaign",
                "tags": [
                    "campaigns"
                ],
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "OK"
                    },
                    "404": {
                        "description": "Not Found"
                    },
                    "409": {
                        "description": "Conflict"
                    },
                    "422": {
                        "description": "Unprocessable Entity"
                    }
                },
                "parameters": [
                    {
                        "type": "string",
                        "name": "campaign_id",
                        "in": "path",
                        "required": true
                    }
                ]
            },
            "delete": {
                "summary": "Delete campaign and its activations",
                "tags": [
                    "campaigns"
                ],
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "204": {
                        "description": "OK"
                    },
                    "404": {
                        "description": "Not Found"
                    },
                    "409": {
                        "description": "Conflict"
                    },
                    "422": {
                        "description": "Unprocessable Entity"
                    }
                },
                "parameters": [
                    {
                        "type": "string",
                        "name": "campaign_id",
                        "in": "path",
                        "required": true
                    }
                ]
            }
        },
        "/campaigns/{campaign_id}/cancel": {
            "post": {
                "summary": "Cancel campaign",
                "tags": [
                    "campaigns"
                ],
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "OK"
                    },
                    "404": {
                        "description": "Not Found"
                    },
                    "409": {
                        "description": "Conflict"
                    },
                    "422": {
                        "description": "Unprocessable Entity"
                    }
                },
                "parameters": [
                    {
                        "type": "string",
                        "name": "campaign_id",
                        "in": "path",
                        "required": true
                    },
                    {
                        "description": "request body",
                        "name": "body",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "type": "object"
                        }
                    }
                ]
            }
        },
        "/campaigns/{campaign_id}/recompute-status": {
            "post": {
                "summary": "Recompute campaign status",
                "tags": [
                    "campaigns"
                ],
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "OK"
                    },
                    "404": {
                        "description": "Not Found"
                    },
                    "409": {
                        "description": "Conflict"
                    },
                    "422": {
                        "description": "Unprocessable Entity"
                    }
                },
                "parameters": [
                    {
                        "type": "string",
                        "name": "campaign_id",
                        "in": "path",
                        "required": true
                    }
                ]
            }
        },
        "/campaigns/{campaign_id}/activations": {
            "get": {
                "summary": "List campaign activations",
                "tags": [
                    "activations"
                ],
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "OK"
                    },
                    "404": {
                        "description": "Not Found"
                    },
                    "409": {
                        "description": "Conflict"
                    },
                    "422": {
                        "description": "Unprocessable Entity"
                    }
                },
                "parameters": [
                    {
                        "type": "string",
                        "name": "campaign_id",
                        "in": "path",
                        "required": true
                    }
                ]
            },
            "post": {
                "summary": "Create activation",
                "tags": [
                    "activations"
                ],
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "201": {
                        "description": "OK"
                    },
                    "404": {
                        "description": "Not Found"
                    },
                    "409": {
                        "description": "Conflict"
                    },
                    "422": {
                        "description": "Unprocessable Entity"
                    }
                },
                "parameters": [
                    {
                        "type": "string",
                        "name": "campaign_id",
                        "in": "path",
                        "required": true
                    },
                    {
                        "description": "request body",
                        "name": "body",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "type": "object"
                        }
                    }
                ]
            }
        },
        "/activations/{activation_id}": {
            "get": {
                "summary": "Get activation",
                "tags": [
                    "activations"
                ],
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "OK"
                    },
                    "404": {
                        "description": "Not Found"
                    },
                    "409": {
                        "description": "Conflict"
                    },
                    "422": {
                        "description": "Unprocessable Entity"
                    }
                },
                "parameters": [
                    {
                        "type": "string",
                        "name": "activation_id",
                        "in": "path",
                        "required": true
                    }
                ]
            },
            "put": {
                "summary": "Edit activation",
                "tags": [
                    "activations"
                ],
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "OK"
                    },
                    "404": {
                        "description": "Not Found"
                    },
                    "409": {
                        "description": "Conflict"
                    },
                    "422": {
                        "description": "Unprocessable Entity"
                    }
                },
                "parameters": [
                    {
                        "type": "string",
                        "name": "activation_id",
                        "in": "path",
                        "required": true
                    },
                    {
                        "description": "request body",
                        "name": "body",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "type": "object"
                        }
                    }
                ]
            },
            "delete": {
                "summary": "Delete activation",
                "tags": [
                    "activations"
                ],
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "204": {
                        "description": "OK"
                    },
                    "404": {
                        "description": "Not Found"
                    },
                    "409": {
                        "description": "Conflict"
                    },
                    "422": {
                        "description": "Unprocessable Entity"
                    }
                },
                "parameters": [
                    {
                        "type": "string",
                        "name": "activation_id",
                        "in": "path",
                        "required": true
                    }
                ]
            }
        },
        "/activations/{activation_id}/start": {
            "post": {
                "summary": "Start activation",
                "tags": [
                    "activations"
                ],
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "OK"
                    },
                    "404": {
                        "description": "Not Found"
                    },
                    "409": {
                        "description": "Conflict"
                    },
                    "422": {
                        "description": "Unprocessable Entity"
                    }
                },
                "parameters": [
                    {
                        "type": "string",
                        "name": "activation_id",
                        "in": "path",
                        "required": true
                    },
                    {
                        "type": "string",
                        "name": "X-Agent-Id",
                        "in": "header",
                        "required": false
                    }
                ]
            }
        },
        "/activations/{activation_id}/suspend": {
            "post": {
                "summary": "Suspend activation",
                "tags": [
                    "activations"
                ],
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "OK"
                    },
                    "404": {
                        "description": "Not Found"
                    },
                    "409": {
                        "description": "Conflict"
                    },
                    "422": {
                        "description": "Unprocessable Entity"
                    }
                },
                "parameters": [
                    {
                        "type": "string",
                        "name": "activation_id",
                        "in": "path",
                        "required": true
                    },
                    {
                        "type": "string",
                        "name": "X-Agent-Id",
                        "in": "header",
                        "required": false
                    }
                ]
            }
        },
        "/activations/{activation_id}/resume": {
            "post": {
                "summary": "Resume activation",
                "tags": [
                    "activations"
                ],
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "OK"
                    },
                    "404": {
                        "description": "Not Found"
                    },
                    "409": {
                        "description": "Conflict"
                    },
                    "422": {
                        "description": "Unprocessable Entity"
                    }
                },
                "parameters": [
                    {
                        "type": "string",
                        "name": "activation_id",
                        "in": "path",
                        "required": true
                    },
                    {
                        "type": "string",
                        "name": "X-Agent-Id",
                        "in": "header",
                        "required": false
                    }
                ]
            }
        },
        "/activations/{activation_id}/finish": {
            "post": {
                "summary": "Finish activation",
                "tags": [
                    "activations"
                ],
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "OK"
                    },
                    "404": {
                        "description": "Not Found"
                    },
                    "409": {
                        "description": "Conflict"
                    },
                    "422": {
                        "description": "Unprocessable Entity"
                    }
                },
                "parameters": [
                    {
                        "type": "string",
                        "name": "activation_id",
                        "in": "path",
                        "required": true
                    },
                    {
                        "type": "string",
                        "name": "X-Agent-Id",
                        "in": "header",
                        "required": false
                    }
                ]
            }
        },
        "/activations/{activation_id}/proofs/validate": {
            "post": {
                "summary": "Validate activation proofs",
                "tags": [
                    "activations"
                ],
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "OK"
                    },
                    "404": {
                        "description": "Not Found"
                    },
                    "409": {
                        "description": "Conflict"
                    },
                    "422": {
                        "description": "Unprocessable Entity"
                    }
                },
                "parameters": [
                    {
                        "type": "string",
                        "name": "activation_id",
                        "in": "path",
                        "required": true
                    }
                ]
            }
        },
        "/agents": {
            "post": {
                "summary": "Register agent",
                "tags": [
                    "agents"
                ],
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "201": {
                        "description": "OK"
                    },
                    "404": {
                        "description": "Not Found"
                    },
                    "409": {
                        "description": "Conflict"
                    },
                    "422": {
                        "description": "Unprocessable Entity"
                    }
                },
                "parameters": [
                    {
                        "description": "request body",
                        "name": "body",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "type": "object"
                        }
                    }
                ]
            }
        },
        "/agents/conflicts": {
            "get": {
                "summary": "Check agent scheduling conflicts",
                "tags": [
                    "agents"
                ],
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "OK"
                    },
                    "404": {
                        "description": "Not Found"
                    },
                    "409": {
                        "description": "Conflict"
                    },
                    "422": {
                        "description": "Unprocessable Entity"
                    }
                },
                "parameters": [
                    {
                        "type": "string",
                        "name": "date",
                        "in": "query",
                        "required": false
                    },
                    {
                        "type": "string",
                        "name": "agent_id",
                        "in": "query",
                        "required": false
                    },
                    {
                        "type": "string",
                        "name": "exclude_activation_id",
                        "in": "query",
                        "required": false
                    },
                    {
                        "type": "string",
                        "name": "start_time",
                        "in": "query",
                        "required": false
                    },
                    {
                        "type": "string",
                        "name": "end_time",
                        "in": "query",
                        "required": false
                    }
                ]
            }
        },
        "/agents/available": {
            "get": {
                "summary": "List agents free on a date",
                "tags": [
                    "agents"
                ],
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "OK"
                    },
                    "404": {
                        "description": "Not Found"
                    },
                    "409": {
                        "description": "Conflict"
                    },
                    "422": {
                        "description": "Unprocessable Entity"
                    }
                },
                "parameters": [
                    {
                        "type": "string",
                        "name": "date",
                        "in": "query",
                        "required": false
                    },
                    {
                        "type": "string",
                        "name": "activation_id",
                        "in": "query",
                        "required": false
                    },
                    {
                        "type": "string",
                        "name": "start_time",
                        "in": "query",
                        "required": false
                    },
                    {
                        "type": "string",
                        "name": "end_time",
                        "in": "query",
                        "required": false
                    }
                ]
            }
        },
        "/agents/{agent_id}/positions": {
            "post": {
                "summary": "Record agent position",
                "tags": [
                    "agents"
                ],
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "201": {
                        "description": "OK"
                    },
                    "404": {
                        "description": "Not Found"
                    },
                    "409": {
                        "description": "Conflict"
                    },
                    "422": {
                        "description": "Unprocessable Entity"
                    }
                },
                "parameters": [
                    {
                        "type": "string",
                        "name": "agent_id",
                        "in": "path",
                        "required": true
                    },
                    {
                        "description": "request body",
                        "name": "body",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "type": "object"
                        }
                    }
                ]
            },
            "get": {
                "summary": "List latest agent positions",
                "tags": [
                    "agents"
                ],
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "OK"
                    },
                    "404": {
                        "description": "Not Found"
                    },
                    "409": {
                        "description": "Conflict"
                    },
                    "422": {
                        "description": "Unprocessable Entity"
                    }
                },
                "parameters": [
                    {
                        "type": "string",
                        "name": "agent_id",
                        "in": "path",
                        "required": true
                    },
                    {
                        "type": "string",
                        "name": "limit",
                        "in": "query",
                        "required": false
                    }
                ]
            }
        },
        "/incidents": {
            "post": {
                "summary": "Report incident",
                "tags": [
                    "incidents"
                ],
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "201": {
                        "description": "OK"
                    },
                    "404": {
                        "description": "Not Found"
                    },
                    "409": {
                        "description": "Conflict"
                    },
                    "422": {
                        "description": "Unprocessable Entity"
                    }
                },
                "parameters": [
                    {
                        "type": "string",
                        "name": "X-Agent-Id",
                        "in": "header",
                        "required": false
                    },
                    {
                        "description": "request body",
                        "name": "body",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "type": "object"
                        }
                    }
                ]
            }
        },
        "/maintenance/sweep-expired": {
            "post": {
                "summary": "Complete expired campaigns and activations",
                "tags": [
                    "maintenance"
                ],
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "OK"
                    },
                    "404": {
                        "description": "Not Found"
                    },
                    "409": {
                        "description": "Conflict"
                    },
                    "422": {
                        "description": "Unprocessable Entity"
                    }
                },
                "parameters": [
                    {
                        "type": "string",
                        "name": "today",
                        "in": "query",
                        "required": false
                    }
                ]
            }
        }
    }
}`

var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/v1",
	Schemes:          []string{},
	Title:            "fieldops activation API",
	Description:      "Campaign and activation lifecycle for field marketing operations.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
