package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Hostel Allocation API",
        "description": "Room and bed allocation with occupancy consistency guarantees",
        "version": "1.0.0"
    },
    "basePath": "/",
    "schemes": [
        "http",
        "https"
    ],
    "securityDefinitions": {
        "BearerAuth": {
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    },
    "tags": [
        {
            "name": "Allocations",
            "description": "Single and bulk bed allocation"
        },
        {
            "name": "Hostels",
            "description": "Hostel catalog and lifecycle"
        },
        {
            "name": "Rooms",
            "description": "Room activation state"
        },
        {
            "name": "Occupancy",
            "description": "Occupancy projections and exports"
        },
        {
            "name": "Admin",
            "description": "Operational checks"
        }
    ],
    "paths": {
        "/health": {
            "get": {
                "summary": "Liveness check",
                "responses": {
                    "200": {
                        "description": "OK"
                    }
                }
            }
        },
        "/ready": {
            "get": {
                "summary": "Readiness check",
                "responses": {
                    "200": {
                        "description": "Ready"
                    },
                    "503": {
                        "description": "A dependency is down"
                    }
                }
            }
        },
        "/metrics": {
            "get": {
                "summary": "Prometheus metrics",
                "produces": [
                    "text/plain"
                ],
                "responses": {
                    "200": {
                        "description": "OK"
                    }
                }
            }
        },
        "/api/v1/allocations": {
            "post": {
                "tags": [
                    "Allocations"
                ],
                "summary": "Allocate a bed to a student",
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "parameters": [
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/AllocateRequest"
                        }
                    }
                ],
                "responses": {
                    "201": {
                        "description": "Created",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "404": {
                        "description": "Room, hostel or student not found",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "409": {
                        "description": "Room inactive, room full, bed occupied or student already allocated",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "422": {
                        "description": "Invalid bed or unit addressing",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                }
            }
        },
        "/api/v1/allocations/{id}": {
            "get": {
                "tags": [
                    "Allocations"
                ],
                "summary": "Get an allocation",
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "required": true,
                        "type": "string",
                        "description": "Allocation ID"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "404": {
                        "description": "Allocation not found",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                }
            },
            "delete": {
                "tags": [
                    "Allocations"
                ],
                "summary": "Vacate an allocation",
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "required": true,
                        "type": "string",
                        "description": "Allocation ID"
                    }
                ],
                "responses": {
                    "204": {
                        "description": "Vacated"
                    },
                    "404": {
                        "description": "Allocation not found",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                }
            }
        },
        "/api/v1/students/{id}/allocation": {
            "put": {
                "tags": [
                    "Allocations"
                ],
                "summary": "Move a student's active allocation",
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "description": "The allocation id is preserved across the move.",
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "required": true,
                        "type": "string",
                        "description": "Student profile ID"
                    },
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/ReassignRequest"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "404": {
                        "description": "Allocation not found",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "409": {
                        "description": "Target not available",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                }
            }
        },
        "/api/v1/allocations/bulk": {
            "post": {
                "tags": [
                    "Allocations"
                ],
                "summary": "Allocate a roster batch",
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "parameters": [
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/BulkAllocationRequest"
                        }
                    }
                ],
                "responses": {
                    "201": {
                        "description": "Every row committed",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "207": {
                        "description": "Some rows committed",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "422": {
                        "description": "No row committed",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                }
            }
        },
        "/api/v1/allocations/bulk/upload": {
            "post": {
                "tags": [
                    "Allocations"
                ],
                "summary": "Upload a CSV or XLSX roster",
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "consumes": [
                    "multipart/form-data"
                ],
                "parameters": [
                    {
                        "name": "file",
                        "in": "formData",
                        "required": true,
                        "type": "file"
                    },
                    {
                        "name": "createProfiles",
                        "in": "formData",
                        "type": "boolean"
                    }
                ],
                "responses": {
                    "201": {
                        "description": "Every row committed",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "207": {
                        "description": "Some rows committed",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "422": {
                        "description": "No row committed",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                }
            }
        },
        "/api/v1/hostels": {
            "get": {
                "tags": [
                    "Hostels"
                ],
                "summary": "List hostels",
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "parameters": [
                    {
                        "name": "includeArchived",
                        "in": "query",
                        "required": false,
                        "type": "boolean",
                        "description": "Include archived hostels"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                }
            },
            "post": {
                "tags": [
                    "Hostels"
                ],
                "summary": "Create a hostel with units and rooms",
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "parameters": [
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/CreateHostelRequest"
                        }
                    }
                ],
                "responses": {
                    "201": {
                        "description": "Created",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "409": {
                        "description": "Duplicate room",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "422": {
                        "description": "Addressing does not match hostel type",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                }
            }
        },
        "/api/v1/hostels/{id}": {
            "get": {
                "tags": [
                    "Hostels"
                ],
                "summary": "Get a hostel layout",
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "required": true,
                        "type": "string",
                        "description": "Hostel ID"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "404": {
                        "description": "Hostel not found",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                }
            }
        },
        "/api/v1/hostels/{id}/rooms": {
            "get": {
                "tags": [
                    "Hostels"
                ],
                "summary": "List rooms of a hostel",
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "required": true,
                        "type": "string",
                        "description": "Hostel ID"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                }
            },
            "post": {
                "tags": [
                    "Hostels"
                ],
                "summary": "Add rooms to a hostel",
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "required": true,
                        "type": "string",
                        "description": "Hostel ID"
                    },
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/AddRoomsRequest"
                        }
                    }
                ],
                "responses": {
                    "201": {
                        "description": "Created",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                }
            }
        },
        "/api/v1/hostels/{id}/rooms/reconcile": {
            "put": {
                "tags": [
                    "Hostels"
                ],
                "summary": "Reconcile room states",
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "required": true,
                        "type": "string",
                        "description": "Hostel ID"
                    },
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/ReconcileRoomsRequest"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                }
            }
        },
        "/api/v1/hostels/{id}/archive": {
            "patch": {
                "tags": [
                    "Hostels"
                ],
                "summary": "Archive or unarchive a hostel",
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "required": true,
                        "type": "string",
                        "description": "Hostel ID"
                    },
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/ArchiveHostelRequest"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                }
            }
        },
        "/api/v1/hostels/{id}/reset-allocations": {
            "post": {
                "tags": [
                    "Hostels"
                ],
                "summary": "Remove every allocation of a hostel",
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "required": true,
                        "type": "string",
                        "description": "Hostel ID"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                }
            }
        },
        "/api/v1/rooms/{id}/deactivate": {
            "post": {
                "tags": [
                    "Rooms"
                ],
                "summary": "Deactivate a room",
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "description": "Removes every allocation of the room and remembers its capacity.",
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "required": true,
                        "type": "string",
                        "description": "Room ID"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                }
            }
        },
        "/api/v1/rooms/{id}/activate": {
            "post": {
                "tags": [
                    "Rooms"
                ],
                "summary": "Activate a room",
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "required": true,
                        "type": "string",
                        "description": "Room ID"
                    },
                    {
                        "name": "payload",
                        "in": "body",
                        "required": false,
                        "schema": {
                            "$ref": "#/definitions/ActivateRoomRequest"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                }
            }
        },
        "/api/v1/occupancy/hostels/{id}/sheet": {
            "get": {
                "tags": [
                    "Occupancy"
                ],
                "summary": "Occupancy sheet of a hostel",
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "required": true,
                        "type": "string",
                        "description": "Hostel ID"
                    },
                    {
                        "name": "format",
                        "in": "query",
                        "required": false,
                        "type": "string",
                        "description": "csv, xlsx or pdf; omit for JSON"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                }
            }
        },
        "/api/v1/occupancy/summary": {
            "get": {
                "tags": [
                    "Occupancy"
                ],
                "summary": "Degree by hostel allocation matrix",
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "parameters": [
                    {
                        "name": "format",
                        "in": "query",
                        "required": false,
                        "type": "string",
                        "description": "csv, xlsx or pdf; omit for JSON"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                }
            }
        },
        "/api/v1/occupancy/exports": {
            "post": {
                "tags": [
                    "Occupancy"
                ],
                "summary": "Store an export behind a signed link",
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "parameters": [
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/ExportRequest"
                        }
                    }
                ],
                "responses": {
                    "201": {
                        "description": "Created",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                }
            }
        },
        "/api/v1/occupancy/exports/download": {
            "get": {
                "tags": [
                    "Occupancy"
                ],
                "summary": "Download a stored export",
                "produces": [
                    "application/octet-stream"
                ],
                "parameters": [
                    {
                        "name": "token",
                        "in": "query",
                        "required": true,
                        "type": "string",
                        "description": "Signed download token"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "File"
                    },
                    "403": {
                        "description": "Invalid or expired token",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "404": {
                        "description": "Export removed",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                }
            }
        },
        "/api/v1/admin/consistency": {
            "get": {
                "tags": [
                    "Admin"
                ],
                "summary": "Verify allocation invariants across the store",
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                }
            }
        }
    },
    "definitions": {
        "AllocateRequest": {
            "type": "object",
            "properties": {
                "roomId": {
                    "type": "string"
                },
                "studentProfileId": {
                    "type": "string"
                },
                "bedNumber": {
                    "type": "integer"
                },
                "unitId": {
                    "type": "string"
                }
            },
            "required": [
                "roomId",
                "studentProfileId",
                "bedNumber"
            ]
        },
        "ReassignRequest": {
            "type": "object",
            "properties": {
                "roomId": {
                    "type": "string"
                },
                "bedNumber": {
                    "type": "integer"
                },
                "unitId": {
                    "type": "string"
                }
            },
            "required": [
                "roomId",
                "bedNumber"
            ]
        },
        "BulkAllocationRow": {
            "type": "object",
            "properties": {
                "email": {
                    "type": "string"
                },
                "fullName": {
                    "type": "string"
                },
                "rollNumber": {
                    "type": "string"
                },
                "degree": {
                    "type": "string"
                },
                "password": {
                    "type": "string"
                },
                "hostelId": {
                    "type": "string"
                },
                "unitNumber": {
                    "type": "string"
                },
                "roomNumber": {
                    "type": "string"
                },
                "bedNumber": {
                    "type": "integer"
                }
            }
        },
        "BulkAllocationRequest": {
            "type": "object",
            "properties": {
                "createProfiles": {
                    "type": "boolean"
                },
                "rows": {
                    "type": "array",
                    "items": {
                        "$ref": "#/definitions/BulkAllocationRow"
                    }
                }
            }
        },
        "RoomSpec": {
            "type": "object",
            "properties": {
                "roomNumber": {
                    "type": "string"
                },
                "capacity": {
                    "type": "integer"
                }
            }
        },
        "UnitSpec": {
            "type": "object",
            "properties": {
                "unitNumber": {
                    "type": "string"
                },
                "floor": {
                    "type": "integer"
                },
                "rooms": {
                    "type": "array",
                    "items": {
                        "$ref": "#/definitions/RoomSpec"
                    }
                }
            }
        },
        "CreateHostelRequest": {
            "type": "object",
            "properties": {
                "name": {
                    "type": "string"
                },
                "type": {
                    "type": "string",
                    "enum": [
                        "unit-based",
                        "room-only"
                    ]
                },
                "gender": {
                    "type": "string"
                },
                "units": {
                    "type": "array",
                    "items": {
                        "$ref": "#/definitions/UnitSpec"
                    }
                },
                "rooms": {
                    "type": "array",
                    "items": {
                        "$ref": "#/definitions/RoomSpec"
                    }
                }
            }
        },
        "AddRoomsRequest": {
            "type": "object",
            "properties": {
                "unitNumber": {
                    "type": "string"
                },
                "floor": {
                    "type": "integer"
                },
                "rooms": {
                    "type": "array",
                    "items": {
                        "$ref": "#/definitions/RoomSpec"
                    }
                }
            }
        },
        "ReconcileRoomState": {
            "type": "object",
            "properties": {
                "roomNumber": {
                    "type": "string"
                },
                "unitNumber": {
                    "type": "string"
                },
                "status": {
                    "type": "string",
                    "enum": [
                        "ACTIVE",
                        "INACTIVE"
                    ]
                },
                "capacity": {
                    "type": "integer"
                }
            }
        },
        "ReconcileRoomsRequest": {
            "type": "object",
            "properties": {
                "rooms": {
                    "type": "array",
                    "items": {
                        "$ref": "#/definitions/ReconcileRoomState"
                    }
                }
            }
        },
        "ArchiveHostelRequest": {
            "type": "object",
            "properties": {
                "archived": {
                    "type": "boolean"
                }
            }
        },
        "ActivateRoomRequest": {
            "type": "object",
            "properties": {
                "capacity": {
                    "type": "integer"
                }
            }
        },
        "ExportRequest": {
            "type": "object",
            "properties": {
                "type": {
                    "type": "string",
                    "enum": [
                        "sheet",
                        "summary"
                    ]
                },
                "hostelId": {
                    "type": "string"
                },
                "format": {
                    "type": "string",
                    "enum": [
                        "csv",
                        "xlsx",
                        "pdf"
                    ]
                }
            }
        },
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {
                    "type": "integer"
                },
                "page_size": {
                    "type": "integer"
                },
                "total_count": {
                    "type": "integer"
                }
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {
                    "type": "string"
                },
                "message": {
                    "type": "string"
                },
                "status": {
                    "type": "integer"
                }
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {
                    "type": "object"
                },
                "error": {
                    "$ref": "#/definitions/APIError"
                },
                "pagination": {
                    "$ref": "#/definitions/Pagination"
                },
                "meta": {
                    "type": "object"
                }
            }
        }
    }
}`

type swaggerDoc struct{}

// ReadDoc returns the Swagger document.
func (s *swaggerDoc) ReadDoc() string {
	return docTemplate
}

func init() {
	swag.Register(swag.Name, &swaggerDoc{})
}
