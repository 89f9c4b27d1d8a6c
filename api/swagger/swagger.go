package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "FieldVue Dispatch API",
        "description": "Interval layout and drag reassignment engine for the dispatch timeline",
        "version": "0.1.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Board", "description": "Derived board projection"},
        {"name": "Appointments", "description": "Appointment reads and mutations"},
        {"name": "Drag", "description": "Drag session lifecycle"},
        {"name": "Resources", "description": "Resource roster and feeds"},
        {"name": "Exports", "description": "Asynchronous day-sheet exports"}
    ],
    "paths": {
        "/board": {
            "get": {
                "tags": ["Board"],
                "summary": "Current board view",
                "parameters": [
                    {"name": "date", "in": "query", "type": "string", "format": "date", "description": "Focus day; extends the window when outside it"},
                    {"name": "from", "in": "query", "type": "string", "format": "date"},
                    {"name": "to", "in": "query", "type": "string", "format": "date"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/board/virtualization": {
            "get": {
                "tags": ["Board"],
                "summary": "Visible resource rows for a viewport",
                "parameters": [
                    {"name": "scroll_top", "in": "query", "type": "number"},
                    {"name": "view_height", "in": "query", "required": true, "type": "number"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/board/svg": {
            "get": {
                "tags": ["Board"],
                "summary": "Static SVG snapshot of the board",
                "produces": ["image/svg+xml"],
                "responses": {
                    "200": {"description": "SVG document"}
                }
            }
        },
        "/board/refresh": {
            "post": {
                "tags": ["Board"],
                "summary": "Reconcile local board state against the data source",
                "responses": {
                    "204": {"description": "No Content"}
                }
            }
        },
        "/appointments": {
            "get": {
                "tags": ["Appointments"],
                "summary": "List appointments",
                "parameters": [
                    {"name": "resourceId", "in": "query", "type": "string"},
                    {"name": "status", "in": "query", "type": "string"},
                    {"name": "priority", "in": "query", "type": "string"},
                    {"name": "from", "in": "query", "type": "string"},
                    {"name": "to", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Appointments"],
                "summary": "Create appointment",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateAppointmentRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/appointments/unassigned": {
            "get": {
                "tags": ["Appointments"],
                "summary": "List the unassigned pool in its current order",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/appointments/{id}": {
            "get": {
                "tags": ["Appointments"],
                "summary": "Get appointment",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "delete": {
                "tags": ["Appointments"],
                "summary": "Delete appointment",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "No Content"}
                }
            }
        },
        "/appointments/{id}/move": {
            "post": {
                "tags": ["Appointments"],
                "summary": "Reassign and retime an appointment",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/MoveAppointmentRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Remote rejected", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "502": {"description": "Transport failure", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/appointments/{id}/assign": {
            "post": {
                "tags": ["Appointments"],
                "summary": "Schedule a pool appointment onto a resource",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/AssignAppointmentRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/appointments/{id}/unassign": {
            "post": {
                "tags": ["Appointments"],
                "summary": "Return an appointment to the pool",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/appointments/{id}/retime": {
            "post": {
                "tags": ["Appointments"],
                "summary": "Change an appointment's times",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/RetimeAppointmentRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/appointments/{id}/reorder": {
            "post": {
                "tags": ["Appointments"],
                "summary": "Reposition an item inside the unassigned pool",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/PoolReorderRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/drag/start": {
            "post": {
                "tags": ["Drag"],
                "summary": "Open a drag session",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/BeginDragRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Appointment already dragging", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/drag/{id}": {
            "get": {
                "tags": ["Drag"],
                "summary": "Inspect an open drag session",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/drag/{id}/move": {
            "post": {
                "tags": ["Drag"],
                "summary": "Stream a pointer sample into a session",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/MoveDragRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/drag/{id}/drop": {
            "post": {
                "tags": ["Drag"],
                "summary": "End a session at the current pointer position",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/DropDragRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Invalid drop", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/drag/{id}/cancel": {
            "post": {
                "tags": ["Drag"],
                "summary": "Abandon a session",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "No Content"}
                }
            }
        },
        "/resources": {
            "get": {
                "tags": ["Resources"],
                "summary": "List resources",
                "parameters": [
                    {"name": "search", "in": "query", "type": "string"},
                    {"name": "active", "in": "query", "type": "boolean"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/resources/{id}": {
            "get": {
                "tags": ["Resources"],
                "summary": "Get resource",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/resources/{id}/feed.ics": {
            "get": {
                "tags": ["Resources"],
                "summary": "iCalendar feed for one resource",
                "produces": ["text/calendar"],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "iCalendar document"}
                }
            }
        },
        "/exports/day-sheet": {
            "post": {
                "tags": ["Exports"],
                "summary": "Queue a day-sheet export",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/DaySheetRequest"}}
                ],
                "responses": {
                    "202": {"description": "Accepted", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/exports/{id}": {
            "get": {
                "tags": ["Exports"],
                "summary": "Inspect an export job",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/exports/{id}/download": {
            "get": {
                "tags": ["Exports"],
                "summary": "Download a completed export",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "File attachment"}
                }
            }
        }
    },
    "definitions": {
        "CreateAppointmentRequest": {
            "type": "object",
            "required": ["title"],
            "properties": {
                "resource_id": {"type": "string"},
                "title": {"type": "string"},
                "start": {"type": "string", "format": "date-time"},
                "end": {"type": "string", "format": "date-time"},
                "priority": {"type": "string", "enum": ["low", "medium", "high", "urgent"]},
                "lat": {"type": "number"},
                "lng": {"type": "number"},
                "recurrence": {"type": "string"}
            }
        },
        "MoveAppointmentRequest": {
            "type": "object",
            "required": ["resource_id", "start", "end"],
            "properties": {
                "resource_id": {"type": "string"},
                "start": {"type": "string", "format": "date-time"},
                "end": {"type": "string", "format": "date-time"}
            }
        },
        "AssignAppointmentRequest": {
            "type": "object",
            "required": ["resource_id", "start", "end"],
            "properties": {
                "resource_id": {"type": "string"},
                "start": {"type": "string", "format": "date-time"},
                "end": {"type": "string", "format": "date-time"}
            }
        },
        "RetimeAppointmentRequest": {
            "type": "object",
            "required": ["start", "end"],
            "properties": {
                "start": {"type": "string", "format": "date-time"},
                "end": {"type": "string", "format": "date-time"}
            }
        },
        "PoolReorderRequest": {
            "type": "object",
            "properties": {
                "to_index": {"type": "integer"}
            }
        },
        "BeginDragRequest": {
            "type": "object",
            "required": ["appointment_id", "view_width", "view_height"],
            "properties": {
                "appointment_id": {"type": "string"},
                "pointer": {"$ref": "#/definitions/PointerPosition"},
                "scroll_left": {"type": "number"},
                "scroll_top": {"type": "number"},
                "view_width": {"type": "number"},
                "view_height": {"type": "number"}
            }
        },
        "MoveDragRequest": {
            "type": "object",
            "properties": {
                "pointer": {"$ref": "#/definitions/PointerPosition"},
                "over_pool": {"type": "boolean"}
            }
        },
        "DropDragRequest": {
            "type": "object",
            "properties": {
                "pointer": {"$ref": "#/definitions/PointerPosition"},
                "over_pool": {"type": "boolean"},
                "pool_index": {"type": "integer"}
            }
        },
        "PointerPosition": {
            "type": "object",
            "properties": {
                "x": {"type": "number"},
                "y": {"type": "number"}
            }
        },
        "DaySheetRequest": {
            "type": "object",
            "required": ["date", "format"],
            "properties": {
                "date": {"type": "string"},
                "format": {"type": "string", "enum": ["csv", "pdf"]},
                "resource_id": {"type": "string"}
            }
        },
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "page_size": {"type": "integer"},
                "total_count": {"type": "integer"}
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "pagination": {"$ref": "#/definitions/Pagination"},
                "meta": {"type": "object"}
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
