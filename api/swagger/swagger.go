package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Fee Portal API",
        "description": "Fee management portal for students and administrators",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Authentication", "description": "Student and admin sessions"},
        {"name": "Students", "description": "Student roster management"},
        {"name": "Fees", "description": "Fee catalog and bulk charges"},
        {"name": "Ledger", "description": "Fee ledger and payments"},
        {"name": "Transactions", "description": "Append-only transaction log"},
        {"name": "Deadlines", "description": "Fee deadlines and reminders"},
        {"name": "Dashboard", "description": "Portal-wide aggregates"}
    ],
    "paths": {
        "/auth/student/login": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Authenticate student",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/StudentLoginRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Invalid credentials", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/auth/admin/login": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Authenticate administrator",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/AdminLoginRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Invalid credentials", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/auth/refresh": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Refresh access token",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/auth/logout": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Revoke refresh token",
                "responses": {
                    "204": {"description": "No Content"}
                }
            }
        },
        "/auth/change-password": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Change password",
                "responses": {
                    "204": {"description": "No Content"}
                }
            }
        },
        "/auth/me": {
            "get": {
                "tags": ["Authentication"],
                "summary": "Current account info",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/students": {
            "get": {
                "tags": ["Students"],
                "summary": "List students",
                "parameters": [
                    {"name": "search", "in": "query", "type": "string"},
                    {"name": "branch", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "limit", "in": "query", "type": "integer"},
                    {"name": "sort", "in": "query", "type": "string"},
                    {"name": "order", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Students"],
                "summary": "Register student",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateStudentRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Duplicate student id or pin", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/students/{id}": {
            "get": {
                "tags": ["Students"],
                "summary": "Get student",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "put": {
                "tags": ["Students"],
                "summary": "Update student",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/UpdateStudentRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "delete": {
                "tags": ["Students"],
                "summary": "Delete student",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "No Content"}
                }
            }
        },
        "/students/bulk-delete": {
            "post": {
                "tags": ["Students"],
                "summary": "Delete a set of students",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/students/{id}/fees": {
            "get": {
                "tags": ["Ledger"],
                "summary": "Get a student's fee ledger",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/students/{id}/payments": {
            "post": {
                "tags": ["Ledger"],
                "summary": "Pay a fee",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/PaymentRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Amount exceeds due", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "No matching fee entry", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/students/{id}/receipts/{txn}": {
            "get": {
                "tags": ["Ledger"],
                "summary": "Get a signed receipt download link",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "txn", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/receipts/download": {
            "get": {
                "tags": ["Ledger"],
                "summary": "Download a receipt by signed token",
                "parameters": [
                    {"name": "token", "in": "query", "required": true, "type": "string"}
                ],
                "produces": ["application/pdf"],
                "responses": {
                    "200": {"description": "PDF receipt"}
                }
            }
        },
        "/students/{id}/transactions": {
            "get": {
                "tags": ["Transactions"],
                "summary": "List a student's transactions",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "type", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/fees": {
            "get": {
                "tags": ["Fees"],
                "summary": "List the fee catalog",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Fees"],
                "summary": "Add a fee catalog entry",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateFeeRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/fees/bulk-charge": {
            "post": {
                "tags": ["Fees"],
                "summary": "Apply a fee or fine to a set of students",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/BulkChargeRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/fees/bulk-remove": {
            "post": {
                "tags": ["Fees"],
                "summary": "Remove a fee from a set of students",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/BulkRemoveRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/transactions": {
            "get": {
                "tags": ["Transactions"],
                "summary": "List transactions",
                "parameters": [
                    {"name": "student_id", "in": "query", "type": "string"},
                    {"name": "type", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/transactions/export": {
            "get": {
                "tags": ["Transactions"],
                "summary": "Export transactions as CSV",
                "produces": ["text/csv"],
                "responses": {
                    "200": {"description": "CSV document"}
                }
            }
        },
        "/deadlines": {
            "get": {
                "tags": ["Deadlines"],
                "summary": "List fee deadlines",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Deadlines"],
                "summary": "Create a fee deadline",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateDeadlineRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/deadlines/{id}": {
            "delete": {
                "tags": ["Deadlines"],
                "summary": "Delete a fee deadline",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "No Content"}
                }
            }
        },
        "/deadlines/{id}/notify": {
            "post": {
                "tags": ["Deadlines"],
                "summary": "Dispatch reminders for a deadline",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "202": {"description": "Accepted", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/dashboard/summary": {
            "get": {
                "tags": ["Dashboard"],
                "summary": "Get portal-wide aggregates",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/dashboard/metrics": {
            "get": {
                "tags": ["Dashboard"],
                "summary": "Get a runtime metrics snapshot",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "StudentLoginRequest": {
            "type": "object",
            "properties": {
                "student_id": {"type": "string"},
                "password": {"type": "string"}
            },
            "required": ["student_id", "password"]
        },
        "AdminLoginRequest": {
            "type": "object",
            "properties": {
                "admin_id": {"type": "string"},
                "password": {"type": "string"}
            },
            "required": ["admin_id", "password"]
        },
        "CreateStudentRequest": {
            "type": "object",
            "properties": {
                "student_id": {"type": "string"},
                "password": {"type": "string"},
                "name": {"type": "string"},
                "pin": {"type": "string"},
                "course": {"type": "string"},
                "branch": {"type": "string"},
                "mobile": {"type": "string"},
                "photo_color": {"type": "string"}
            },
            "required": ["student_id", "password", "name", "pin", "course", "branch", "mobile"]
        },
        "UpdateStudentRequest": {
            "type": "object",
            "properties": {
                "student_id": {"type": "string"},
                "name": {"type": "string"},
                "pin": {"type": "string"},
                "course": {"type": "string"},
                "branch": {"type": "string"},
                "mobile": {"type": "string"},
                "photo_color": {"type": "string"}
            },
            "required": ["student_id", "name", "pin", "course", "branch", "mobile"]
        },
        "PaymentRequest": {
            "type": "object",
            "properties": {
                "fee_name": {"type": "string"},
                "year": {"type": "string"},
                "amount": {"type": "integer"},
                "method": {"type": "string", "enum": ["Cash", "Card", "UPI", "NetBanking"]}
            },
            "required": ["fee_name", "year", "amount", "method"]
        },
        "CreateFeeRequest": {
            "type": "object",
            "properties": {
                "name": {"type": "string"},
                "amount": {"type": "integer"}
            },
            "required": ["name", "amount"]
        },
        "BulkChargeRequest": {
            "type": "object",
            "properties": {
                "student_ids": {"type": "array", "items": {"type": "string"}},
                "fee_name": {"type": "string"},
                "year": {"type": "string"},
                "amount": {"type": "integer"},
                "kind": {"type": "string", "enum": ["fee", "fine"]}
            },
            "required": ["student_ids", "fee_name", "year", "amount", "kind"]
        },
        "BulkRemoveRequest": {
            "type": "object",
            "properties": {
                "student_ids": {"type": "array", "items": {"type": "string"}},
                "fee_name": {"type": "string"},
                "year": {"type": "string"}
            },
            "required": ["student_ids", "fee_name", "year"]
        },
        "CreateDeadlineRequest": {
            "type": "object",
            "properties": {
                "branch": {"type": "string"},
                "fee_type": {"type": "string"},
                "deadline": {"type": "string", "format": "date-time"}
            },
            "required": ["branch", "fee_type", "deadline"]
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
