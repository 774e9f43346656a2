package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Interview Rescheduler API",
        "description": "Receives extracted interviews, records drives and reschedules classes",
        "version": "1.0.0"
    },
    "basePath": "/",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Ingestion", "description": "Interview deliveries from the mailbox ingestor"},
        {"name": "Observability", "description": "Probes and metrics"}
    ],
    "paths": {
        "/health": {
            "get": {
                "tags": ["Observability"],
                "summary": "Liveness probe",
                "responses": {
                    "200": {"description": "OK with delivery counters in meta", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/ready": {
            "get": {
                "tags": ["Observability"],
                "summary": "Readiness probe",
                "responses": {
                    "200": {"description": "Ready"},
                    "503": {"description": "Database unavailable", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/metrics": {
            "get": {
                "tags": ["Observability"],
                "summary": "Prometheus metrics",
                "produces": ["text/plain"],
                "responses": {
                    "200": {"description": "Metrics in exposition format"}
                }
            }
        },
        "/update": {
            "post": {
                "tags": ["Ingestion"],
                "summary": "Ingest interviews and reschedule classes",
                "description": "Inserts unseen (student, company, datetime) drives and reschedules every subject in one transaction. Entries with unparseable timestamps are skipped.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [
                    {
                        "in": "body",
                        "name": "payload",
                        "required": true,
                        "schema": {"$ref": "#/definitions/DeliveryPayload"}
                    }
                ],
                "responses": {
                    "200": {"description": "Committed", "schema": {"$ref": "#/definitions/StatusResponse"}},
                    "400": {"description": "Malformed payload", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Another delivery is in progress", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "500": {"description": "Rolled back", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "InterviewEntry": {
            "type": "object",
            "required": ["company_name"],
            "properties": {
                "company_name": {"type": "string", "example": "Acme"},
                "interview_datetime": {"type": "string", "example": "2024-01-01T10:00:00"}
            }
        },
        "DeliveryPayload": {
            "type": "object",
            "additionalProperties": {
                "type": "array",
                "items": {"$ref": "#/definitions/InterviewEntry"}
            }
        },
        "StatusResponse": {
            "type": "object",
            "properties": {
                "status": {"type": "string", "example": "success"}
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
