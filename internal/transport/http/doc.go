// Package http implements the HTTP handlers of the mass upload service.
// Handlers are thin: they parse and validate the request, call the service
// layer and render the response.
//
// # Routes
//
//	GET  /api/upload-types                   registered upload types and their columns
//	GET  /api/upload-types/{type}/template   blank workbook for a type
//	POST /api/uploads/{type}                 run a batch (multipart "file"; ?async=true queues it)
//	GET  /api/uploads/jobs/{id}              state of a queued batch
//	GET  /api/uploads/{id}/annotated         annotated copy of a finished batch
//	GET  /api/uploads/history                the caller's recent batches
//	GET  /api/health, /api/health/live, /api/health/ready
//	GET  /metrics                            Prometheus exposition
//
// Upload routes require the X-User-ID header.
//
// # Error Handling
//
// Service errors are translated into APIErrors and rendered as RFC 7807
// problem details by the shared ErrorHandler:
//
//	{
//	    "type": "/errors/not-found",
//	    "title": "Not Found",
//	    "status": 404,
//	    "detail": "Upload type BOGUS is not known",
//	    "error_code": "UNKNOWN_UPLOAD_TYPE"
//	}
package http
