// Package services implements the business logic between the transports
// (HTTP, CLI) and the upload pipeline.
//
// UploadService turns an uploaded file into a batch: it opens the workbook,
// runs the pipeline, writes the annotated copy to the results directory and
// records the outcome in the upload log and the metrics. Batches run either
// inline or on the job queue, in which case the user follows them through
// websocket status messages.
//
// HealthService reports liveness and readiness of the database, the job
// queue and the websocket hub.
package services
