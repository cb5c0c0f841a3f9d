// Package websocket pushes upload progress and status messages to the
// browser sessions of the user who started each upload.
package websocket
