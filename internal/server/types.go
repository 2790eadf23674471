// Package server provides the HTTP surface for the upload service.
// It includes handlers, middleware, routes, and DTOs separated from domain types.
package server

// CreateVideoRequest is the HTTP request body for creating a catalog entry.
type CreateVideoRequest struct {
	// Title is the display title for the video.
	Title string `json:"title" validate:"required,max=256"`
	// Description is an optional longer description.
	Description string `json:"description" validate:"max=4096"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	// Error is the human-readable error message.
	Error string `json:"error"`
	// Code is the error code for programmatic handling.
	Code string `json:"code"`
}

// HealthResponse is the HTTP response for the health check endpoint.
type HealthResponse struct {
	// Status is the health status of the service.
	Status string `json:"status"`
}
