// Package dto provides Data Transfer Objects for API requests/responses.
package dto

// Response is the success envelope shared by every endpoint.
type Response struct {
	Status  string `json:"status"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
}

// Success wraps data in the success envelope.
func Success(data any, message string) Response {
	return Response{Status: "success", Data: data, Message: message}
}

// HistoryQuery limits audit history listings.
type HistoryQuery struct {
	Limit int `form:"limit" binding:"omitempty,min=1,max=500"`
}
