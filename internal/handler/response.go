package handler

import (
	"github.com/gin-gonic/gin"

	apperrors "github.com/jwalitptl/scribe/pkg/errors"
)

type Response struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

func NewSuccessResponse(data interface{}) *Response {
	return &Response{
		Status: "success",
		Data:   data,
	}
}

func NewErrorResponse(message string) *Response {
	return &Response{
		Status:  "error",
		Message: message,
	}
}

// RenderError answers with the agent's envelope and a message fit for the UI.
func RenderError(c *gin.Context, err error) {
	c.AbortWithStatusJSON(apperrors.HTTPStatus(err), NewErrorResponse(apperrors.UserMessage(err)))
}

// DetailResponse is the records API's error body.
type DetailResponse struct {
	Detail string `json:"detail"`
}

// RenderDetail answers with {"detail": ...}. Internal errors never leak.
func RenderDetail(c *gin.Context, err error) {
	status := apperrors.HTTPStatus(err)
	detail := "Internal server error"
	if appErr, ok := apperrors.As(err); ok && status < 500 {
		detail = appErr.Message
	} else if status == 504 {
		detail = "Request timeout"
	}
	c.AbortWithStatusJSON(status, DetailResponse{Detail: detail})
}
