// Package service holds the domain services that sit between the HTTP
// handlers / scheduled jobs and the repositories or remote collaborators.
package service

import "net/http"

// Result codes carried by Result.Code.
const (
	CodeSuccess    = 0
	CodeBadRequest = http.StatusBadRequest
	CodeInternal   = http.StatusInternalServerError
)

// Result is the tagged outcome returned by the analysis operations.  Code is
// CodeSuccess on success; otherwise Message explains the failure and Data is
// the zero value.
type Result[T any] struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    T      `json:"data"`
}

// Ok wraps data in a success result.
func Ok[T any](data T, msg string) Result[T] {
	return Result[T]{Code: CodeSuccess, Message: msg, Data: data}
}

// Fail builds an error result.
func Fail[T any](code int, msg string) Result[T] {
	return Result[T]{Code: code, Message: msg}
}

func (r Result[T]) OK() bool { return r.Code == CodeSuccess }

// HTTPStatus maps the result code onto a response status.
func (r Result[T]) HTTPStatus() int {
	if r.OK() {
		return http.StatusOK
	}
	if r.Code >= 400 && r.Code < 600 {
		return r.Code
	}
	return http.StatusInternalServerError
}
