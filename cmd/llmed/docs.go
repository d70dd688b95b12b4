package main

// General API documentation for swaggo. Regenerate internal/httpapi/docs with:
//
//	swag init -g cmd/llmed/docs.go -d ./,./internal/httpapi -o internal/httpapi/docs
//
// @title           llmed API
// @version         1.0
// @description     HTTP API for local model lifecycle management and inference dispatch.
//
// @contact.name   llmed maintainers
//
// @license.name   MIT
// @license.url    https://opensource.org/licenses/MIT
//
// @BasePath  /
//
// @schemes http
