package main

// General API documentation for swaggo. Run `make swagger-gen` to generate docs.
//
// @title           llamad API
// @version         1.0
// @description     HTTP API over a local llama.cpp model: completion and chat, blocking or streamed.
//
// @contact.name   llamad maintainers
// @contact.url    https://github.com/your-org/llamad
//
// @license.name   MIT
// @license.url    https://opensource.org/licenses/MIT
//
// @BasePath  /
//
// @schemes http
