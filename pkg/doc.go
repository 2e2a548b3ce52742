// Package pkg groups the packages of the MCP server core.
//
// Dependencies run one way: protocol and errors at the bottom, then
// transport, logging, schema and observability, then server, and config on
// top. Nothing below server imports it.
package pkg
