// Package logging sets up structured JSON logging to a size-rotated file
// under ~/.mindual/logs/ and reads those files back for "mindual logs".
//
// CLI commands log to the file and to stderr. The MCP server logs to the
// file only, since stdout carries the protocol.
package logging
