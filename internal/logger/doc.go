// Package logger provides a small wrapper around zap to offer:
//   - a global sugared logger writing to the configured sinks,
//   - sink selection (console, syslog, size/count-bounded rotating file),
//   - context helpers (ToContext/FromContext/WithName/WithKV),
//   - level configuration and parsing utilities,
//   - convenience functions (Infof, ErrorKV, etc.).
//
// All services accept a context and extract the logger from it, enabling
// scoped, structured logging throughout the codebase.
package logger
