// Package logger provides structured logging for tablemut using zerolog.
//
// It supports JSON and console output, log level configuration and
// component-scoped loggers. Pipeline stages log under their stage name so
// shape warnings can be traced back to the mutation that produced them.
//
// # Configuration
//
//	logging:
//	  level: "info"
//	  format: "json"
//
// # Usage
//
//	log := logger.WithComponent("csvtable")
//	log.Warn("header not found", logger.Fields(logger.FieldSource, path))
package logger
