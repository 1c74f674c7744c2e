// Package logging is the ingest service's leveled logger, a thin layer
// over the standard log package.
//
// The level is read from the environment once, at first use: DEBUG=true
// forces debug, otherwise LOG_LEVEL names one of debug, info, warn, or
// error, and anything unrecognized means info. Each line carries a
// [LEVEL] tag after the standard timestamp prefix:
//
//	2026/01/07 14:02:11 [WARN] Store volume is 91% full
//
// Printf and Println skip the filter for lines that must always appear,
// and Fatal logs with a [FATAL] tag before terminating the process.
package logging
