// Package processes supervises the single local backend child: it picks a
// loopback port, spawns the runtime with its output appended to a log file,
// tracks the child in a one-entry slot and kills it when the host exits.
package processes
