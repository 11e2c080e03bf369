// Package service runs a watched command and delivers its report.
//
// Runner is a thin, opinionated wrapper around os/exec:
//   - starts the process with stdin connected to the null device
//   - captures combined stdout and stderr into a temporary file
//   - exposes a channel of Result values
//   - terminates the process with SIGTERM on timeout and kills it after KillDelay
//
// Watcher ties a single run together:
//
//	Watcher.Watch        Runner          classify      report       sinks
//	     |--- Run() ------->|                |             |            |
//	     |<-- Result -------|                |             |            |
//	     |--- Classify() ------------------->|             |            |
//	     |--- Build() -------------------------------------->|          |
//	     |--- Append()/Send() ---------------------------------------->|
//
// Invariants:
//   - At most one command per Runner at a time.
//   - Each execution produces one terminal Result.
//   - The captured output is removed by Result.Close on every path.
//   - Log and mail delivery are attempted independently of each other.
package service
