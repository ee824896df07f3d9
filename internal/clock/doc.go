// Package clock provides a pausable stopwatch and a pausable sleep timer.
//
// Tests need to track both a wall-clock start time and an elapsed
// duration that can be suspended across job-control stops (SIGTSTP) and
// resumed without drift. Stopwatch handles the former; Timer handles
// the latter (slow-timeout periods, grace periods, retry backoff).
package clock
