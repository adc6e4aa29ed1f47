// Package sessions implements the lifecycle core of a feedback round:
// the per-session participant state machine and the concurrent registry
// of live sessions.
//
// A Session is a plain value with no internal locking. All concurrent
// access goes through a Registry, which serializes mutation per session
// id while letting independent sessions proceed in parallel.
package sessions
