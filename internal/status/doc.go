// Package status fetches the live game state from a server's status API and
// classifies its population into a three-level indicator.
//
// A GameState is only returned when every field validated; partial records are
// never handed to callers.
package status
