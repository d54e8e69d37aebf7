// Package state holds the most recent sensor reading in memory.
// A single store owns the reading; writers replace it whole and readers get
// consistent snapshots, so a temperature from one message is never paired
// with a humidity from another.
package state
