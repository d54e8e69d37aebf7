// Package protocol implements parsing of the line-oriented device protocol.
// It classifies each received line into one of the supported message shapes
// (colon-delimited reading, JSON-like reading, greeting, or opaque diagnostic)
// and extracts temperature and humidity values as pass-through text.
package protocol
