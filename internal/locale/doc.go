// Package locale owns the interface languages and the message catalog the
// transport renders.
//
// Core packages only ever select a Key and a Lang; turning those into text is
// done here, from a YAML catalog embedded at build time. Language tags coming
// from configuration, commands, or callback payloads are normalised with
// golang.org/x/text/language so "en", "EN", and "en-US" all resolve to EN.
package locale
