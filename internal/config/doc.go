// Package config defines the binwrap settings file and helpers to load,
// validate and save it in YAML format.
//
// Every field is optional. Validate fills defaults: the cache lives in
// <home>/unwrapped and the journal next to it.
package config
