// Package config reads trustd settings from the environment with cleanenv.
//
// Every setting has a default suitable for local development with in-memory
// storage. Validate reports all unusable settings together.
package config
