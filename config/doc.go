// Package config loads the relay's YAML configuration file.
//
// Values missing from the file keep their Default() setting. Each section
// validates itself and Load reports the first invalid section.
package config
