// Package config loads patrol layouts from a configuration directory.
//
// Each file in the directory holds one layout, either as JSON (.json) or
// YAML (.yaml, .yml). The file name without its extension is the config ID
// used to create sessions:
//
//	name: Spiral
//	description: Guard spirals inward before leaving
//	workers: 4
//	layout:
//	  - "....#....."
//	  - "....^...#."
//
// Loaded configurations are validated with engine.ValidatePatrolConfig and
// cached by ID until RefreshCache is called. The default configuration is
// "classic" when present, otherwise the first valid file, otherwise the
// built-in classic sample.
package config
