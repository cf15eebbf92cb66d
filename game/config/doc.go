// Package config provides the game-mode catalog for roomgate.
//
// The config package handles:
//   - A built-in set of game modes
//   - Loading extra modes from JSON files, lazily and cached
//   - Mode validation
//   - Mode discovery and listing
//
// Mode Format:
//
// Each mode is one JSON file in the modes directory, named after its id:
//
//	// modes/duel.json
//	{
//	  "name": "Duel",
//	  "description": "One on one",
//	  "maxPlayers": 2
//	}
//
// A file whose id matches a built-in mode replaces it. Ids are limited to
// lowercase letters, digits and dashes.
//
// Usage:
//
//	manager, err := config.NewManager("modes")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	mode, err := manager.Lookup("deathmatch")
//	modes := manager.List()
//
// The Manager implements service.ModeCatalog; the coordinator uses it to
// reject CREATE_ROOM requests for unknown modes or with more players than the
// mode allows.
package config
