// Package session keeps patrol sessions in memory and, optionally, on disk.
//
// A session pairs a patrol engine with the configuration it was built from
// and the cached analysis of that layout. Sessions are addressed by short
// IDs that are matched case-insensitively; generated IDs are four hex
// characters.
//
// Persistence:
//
// FilePersistence writes one JSON file per session holding the config ID,
// an embedded copy of the configuration, the patrol state and the analysis.
// Loading rebuilds the engine and restores the state through SetState, so a
// resumed patrol keeps detecting loops against the states it already
// visited.
//
//	configs, _ := config.NewManager("configs")
//	store, _ := session.NewFilePersistence("sessions", configs)
//	manager := session.NewManagerWithPersistence(store)
//	manager.LoadPersistedSessions()
package session
