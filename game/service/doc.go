// Package service is the business layer between the transports and the
// patrol engine.
//
// PatrolService owns session lifecycle, stepping and running patrols, step
// history pagination, layout analysis and configuration access. Every
// mutating call persists the session through the SessionManager.
//
// Analysis of a session's layout is computed once and cached on the session;
// Solve analyses arbitrary layouts without creating a session.
//
//	sessions := session.NewManager()
//	configs, _ := config.NewManager("configs")
//	svc := service.NewPatrolService(sessions, configs)
//
//	info, _ := svc.CreateSession(ctx, "classic")
//	result, _ := svc.Run(ctx, info.ID, 0, false)
//	analysis, _ := svc.Analyze(ctx, info.ID)
package service
