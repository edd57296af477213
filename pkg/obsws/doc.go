// Package obsws is a client for the obs-websocket v5 protocol.
//
// A session is opened from an obsws:// URI, performs the Hello / Identify /
// Identified handshake and then exchanges requests, responses and events over
// a single WebSocket connection:
//
//	s, err := session.NewSession().
//		WithURI("obsws://localhost:4455/secret").
//		WithLogger(logger).
//		WithEventSink(events.NewLoggingSink(logger, nil)).
//		Build()
//	if err != nil {
//		return err
//	}
//	if err := s.Connect(ctx); err != nil {
//		return err
//	}
//	defer s.Close()
//
//	resp, err := s.Call(ctx, "GetVersion", nil)
//
// The subpackages hold the pieces: protocol (message codec), auth
// (signature derivation), endpoint (URI parsing), transport (WebSocket
// adapter), session (state machine and correlation) and events (sinks).
package obsws
