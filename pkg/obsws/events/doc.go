// Package events provides obsws.EventSink implementations that can be
// chained: filter by topic, log, queue for a background goroutine, or hand
// to a plain function.
//
// Every event has a topic of the form "<category>/<eventType>", for example
// "scenes/CurrentProgramSceneChanged", so MQTT-style patterns such as
// "scenes/#" or "+/InputMuteStateChanged" can select them.
package events
