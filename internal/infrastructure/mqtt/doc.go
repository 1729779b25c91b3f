// Package mqtt announces relay activity to an MQTT broker.
//
// The relay publishes gate events under dooropener/event/ and its own
// liveness on the retained dooropener/status topic, with a Last Will so a
// crash is visible to subscribers. Nothing is subscribed to: the broker is
// strictly an outbound announcement channel, and the relay keeps working
// when it is unreachable.
package mqtt
