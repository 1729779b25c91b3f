// Package actuator forwards door commands to the Home Assistant instance
// that owns the physical actuator. The relay authorises; the controller
// actuates.
package actuator
