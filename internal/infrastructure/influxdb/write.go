package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteAttemptMetric records one gate attempt in the auth_attempt
// measurement.
//
// Outcome and user are tags so dashboards can group and filter on them;
// the applied delay is a field. The write is non-blocking; data is batched
// and sent asynchronously, and a disconnected client drops the point.
//
// Parameters:
//   - outcome: The attempt outcome (e.g., "SUCCESS", "IP_BLOCKED")
//   - user: The matched username, or empty when none matched
//   - delay: The progressive delay applied to the attempt
func (c *Client) WriteAttemptMetric(outcome, user string, delay time.Duration) {
	if !c.IsConnected() {
		return
	}

	if user == "" {
		user = "unknown"
	}

	point := write.NewPoint(
		"auth_attempt",
		map[string]string{
			"outcome": outcome,
			"user":    user,
		},
		map[string]interface{}{
			"count":    int64(1),
			"delay_ms": delay.Milliseconds(),
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteBatteryMetric records the actuator battery level reported by the
// controller, in the door_battery measurement.
func (c *Client) WriteBatteryMetric(entityID string, level float64) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"door_battery",
		map[string]string{
			"entity": entityID,
		},
		map[string]interface{}{
			"level": level,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}
