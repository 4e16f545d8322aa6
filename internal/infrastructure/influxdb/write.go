package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// MeasurementAuthExchange holds one point per session operation.
const MeasurementAuthExchange = "auth_exchange"

// WriteAuthExchange records the outcome and duration of one session
// operation.
//
// The write is non-blocking; data is batched and sent asynchronously.
//
// Parameters:
//   - op: Operation name (login, register, refresh, logout, restore)
//   - outcome: Coarse result (success, invalid_credentials, ...)
//   - role: Role of the identity involved, empty when anonymous
//   - duration: Wall time of the operation including the exchange
//   - at: When the operation started
//
// Example:
//
//	client.WriteAuthExchange("login", "success", "ADMIN", 120*time.Millisecond, start)
func (c *Client) WriteAuthExchange(op, outcome, role string, duration time.Duration, at time.Time) {
	tags := map[string]string{
		"op":      op,
		"outcome": outcome,
	}
	if role != "" {
		tags["role"] = role
	}

	c.WritePointWithTime(MeasurementAuthExchange, tags, map[string]interface{}{
		"duration_ms": float64(duration.Microseconds()) / 1000, //nolint:mnd // microseconds to milliseconds
		"count":       1,
	}, at)
}

// WritePointWithTime queues one point. Points written after Close are
// dropped. Keep tag values low cardinality: never put user ids in tags.
func (c *Client) WritePointWithTime(measurement string, tags map[string]string, fields map[string]interface{}, timestamp time.Time) {
	if !c.IsConnected() {
		return
	}

	c.writeAPI.WritePoint(write.NewPoint(measurement, tags, fields, timestamp))
	c.written.Add(1)
}
