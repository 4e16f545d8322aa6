// Package influxdb writes session telemetry to InfluxDB v2.
//
// Every session operation (login, register, refresh, logout, restore) becomes
// one auth_exchange point tagged op, outcome, role and service, with
// duration_ms and count fields. User ids, tokens and credentials are never
// written.
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.WriteAuthExchange("login", "success", "USER", time.Since(start), start)
//
// Writes never block: points are batched and failures reach the SetOnError
// hook asynchronously.
package influxdb
