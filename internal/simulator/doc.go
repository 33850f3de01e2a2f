// Package simulator runs an embedded MQTT broker with simulated devices.
//
// It lets the frame transport be exercised end to end without external
// infrastructure: the broker is a mochi-mqtt server bound to a local TCP
// port, and each Device speaks the device side of the topic contract.
//
//	<device>/PING    frames from the transport, echoed back on PONG
//	<device>/PONG    frames to the transport
//	<device>/STATUS  retained health value ("OK" when healthy)
//
// # Usage
//
//	broker, err := simulator.Start(cfg.Simulator, log.Logger)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer broker.Close()
//
//	device, _ := broker.AttachDevice("abc")
//	_ = device.SetStatus("OK")
//
// The simulator accepts every client; never expose it beyond localhost.
package simulator
