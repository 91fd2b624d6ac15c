// Package mqtt republishes dashboard state to an MQTT broker.
//
// The client wraps paho.mqtt.golang with auto-reconnect, a retained
// online/offline status topic (with a Last Will for crashes), and
// subscriptions that are restored after a reconnect. Topic names are built
// by Topics under a configurable prefix:
//
//	rigdash/status                retained, online/offline
//	rigdash/control/state         retained, current control view
//	rigdash/errorlog              retained, rig error-log text
//	rigdash/poller/status         poller session status
//	rigdash/series/{kind}/{id}    appended samples, [[t, v], ...]
//	rigdash/command/{name}        inbound commands
//
// Usage:
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//	err = client.PublishJSON(client.Topics().ControlState(), view, true)
package mqtt
