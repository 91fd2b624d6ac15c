// Package device keeps the catalogue of rig sensors and actuators.
//
// The catalogue is filled from a single identify request against the rig:
//
//	reg := device.NewRegistry()
//	reg.SetLogger(log)
//	if _, err := reg.Discover(ctx, rigClient); err != nil {
//	    // registry stays empty; the dashboard keeps running
//	}
//
// Devices are addressed by Ref ("sensor/3", "actuator/0"). Entries are
// never removed once discovered.
package device
