package rig

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
)

// Control actions understood by the control module.
const (
	actionIdentify = "identify"
	actionStart    = "start"
	actionStop     = "stop"
	actionSet      = "set"
	actionEnd      = "end"
)

// ControlStatus polls the current experiment state.
func (c *Client) ControlStatus(ctx context.Context) (*ControlStatus, error) {
	return c.control(ctx, actionIdentify, nil)
}

// AcquireControl requests the control key. When force is set, any key held
// by another session is revoked.
func (c *Client) AcquireControl(ctx context.Context, name string, force bool) (*ControlStatus, error) {
	params := url.Values{}
	if name != "" {
		params.Set("name", name)
	}
	if force {
		// The rig toggles force on presence, so it is only ever sent once.
		params.Set("force", "1")
	}
	st, err := c.control(ctx, actionStart, params)
	if err != nil {
		return nil, err
	}
	if st.Key == "" {
		return nil, fmt.Errorf("%w: control: start reply has no key", ErrMalformed)
	}
	return st, nil
}

// ReleaseControl gives up the control key.
func (c *Client) ReleaseControl(ctx context.Context, key string) error {
	if key == "" {
		return ErrNoKey
	}
	params := url.Values{}
	params.Set("key", key)
	_, err := c.control(ctx, actionEnd, params)
	return err
}

// EmergencyStop stops the experiment. No key is required.
func (c *Client) EmergencyStop(ctx context.Context) (*ControlStatus, error) {
	return c.control(ctx, actionStop, nil)
}

// SetActuator sets an actuator value under the given control key.
func (c *Client) SetActuator(ctx context.Context, key string, id int, value float64) (*ControlStatus, error) {
	if key == "" {
		return nil, ErrNoKey
	}
	params := url.Values{}
	params.Set("key", key)
	params.Set("id", strconv.Itoa(id))
	params.Set("value", formatFloat(value))
	return c.control(ctx, actionSet, params)
}

func (c *Client) control(ctx context.Context, action string, params url.Values) (*ControlStatus, error) {
	if params == nil {
		params = url.Values{}
	}
	params.Set("action", action)

	var st ControlStatus
	if err := c.getJSON(ctx, "control", params, &st); err != nil {
		return nil, err
	}
	return &st, nil
}
