package rig

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// PinRequest is a raw request to the pin module. Zero-valued optional
// fields are not sent.
type PinRequest struct {
	Type PinType
	Num  int

	// Export is 1 to export, -1 to unexport, 0 to leave alone.
	Export int

	// Set, when non-nil, writes a GPO level or starts/stops a PWM channel.
	Set *bool

	// PWM parameters, only sent with Type == PinPWM and Set.
	Freq     float64
	Duty     float64
	Polarity bool
}

// Pin issues a pin request. Reads and writes reply in plain text (for
// example "GPIO5 reads 1"); exports reply with a JSON envelope whose
// description is returned.
func (c *Client) Pin(ctx context.Context, req PinRequest) (string, error) {
	params := url.Values{}
	params.Set("type", string(req.Type))
	params.Set("num", strconv.Itoa(req.Num))
	if req.Export != 0 {
		params.Set("export", strconv.Itoa(req.Export))
	}
	if req.Set != nil {
		params.Set("set", boolParam(*req.Set))
		if req.Type == PinPWM && *req.Set {
			params.Set("freq", formatFloat(req.Freq))
			params.Set("duty", formatFloat(req.Duty))
			params.Set("pol", boolParam(req.Polarity))
		}
	}

	body, mediaType, err := c.get(ctx, "pin", params)
	if err != nil {
		return "", err
	}

	if mediaType == "text/plain" {
		return strings.TrimSpace(string(body)), nil
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		// Some rig builds omit the content type on text replies.
		if mediaType == "" {
			return strings.TrimSpace(string(body)), nil
		}
		return "", fmt.Errorf("%w: pin: %w", ErrMalformed, err)
	}
	if err := env.err(); err != nil {
		return "", err
	}
	return env.Description, nil
}

func boolParam(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
