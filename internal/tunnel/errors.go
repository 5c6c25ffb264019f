package tunnel

import "errors"

var (
	ErrTunnelUnavailable = errors.New("cloudflared unavailable")
	ErrTunnelTimeout     = errors.New("tunnel url not published in time")
	ErrPortNeverOpen     = errors.New("port never opened")
)
