package goAuthClient

import "context"

type deviceIDContextKey struct{}

// WithDeviceID attaches a device identifier to ctx. It overrides
// Config.Device.ID in audit events for calls made with ctx.
func WithDeviceID(ctx context.Context, deviceID string) context.Context {
	return context.WithValue(ctx, deviceIDContextKey{}, deviceID)
}

func deviceIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}

	id, _ := ctx.Value(deviceIDContextKey{}).(string)
	return id
}

func (e *Engine) deviceID(ctx context.Context) string {
	if id := deviceIDFromContext(ctx); id != "" {
		return id
	}
	return e.config.Device.ID
}
