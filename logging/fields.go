package logging

import (
	"net/url"

	"go.uber.org/zap"
)

// RedactedPlaceholder replaces credentials in logged values.
const RedactedPlaceholder = "[REDACTED]"

// FrameFields describes a frame for structured logging.
//
// Example:
//
//	logger.Warn("tile dropped", logging.FrameFields(f.ID, f.Offset.X, f.Offset.Y, f.Size.W, f.Size.H)...)
func FrameFields(id, x, y, width, height uint32) []zap.Field {
	return []zap.Field{
		zap.Uint32("frame_id", id),
		zap.Uint32s("offset", []uint32{x, y}),
		zap.Uint32s("size", []uint32{width, height}),
	}
}

// ModelField logs a model identifier. Remote model URLs have their
// credentials and query string redacted.
func ModelField(id string) zap.Field {
	return zap.String("model", RedactModelID(id))
}

// RedactModelID strips user info and query values from URL model ids.
// Non-URL identifiers are returned unchanged.
func RedactModelID(id string) string {
	u, err := url.Parse(id)
	if err != nil || u.Host == "" {
		return id
	}
	if u.User != nil {
		u.User = url.User(RedactedPlaceholder)
	}
	if u.RawQuery != "" {
		q := u.Query()
		for key := range q {
			q.Set(key, RedactedPlaceholder)
		}
		u.RawQuery = q.Encode()
	}
	return u.String()
}
