package logging

import "context"

type contextKey string

const loggerCacheKey contextKey = "logger"

// WithLogger returns a derived context with associated logger factory.
func WithLogger(ctx context.Context, l LoggerFactory) context.Context {
	if l == nil {
		l = getNullLogger
	}

	return context.WithValue(ctx, loggerCacheKey, l)
}

// Module returns an accessor function that returns a logger for a given
// module from the provided context.
func Module(module string) func(ctx context.Context) Logger {
	return func(ctx context.Context) Logger {
		if l, ok := ctx.Value(loggerCacheKey).(LoggerFactory); ok {
			return l(module)
		}

		return NullLogger
	}
}

func getNullLogger(module string) Logger {
	return NullLogger
}
