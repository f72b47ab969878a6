package network

import "github.com/sirupsen/logrus"

// retryLogger adapts a logrus entry to retryablehttp.LeveledLogger.
type retryLogger struct {
	log *logrus.Entry
}

func (l *retryLogger) fields(keysAndValues []interface{}) *logrus.Entry {
	f := logrus.Fields{}
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		if k, ok := keysAndValues[i].(string); ok {
			f[k] = keysAndValues[i+1]
		}
	}
	return l.log.WithFields(f)
}

func (l *retryLogger) Error(msg string, keysAndValues ...interface{}) {
	l.fields(keysAndValues).Error(msg)
}

func (l *retryLogger) Info(msg string, keysAndValues ...interface{}) {
	l.fields(keysAndValues).Debug(msg)
}

func (l *retryLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.fields(keysAndValues).Trace(msg)
}

func (l *retryLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.fields(keysAndValues).Warn(msg)
}
