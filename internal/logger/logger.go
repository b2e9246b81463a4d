package logger

import (
	"io"

	"github.com/sirupsen/logrus"
)

// Log — общий логгер процесса. До вызова Init пишет текстом с уровнем info.
var Log = logrus.New()

// Init настраивает уровень и формат логов. В development используется текстовый формат.
func Init(level string, development bool) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	Log.SetLevel(lvl)

	if development {
		Log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
		return
	}
	Log.SetFormatter(&logrus.JSONFormatter{})
}

// Silence отключает вывод логов (используется в тестах).
func Silence() {
	Log.SetOutput(io.Discard)
}

// For возвращает запись с полем компонента.
func For(component string) *logrus.Entry {
	return Log.WithField("component", component)
}
