package log

import (
	"io/ioutil"
	"os"
	"strconv"

	"github.com/sirupsen/logrus"
)

var debug bool

// Logger is a global interface for montage loggers.
type Logger = logrus.FieldLogger

func init() {
	var err error
	debug, err = strconv.ParseBool(os.Getenv("MONTAGE_DEBUG"))
	if err != nil {
		debug = false
	}
}

// GetLogger returns a new logger instance.
func GetLogger() *logrus.Logger {
	l := logrus.New()
	if debug {
		l.SetLevel(logrus.DebugLevel)
	}
	return l
}

// Silent returns a logger which discards everything.
func Silent() *logrus.Logger {
	l := logrus.New()
	l.Out = ioutil.Discard
	return l
}

// Node returns a logger entry tagged with node identity.
func Node(l Logger, uri, uid string) Logger {
	if l == nil {
		l = GetLogger()
	}
	return l.WithFields(logrus.Fields{
		"uri": uri,
		"uid": uid,
	})
}
