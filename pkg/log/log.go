package log

import (
	"sync/atomic"

	logrus "github.com/sirupsen/logrus"
)

// debug verbosity follows the MYNTA_DEBUG convention:
// 0=minimal, 1=verbose, 2=intense protocol tracing
var debugLevel int32

// SetDebugLevel sets the orchestrator-wide verbosity
func SetDebugLevel(level int) {
	atomic.StoreInt32(&debugLevel, int32(level))
}

// DebugLevel returns the current verbosity
func DebugLevel() int {
	return int(atomic.LoadInt32(&debugLevel))
}

//Fatalf Logs first and then calls `logger.Exit(1)`
func Fatalf(msg string, err ...interface{}) {
	logrus.WithFields(logrus.Fields{}).Fatalf(msg, err...)
}

//Infof log the General operational entries about what's going on inside the run
func Infof(msg string, val ...interface{}) {
	logrus.WithFields(logrus.Fields{}).Infof(msg, val...)
}

//Info log the General operational entries about what's going on inside the run
func Info(msg string) {
	logrus.WithFields(logrus.Fields{}).Info(msg)
}

// InfoWithValues log the General operational entries with extra key value pairs
func InfoWithValues(msg string, val map[string]interface{}) {
	logrus.WithFields(val).Info(msg)
}

// ErrorWithValues log the Error entries with extra key value pairs
func ErrorWithValues(msg string, val map[string]interface{}) {
	logrus.WithFields(val).Error(msg)
}

//Warn log the Non-critical entries that deserve eyes.
func Warn(msg string) {
	logrus.WithFields(logrus.Fields{}).Warn(msg)
}

//Warnf log the Non-critical entries that deserve eyes.
func Warnf(msg string, val ...interface{}) {
	logrus.WithFields(logrus.Fields{}).Warnf(msg, val...)
}

//Errorf used for errors that should definitely be noted.
func Errorf(msg string, err ...interface{}) {
	logrus.WithFields(logrus.Fields{}).Errorf(msg, err...)
}

//Error used for errors that should definitely be noted.
func Error(msg string) {
	logrus.WithFields(logrus.Fields{}).Error(msg)
}

//Debugf log entries visible at MYNTA_DEBUG>=1
func Debugf(msg string, val ...interface{}) {
	if DebugLevel() >= 1 {
		logrus.WithFields(logrus.Fields{}).Infof(msg, val...)
	}
}

//Tracef log entries visible at MYNTA_DEBUG>=2, used for per-action protocol tracing
func Tracef(msg string, val ...interface{}) {
	if DebugLevel() >= 2 {
		logrus.WithFields(logrus.Fields{}).Infof(msg, val...)
	}
}
