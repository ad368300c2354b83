package testutils

import (
	"bytes"
	"testing"

	"github.com/sirupsen/logrus"
)

type TestHelper struct {
	T      *testing.T
	Logger *logrus.Logger
	logBuf *bytes.Buffer
}

// NewTestHelper creates a test helper with a debug logger writing to an in-memory buffer.
func NewTestHelper(t *testing.T) *TestHelper {
	buf := &bytes.Buffer{}
	logger := logrus.New()
	logger.SetLevel(logrus.DebugLevel) // enable debug logs to track execution flow
	logger.SetOutput(buf)
	return &TestHelper{
		T:      t,
		Logger: logger,
		logBuf: buf,
	}
}

// Logs returns everything logged so far
func (h *TestHelper) Logs() string {
	return h.logBuf.String()
}

// DumpLogsOnFailure prints the captured log when the test failed
func (h *TestHelper) DumpLogsOnFailure() {
	h.T.Helper()
	if h.T.Failed() {
		h.T.Logf("captured log:\n%s", h.Logs())
	}
}
