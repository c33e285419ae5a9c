package elog

import (
	"bytes"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCLIFormat(t *testing.T) {

	log := &CLI{DisableTTY: true}

	tests := []struct {
		level logrus.Level
		msg   string
		want  string
	}{
		{logrus.InfoLevel, "opened image", "opened image\n"},
		{logrus.DebugLevel, "bat at 0x600\n", "bat at 0x600\n"},
		{logrus.WarnLevel, "footer recovered", "Warning: footer recovered\n"},
		{logrus.ErrorLevel, "bad block", "Error: bad block\n"},
	}

	for _, tt := range tests {
		out, err := log.Format(&logrus.Entry{Level: tt.level, Message: tt.msg})
		require.NoError(t, err)
		assert.Equal(t, tt.want, string(out))
	}
}

func TestCLIVerbosity(t *testing.T) {

	buf := new(bytes.Buffer)
	log := &CLI{DisableTTY: true}

	old := logrus.StandardLogger().Out
	defer logrus.SetOutput(old)

	logrus.SetOutput(buf)
	logrus.SetFormatter(log)
	logrus.SetLevel(logrus.TraceLevel)

	log.Debugf("hidden")
	log.Infof("hidden")
	log.Warnf("shown %d", 1)
	assert.Equal(t, "Warning: shown 1\n", buf.String())

	buf.Reset()
	log.IsVerbose = true
	log.Debugf("hidden")
	log.Infof("info")
	assert.Equal(t, "info\n", buf.String())

	buf.Reset()
	log.IsDebug = true
	log.Debugf("debug")
	assert.Equal(t, "debug\n", buf.String())
}

func TestCLIPrintf(t *testing.T) {

	buf := new(bytes.Buffer)
	log := &CLI{DisableTTY: true, Out: buf}

	log.Printf("%s", "one")
	log.Printf("two\n")
	assert.Equal(t, "one\ntwo\n", buf.String())

	p := log.NewProgress("copying", "KiB", 10)
	n, err := p.Write(make([]byte, 4))
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	p.Finish(true)
}

func TestOr(t *testing.T) {
	assert.Equal(t, Discard, Or(nil))
	log := &CLI{}
	assert.Equal(t, Logger(log), Or(log))
}
