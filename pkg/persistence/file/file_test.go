package file

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewPersistence(t *testing.T) {
	fp := NewPersistence("/tmp/test")
	assert.Equal(t, "/tmp/test", fp.root)

	fp = NewPersistence("file:///tmp/test")
	assert.Equal(t, "/tmp/test", fp.root)
}

func TestPersistence_HealthCheck(t *testing.T) {
	fp := NewPersistence(t.TempDir())
	assert.NoError(t, fp.HealthCheck(t.Context()))
	assert.NoError(t, fp.Close(t.Context()))

	missing := NewPersistence("/definitely/not/here")
	assert.Error(t, missing.HealthCheck(t.Context()))
}
