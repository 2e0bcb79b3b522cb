package logfields

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAttrKeys(t *testing.T) {
	assert.Equal(t, KeyStage, Stage("liquid").Key)
	assert.Equal(t, "liquid", Stage("liquid").Value.String())
	assert.Equal(t, KeyFile, File("a.html").Key)
	assert.Equal(t, int64(3), Files(3).Value.Int64())
}

func TestErrorAttr(t *testing.T) {
	assert.Equal(t, "", Error(nil).Value.String())
	assert.Equal(t, "boom", Error(errors.New("boom")).Value.String())
}
