package aws

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetProfile(t *testing.T) {
	t.Run("default", func(t *testing.T) {
		t.Setenv("AWS_PROFILE", "")
		assert.Equal(t, "default", getProfile())
	})

	t.Run("from env", func(t *testing.T) {
		t.Setenv("AWS_PROFILE", "d4a-dev")
		assert.Equal(t, "d4a-dev", getProfile())
	})
}
