// file: models/models_test.go
package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParsedParameters(t *testing.T) {
	cmd := &DeviceCommand{Parameters: `{"action":"delete_all","slot":3}`}
	params := cmd.ParsedParameters()
	assert.Equal(t, "delete_all", params["action"])
	assert.EqualValues(t, 3, params["slot"])
}

func TestParsedParametersEmptyAndInvalid(t *testing.T) {
	assert.Nil(t, (&DeviceCommand{}).ParsedParameters())
	assert.Nil(t, (&DeviceCommand{Parameters: "not json"}).ParsedParameters())
}
