// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExitCode(t *testing.T) {
	assert.Equal(t, 0, exitCode(nil))
	assert.Equal(t, 2, exitCode(errPartialFailure))
	assert.Equal(t, 2, exitCode(fmt.Errorf("aggregate: %w", errPartialFailure)))
	assert.Equal(t, 1, exitCode(errors.New("baseline source openalex: upstream down")))
}
