//go:build !tamago

package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHostedBuild(t *testing.T) {
	assert.ErrorContains(t, errHosted(), "GOOS=tamago")
}
