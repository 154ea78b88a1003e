//go:build linux && cgo

package packet

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

var _ PacketWriter = ifaceWriter{}

func TestOpenInterfaceMissing(t *testing.T) {
	w, err := OpenInterface("nosuchif0")
	assert.Error(t, err)
	assert.Nil(t, w)
}
