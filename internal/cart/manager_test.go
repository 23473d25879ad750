package cart

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_Manager_StorePerSession(t *testing.T) {
	manager := NewManager(&mockGateway{cart: fakeCart()}, NewMemoryIDStore(), discardLogger())

	s1 := manager.Store("session-a")
	s2 := manager.Store("session-b")

	assert.NotSame(t, s1, s2, "sessions never share cart state")
	assert.Same(t, s1, manager.Store("session-a"), "a session keeps its store")
}

func Test_Manager_NewSessionID(t *testing.T) {
	manager := NewManager(&mockGateway{}, NewMemoryIDStore(), discardLogger())

	a := manager.NewSessionID()
	b := manager.NewSessionID()

	assert.NotEmpty(t, a)
	assert.NotEqual(t, a, b)
}
