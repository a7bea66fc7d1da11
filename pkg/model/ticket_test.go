package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTotalComments(t *testing.T) {
	ticket := &Ticket{Comments: map[string]int{"Jane Doe": 3, "bob": 1}}
	assert.Equal(t, int64(4), ticket.TotalComments())

	assert.Equal(t, int64(0), (&Ticket{}).TotalComments())
}
