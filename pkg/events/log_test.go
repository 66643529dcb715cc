package events

import (
	"testing"

	"github.com/psantana5/opsim/pkg/models"
	"github.com/stretchr/testify/assert"
)

func TestLogNewestFirst(t *testing.T) {
	clock := models.NewClock()
	log := NewLog(clock, nil)

	log.Record("job %s arrived", "a")
	clock.Advance()
	log.Record("job %s arrived", "b")

	assert.Equal(t, []string{"[Time: 1] job b arrived", "[Time: 0] job a arrived"}, log.Entries())
	assert.Equal(t, []string{"[Time: 1] job b arrived"}, log.Recent(1))
	assert.Len(t, log.Recent(10), 2)
}

func TestLogRestoreCopies(t *testing.T) {
	log := NewLog(models.NewClock(), nil)
	saved := []string{"[Time: 3] x"}
	log.Restore(saved)
	saved[0] = "mutated"

	assert.Equal(t, []string{"[Time: 3] x"}, log.Entries())
	assert.Equal(t, 1, log.Len())
}
