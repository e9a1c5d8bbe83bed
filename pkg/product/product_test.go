package product

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultCatalog(t *testing.T) {
	c := Default()

	assert.Equal(t, []string{Weekly, Monthly, Lifetime}, c.IDs())

	monthly, ok := c.Find(Monthly)
	assert.True(t, ok)
	assert.Equal(t, 300, monthly.PriceCents)
	assert.True(t, monthly.Popular)

	_, ok = c.Find("unknown")
	assert.False(t, ok)
}
