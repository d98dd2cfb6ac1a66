package data

import (
	"testing"

	"github.com/KotFed0t/portfolio_tracker/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseNotification(t *testing.T) {
	event, err := parseNotification(`{"portfolio_id":"p1","table":"holdings"}`)
	require.NoError(t, err)
	assert.Equal(t, model.ChangeEvent{PortfolioID: "p1", Table: "holdings"}, event)

	_, err = parseNotification(`{"table":"holdings"}`)
	assert.Error(t, err)

	_, err = parseNotification(`not json`)
	assert.Error(t, err)
}
