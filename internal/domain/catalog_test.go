package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

func TestStore_AvgPrepTime(t *testing.T) {
	assert.Equal(t, 25*time.Minute, (&Store{AvgPrepMinutes: 25}).AvgPrepTime())
	assert.Zero(t, (&Store{}).AvgPrepTime())
	assert.Zero(t, (&Store{AvgPrepMinutes: -5}).AvgPrepTime())
}

func TestStore_PrepMinutesFromDocument(t *testing.T) {
	raw, err := bson.Marshal(bson.M{"_id": "s1", "name": "Burger Barn", "avg_prep_minutes": 18})
	require.NoError(t, err)

	var store Store
	require.NoError(t, bson.Unmarshal(raw, &store))
	assert.Equal(t, 18*time.Minute, store.AvgPrepTime())
}
