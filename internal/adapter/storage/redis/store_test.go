package redis_test

import (
	"context"
	"errors"
	"testing"

	"github.com/go-redis/redismock/v9"
	"github.com/srgjo27/custodia/internal/adapter/storage/redis"
	"github.com/srgjo27/custodia/internal/core/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_SaveTicketState(t *testing.T) {
	db, mockRedis := redismock.NewClientMock()
	store := redis.NewStore(db, "custodia:")

	state := domain.TicketState{
		Available: []domain.TicketCode{"TS-2"},
		Assigned:  []domain.TicketCode{"TS-1"},
		Reserved:  []domain.TicketCode{},
	}

	mockRedis.ExpectSet("custodia:ticketState", `{"available":["TS-2"],"assigned":["TS-1"],"reserved":[]}`, 0).SetVal("OK")

	err := store.Save(context.Background(), "ticketState", state)

	assert.NoError(t, err)
	if err := mockRedis.ExpectationsWereMet(); err != nil {
		t.Errorf("there were unfulfilled expectations: %s", err)
	}
}

func TestStore_LoadMissingKey(t *testing.T) {
	db, mockRedis := redismock.NewClientMock()
	store := redis.NewStore(db, "custodia:")

	mockRedis.ExpectGet("custodia:lockers").RedisNil()

	var lockers []domain.Locker
	ok, err := store.Load(context.Background(), "lockers", &lockers)

	assert.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, lockers)
}

func TestStore_LoadDecodesJSON(t *testing.T) {
	db, mockRedis := redismock.NewClientMock()
	store := redis.NewStore(db, "custodia:")

	mockRedis.ExpectGet("custodia:lockers").SetVal(`[{"id":7,"capacity":3,"lockerDetails":[{"id":1,"ticketCode":"TS-12","inTime":"2025-03-01T10:15:30","user":{"documentNumber":"12345678"}}]}]`)

	var lockers []domain.Locker
	ok, err := store.Load(context.Background(), "lockers", &lockers)

	require.NoError(t, err)
	assert.True(t, ok)
	require.Len(t, lockers, 1)
	assert.Equal(t, 7, lockers[0].ID)
	assert.Equal(t, domain.TicketCode("TS-12"), lockers[0].LockerDetails[0].TicketCode)
	assert.Equal(t, "12345678", lockers[0].LockerDetails[0].User.DocumentNumber)
}

func TestStore_LoadPropagatesRedisError(t *testing.T) {
	db, mockRedis := redismock.NewClientMock()
	store := redis.NewStore(db, "custodia:")

	mockRedis.ExpectGet("custodia:jwt").SetErr(errors.New("connection refused"))

	var jwt string
	ok, err := store.Load(context.Background(), "jwt", &jwt)

	assert.Error(t, err)
	assert.False(t, ok)
}

func TestStore_DeletePrefixesKeys(t *testing.T) {
	db, mockRedis := redismock.NewClientMock()
	store := redis.NewStore(db, "custodia:")

	mockRedis.ExpectDel("custodia:jwt", "custodia:sessionId").SetVal(2)

	assert.NoError(t, store.Delete(context.Background(), "jwt", "sessionId"))
	assert.NoError(t, store.Delete(context.Background()))
	assert.NoError(t, mockRedis.ExpectationsWereMet())
}
